package schema

import (
	"errors"
	"strings"
)

// Category selects the column layout of a report export.
type Category string

const (
	CategoryAnalytics    Category = "analytics"
	CategoryRoyalty      Category = "royalty"
	CategoryBonusRoyalty Category = "bonus_royalty"
	CategoryMCN          Category = "mcn"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryAnalytics,
	CategoryRoyalty,
	CategoryBonusRoyalty,
	CategoryMCN,
}

// Kind classifies how a cell is coerced.
type Kind string

const (
	KindText    Kind = "text"
	KindNumeric Kind = "numeric"
)

var ErrUnknownCategory = errors.New("unknown_category")

// Normalized field names referenced outside the registry.
const (
	FieldLicensee            = "licensee"
	FieldLicensor            = "licensor"
	FieldMusicService        = "musicService"
	FieldMonth               = "month"
	FieldAccountID           = "accountId"
	FieldLabel               = "label"
	FieldArtist              = "artist"
	FieldAlbumTitle          = "albumTitle"
	FieldTrackTitle          = "trackTitle"
	FieldTotalUnits          = "totalUnits"
	FieldIncome              = "income"
	FieldCommission          = "commission"
	FieldBonus               = "bonus"
	FieldRoyalty             = "royalty"
	FieldRevenueSharePercent = "revenueSharePercent"
	FieldYoutubePayoutUsd    = "youtubePayoutUsd"
	FieldMvCommission        = "mvCommission"
	FieldRevenueUsd          = "revenueUsd"
	FieldConversionRate      = "conversionRate"
	FieldPayoutRevenueInr    = "payoutRevenueInr"
)

// Field maps one external column header to its normalized name.
type Field struct {
	Header string `json:"header" yaml:"header"`
	Name   string `json:"name" yaml:"name"`
	Kind   Kind   `json:"kind" yaml:"kind"`
}

func text(header, name string) Field    { return Field{Header: header, Name: name, Kind: KindText} }
func numeric(header, name string) Field { return Field{Header: header, Name: name, Kind: KindNumeric} }

// Store exports share this prefix; the "Acount ID" spelling is what upstream emits.
var storeTextFields = []Field{
	text("Licensee", FieldLicensee),
	text("Licensor", FieldLicensor),
	text("Music Service", FieldMusicService),
	text("Month", FieldMonth),
	text("Acount ID", FieldAccountID),
	text("Label", FieldLabel),
	text("Artist", FieldArtist),
	text("Album Title", FieldAlbumTitle),
	text("Track Title", FieldTrackTitle),
	text("Product Title", "productTitle"),
	text("Vol/Version", "volVersion"),
	text("UPC", "upc"),
	text("Cat No", "catNo"),
	text("ISRC", "isrc"),
	numeric("Total Units", FieldTotalUnits),
	text("S/R", "sr"),
	text("Country of Sale", "countryOfSale"),
	text("Usage Type", "usageType"),
}

var registry map[Category][]Field

var fieldIndex map[Category]map[string]Field

func init() {
	registry = map[Category][]Field{
		CategoryAnalytics: concat(storeTextFields),
		CategoryRoyalty: concat(storeTextFields, []Field{
			numeric("Income", FieldIncome),
			numeric("Maheshwari Visuals Commission", FieldCommission),
			numeric("Royalty", FieldRoyalty),
		}),
		CategoryBonusRoyalty: concat(storeTextFields, []Field{
			numeric("Income", FieldIncome),
			numeric("Maheshwari Visuals Commission", FieldCommission),
			numeric("Bonus", FieldBonus),
			numeric("Royalty", FieldRoyalty),
		}),
		CategoryMCN: {
			text("Licensee", FieldLicensee),
			text("Licensor", FieldLicensor),
			text("Asset Channel ID", "assetChannelId"),
			text("YouTube Chanel Name", "youtubeChannelName"),
			text("Month", FieldMonth),
			text("Acount ID", FieldAccountID),
			numeric("Revenue Share %", FieldRevenueSharePercent),
			numeric("YouTube Payout (USD)", FieldYoutubePayoutUsd),
			numeric("MV Commission", FieldMvCommission),
			numeric("Revenue (USD)", FieldRevenueUsd),
			numeric("Conversion Rate", FieldConversionRate),
			numeric("Payout Revenue (INR)", FieldPayoutRevenueInr),
		},
	}

	fieldIndex = make(map[Category]map[string]Field, len(registry))
	for category, fields := range registry {
		byName := make(map[string]Field, len(fields))
		for _, f := range fields {
			byName[f.Name] = f
		}
		fieldIndex[category] = byName
	}
}

func concat(groups ...[]Field) []Field {
	out := make([]Field, 0)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// ParseCategory normalizes and validates a category name.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

func (c Category) Valid() bool {
	_, ok := registry[c]
	return ok
}

func (c Category) String() string { return string(c) }

// FieldsFor returns the ordered column schema of a category. The slice is a copy.
func FieldsFor(c Category) ([]Field, error) {
	fields, ok := registry[c]
	if !ok {
		return nil, ErrUnknownCategory
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}

// Headers returns the expected external headers of a category in schema order.
func Headers(c Category) ([]string, error) {
	fields, ok := registry[c]
	if !ok {
		return nil, ErrUnknownCategory
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Header)
	}
	return out, nil
}

// SearchFields returns the normalized names consulted by free-text search.
func SearchFields(c Category) []string {
	fields := registry[c]
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	return out
}

// Lookup returns the field definition for a normalized name.
func Lookup(c Category, name string) (Field, bool) {
	f, ok := fieldIndex[c][name]
	return f, ok
}

// RevenueField names the field summed into revenue totals; analytics has none.
func RevenueField(c Category) (string, bool) {
	switch c {
	case CategoryRoyalty, CategoryBonusRoyalty:
		return FieldIncome, true
	case CategoryMCN:
		return FieldRevenueUsd, true
	default:
		return "", false
	}
}
