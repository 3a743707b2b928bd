package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"  42", 42, true},
		{"12.5 USD", 12.5, true},
		{"-3", -3, true},
		{".5", 0.5, true},
		{"1e3", 1000, true},
		{"7.", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{"$10", 0, false},
		{"1e999", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseNumber(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMapRowRoyalty(t *testing.T) {
	raw := map[string]string{
		"Artist":      "  Asha  ",
		"Track Title": "Song",
		"Total Units": "100",
		"Income":      "12.50",
		"Royalty":     "",
		"Unknown":     "ignored",
	}
	rec, stats, err := MapRow(raw, CategoryRoyalty)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Coerced)
	assert.Equal(t, Record{
		FieldArtist:     "Asha",
		FieldTrackTitle: "Song",
		FieldTotalUnits: 100.0,
		FieldIncome:     12.5,
	}, rec)
}

func TestMapRowCoercesGarbageToZero(t *testing.T) {
	rec, stats, err := MapRow(map[string]string{"Total Units": "n/a"}, CategoryAnalytics)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Coerced)
	v, ok := rec.Number(FieldTotalUnits)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestMapRowEmptyResult(t *testing.T) {
	rec, _, err := MapRow(map[string]string{"Artist": "", "Other": "x"}, CategoryAnalytics)
	require.NoError(t, err)
	assert.Len(t, rec, 0)

	_, _, err = MapRow(nil, Category("nope"))
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestMapperDuplicateHeaderRightmostWins(t *testing.T) {
	m, err := NewMapper(CategoryAnalytics, []string{"Artist", "Total Units", "Artist"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Matched())

	rec, _ := m.Map([]string{"left", "5", "right"})
	artist, _ := rec.Text(FieldArtist)
	assert.Equal(t, "right", artist)
}

func TestMapperShortRow(t *testing.T) {
	m, err := NewMapper(CategoryMCN, []string{"Licensee", "Revenue (USD)"})
	require.NoError(t, err)

	rec, stats := m.Map([]string{"YT"})
	assert.Equal(t, Record{FieldLicensee: "YT"}, rec)
	assert.Equal(t, 0, stats.Coerced)
}

func TestRecordString(t *testing.T) {
	rec := Record{FieldIncome: 12.5, FieldTotalUnits: 100.0, FieldArtist: "A"}
	s, ok := rec.String(FieldIncome)
	assert.True(t, ok)
	assert.Equal(t, "12.5", s)

	s, _ = rec.String(FieldTotalUnits)
	assert.Equal(t, "100", s)

	_, ok = rec.String(FieldBonus)
	assert.False(t, ok)
	assert.Equal(t, 0.0, rec.NumberOrZero(FieldBonus))
}
