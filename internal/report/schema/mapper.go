package schema

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MapStats reports lossy coercions made while mapping a row.
type MapStats struct {
	// Coerced counts numeric cells that were present but unparseable and stored as 0.
	Coerced int
}

// numericPrefix matches the leading decimal literal of a cell such as "12.50 USD".
var numericPrefix = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseNumber reads the leading decimal literal of a cell. Cells without one,
// and values that overflow, yield (0, false).
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimLeft(raw, " \t\r\n\v\f")
	match := numericPrefix.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func coerce(f Field, raw string, rec Record, stats *MapStats) {
	if raw == "" {
		return
	}
	switch f.Kind {
	case KindNumeric:
		v, ok := ParseNumber(raw)
		if !ok {
			stats.Coerced++
		}
		rec[f.Name] = v
	default:
		rec[f.Name] = strings.TrimSpace(raw)
	}
}

// MapRow converts a header-keyed raw row into a normalized record. An empty
// record means no schema header carried a value; callers drop such rows.
func MapRow(raw map[string]string, c Category) (Record, MapStats, error) {
	fields, ok := registry[c]
	if !ok {
		return nil, MapStats{}, ErrUnknownCategory
	}
	rec := make(Record, len(fields))
	var stats MapStats
	for _, f := range fields {
		value, present := raw[f.Header]
		if !present {
			continue
		}
		coerce(f, value, rec, &stats)
	}
	return rec, stats, nil
}

// Mapper maps positional rows of one file, resolving header positions once.
type Mapper struct {
	category Category
	columns  []column
}

type column struct {
	index int
	field Field
}

// NewMapper binds a category schema to the header row of a file. When a
// header repeats, the rightmost column wins.
func NewMapper(c Category, headers []string) (*Mapper, error) {
	fields, ok := registry[c]
	if !ok {
		return nil, ErrUnknownCategory
	}
	position := make(map[string]int, len(headers))
	for i, h := range headers {
		position[h] = i
	}
	m := &Mapper{category: c}
	for _, f := range fields {
		if idx, ok := position[f.Header]; ok {
			m.columns = append(m.columns, column{index: idx, field: f})
		}
	}
	return m, nil
}

func (m *Mapper) Category() Category { return m.category }

// Matched returns how many schema fields were found in the header row.
func (m *Mapper) Matched() int { return len(m.columns) }

// Map converts one positional row. Short rows simply lack the trailing fields.
func (m *Mapper) Map(row []string) (Record, MapStats) {
	rec := make(Record, len(m.columns))
	var stats MapStats
	for _, col := range m.columns {
		if col.index >= len(row) {
			continue
		}
		coerce(col.field, row[col.index], rec, &stats)
	}
	return rec, stats
}
