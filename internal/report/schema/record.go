package schema

import (
	"strconv"
)

// Record is one normalized report row. Values are either trimmed strings or
// float64 numbers; fields absent from the source row are not present.
type Record map[string]any

// Text returns a text field.
func (r Record) Text(name string) (string, bool) {
	v, ok := r[name].(string)
	return v, ok
}

// Number returns a numeric field.
func (r Record) Number(name string) (float64, bool) {
	switch v := r[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// NumberOrZero treats an absent numeric field as 0 for summary math.
func (r Record) NumberOrZero(name string) float64 {
	v, _ := r.Number(name)
	return v
}

// String returns the display form of a field, used by search and sort.
func (r Record) String(name string) (string, bool) {
	raw, ok := r[name]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return FormatNumber(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// FormatNumber renders a number in its shortest exact decimal form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
