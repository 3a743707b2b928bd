package ingest

import "github.com/smallbiznis/tunedesk/internal/report/schema"

// Summary holds the aggregates stored next to an ingested batch.
type Summary struct {
	TotalImpressions float64 `json:"totalImpressions" yaml:"totalImpressions" gorm:"column:total_impressions;not null;default:0"`
	TotalUnits       float64 `json:"totalUnits" yaml:"totalUnits" gorm:"column:total_units;not null;default:0"`
	TotalRevenue     float64 `json:"totalRevenue" yaml:"totalRevenue" gorm:"column:total_revenue;not null;default:0"`
	ActiveRecords    int64   `json:"activeRecords" yaml:"activeRecords" gorm:"column:active_records;not null;default:0"`
}

// Summarize aggregates records of one category. Absent numeric fields count as 0.
func Summarize(records []schema.Record, c schema.Category) Summary {
	var out Summary
	revenueField, hasRevenue := schema.RevenueField(c)
	for _, rec := range records {
		units := rec.NumberOrZero(schema.FieldTotalUnits)
		out.TotalUnits += units
		if c == schema.CategoryAnalytics {
			out.TotalImpressions += units
		}
		if hasRevenue {
			out.TotalRevenue += rec.NumberOrZero(revenueField)
		}
	}
	out.ActiveRecords = int64(len(records))
	return out
}
