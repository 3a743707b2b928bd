package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// Completion is everything written when a batch finishes parsing.
type Completion struct {
	Data             Data
	Summary          ingest.Summary
	TotalRecords     int64
	ProcessedRecords int64
	FailedRecords    int64
	ProcessedAt      time.Time
}

type ListFilter struct {
	PeriodID snowflake.ID
	Category schema.Category
	Status   Status
	Search   string
	Sort     option.SortBy
	Page     pagination.Pagination
}

type StatusCount struct {
	Status       Status
	Count        int64
	TotalRecords int64
}

// CategoryTotals sums the stored summary columns of completed batches.
type CategoryTotals struct {
	Category         schema.Category
	Reports          int64
	TotalRecords     int64
	TotalImpressions float64
	TotalUnits       float64
	TotalRevenue     float64
	ActiveRecords    int64
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, batch *ReportBatch) error
	MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, completion Completion) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, withData bool) (*ReportBatch, error)
	FindByPeriod(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]ReportBatch, error)
	FindByPeriodAndCategory(ctx context.Context, db *gorm.DB, periodID snowflake.ID, category schema.Category) ([]ReportBatch, error)
	FindByCategory(ctx context.Context, db *gorm.DB, category schema.Category) ([]ReportBatch, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ReportBatch, int64, error)
	FindCompleted(ctx context.Context, db *gorm.DB, category schema.Category, withData bool) ([]ReportBatch, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	FindStale(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]ReportBatch, error)
	StatusCounts(ctx context.Context, db *gorm.DB) ([]StatusCount, error)
	CategoryTotals(ctx context.Context, db *gorm.DB) ([]CategoryTotals, error)
}
