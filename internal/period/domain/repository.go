package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Kind     Kind
	IsActive *bool
	Search   string
	Sort     option.SortBy
	Page     pagination.Pagination
}

// KindCount is one row of the per-kind period breakdown.
type KindCount struct {
	Kind   Kind
	Total  int64
	Active int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, period *ReportingPeriod) error
	Update(ctx context.Context, db *gorm.DB, period *ReportingPeriod) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReportingPeriod, error)
	FindByLabelAndKind(ctx context.Context, db *gorm.DB, label string, kind Kind) (*ReportingPeriod, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ReportingPeriod, int64, error)
	ListActive(ctx context.Context, db *gorm.DB, kind Kind) ([]ReportingPeriod, error)
	CountBatches(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	CountByKind(ctx context.Context, db *gorm.DB) ([]KindCount, error)
}
