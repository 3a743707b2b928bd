package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() reportdomain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, batch *reportdomain.ReportBatch) error {
	return db.WithContext(ctx).Omit("Period").Create(batch).Error
}

// transition moves a batch forward only when it is currently in one of from.
func transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []reportdomain.Status, values map[string]any) error {
	result := db.WithContext(ctx).
		Model(&reportdomain.ReportBatch{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return reportdomain.ErrInvalidTransition
	}
	return nil
}

func (r *repo) MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return transition(ctx, db, id,
		[]reportdomain.Status{reportdomain.StatusPending},
		map[string]any{
			"status":     reportdomain.StatusProcessing,
			"updated_at": at,
		},
	)
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, c reportdomain.Completion) error {
	return transition(ctx, db, id,
		[]reportdomain.Status{reportdomain.StatusProcessing},
		map[string]any{
			"status":                    reportdomain.StatusCompleted,
			"data":                      datatypes.NewJSONType(c.Data),
			"total_records":             c.TotalRecords,
			"processed_records":         c.ProcessedRecords,
			"failed_records":            c.FailedRecords,
			"summary_total_impressions": c.Summary.TotalImpressions,
			"summary_total_units":       c.Summary.TotalUnits,
			"summary_total_revenue":     c.Summary.TotalRevenue,
			"summary_active_records":    c.Summary.ActiveRecords,
			"processed_at":              c.ProcessedAt,
			"error_message":             nil,
			"updated_at":                c.ProcessedAt,
		},
	)
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) error {
	return transition(ctx, db, id,
		[]reportdomain.Status{reportdomain.StatusPending, reportdomain.StatusProcessing},
		map[string]any{
			"status":        reportdomain.StatusFailed,
			"error_message": message,
			"processed_at":  at,
			"updated_at":    at,
		},
	)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, withData bool) (*reportdomain.ReportBatch, error) {
	query := db.WithContext(ctx).Preload("Period")
	if !withData {
		query = query.Omit("data")
	}

	var batch reportdomain.ReportBatch
	err := query.Where("id = ? AND is_active = ?", id, true).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, periodID snowflake.ID) ([]reportdomain.ReportBatch, error) {
	var batches []reportdomain.ReportBatch
	err := db.WithContext(ctx).
		Preload("Period").
		Omit("data").
		Where("period_id = ? AND is_active = ?", periodID, true).
		Order("category ASC").
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) FindByPeriodAndCategory(ctx context.Context, db *gorm.DB, periodID snowflake.ID, category schema.Category) ([]reportdomain.ReportBatch, error) {
	var batches []reportdomain.ReportBatch
	err := db.WithContext(ctx).
		Preload("Period").
		Omit("data").
		Where("period_id = ? AND category = ? AND is_active = ?", periodID, category, true).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) FindByCategory(ctx context.Context, db *gorm.DB, category schema.Category) ([]reportdomain.ReportBatch, error) {
	var batches []reportdomain.ReportBatch
	err := db.WithContext(ctx).
		Preload("Period").
		Omit("data").
		Where("category = ? AND is_active = ?", category, true).
		Order("created_at DESC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter reportdomain.ListFilter) ([]reportdomain.ReportBatch, int64, error) {
	filtered := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("is_active = ?", true)
		if filter.PeriodID != 0 {
			tx = tx.Where("period_id = ?", filter.PeriodID)
		}
		if filter.Category != "" {
			tx = tx.Where("category = ?", filter.Category)
		}
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if term := strings.TrimSpace(filter.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			tx = tx.Where("(LOWER(original_file_name) LIKE ? OR LOWER(file_name) LIKE ?)", like, like)
		}
		return tx
	}

	var total int64
	if err := db.WithContext(ctx).Model(&reportdomain.ReportBatch{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var batches []reportdomain.ReportBatch
	err := db.WithContext(ctx).
		Preload("Period").
		Omit("data").
		Scopes(
			filtered,
			option.WithSortBy(filter.Sort).Apply,
			option.WithPage(filter.Page.Page, filter.Page.Limit).Apply,
		).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *repo) FindCompleted(ctx context.Context, db *gorm.DB, category schema.Category, withData bool) ([]reportdomain.ReportBatch, error) {
	query := db.WithContext(ctx).Preload("Period")
	if !withData {
		query = query.Omit("data")
	}
	query = query.Where("is_active = ? AND status = ?", true, reportdomain.StatusCompleted)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var batches []reportdomain.ReportBatch
	if err := query.Order("created_at ASC").Order("id ASC").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&reportdomain.ReportBatch{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindStale returns active batches still pending or processing whose last update is at or before the cutoff.
func (r *repo) FindStale(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]reportdomain.ReportBatch, error) {
	query := db.WithContext(ctx).
		Omit("data").
		Where("is_active = ? AND status IN ? AND updated_at <= ?",
			true,
			[]reportdomain.Status{reportdomain.StatusPending, reportdomain.StatusProcessing},
			before,
		).
		Order("updated_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var batches []reportdomain.ReportBatch
	if err := query.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) StatusCounts(ctx context.Context, db *gorm.DB) ([]reportdomain.StatusCount, error) {
	var rows []reportdomain.StatusCount
	err := db.WithContext(ctx).Raw(
		`SELECT status,
		        COUNT(*) AS count,
		        COALESCE(SUM(total_records), 0) AS total_records
		 FROM report_batches
		 WHERE is_active = ?
		 GROUP BY status`,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) CategoryTotals(ctx context.Context, db *gorm.DB) ([]reportdomain.CategoryTotals, error) {
	var rows []reportdomain.CategoryTotals
	err := db.WithContext(ctx).Raw(
		`SELECT category,
		        COUNT(*) AS reports,
		        COALESCE(SUM(total_records), 0) AS total_records,
		        COALESCE(SUM(summary_total_impressions), 0) AS total_impressions,
		        COALESCE(SUM(summary_total_units), 0) AS total_units,
		        COALESCE(SUM(summary_total_revenue), 0) AS total_revenue,
		        COALESCE(SUM(summary_active_records), 0) AS active_records
		 FROM report_batches
		 WHERE is_active = ? AND status = ?
		 GROUP BY category`,
		true,
		reportdomain.StatusCompleted,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
