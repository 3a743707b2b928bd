package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"gorm.io/gorm"
)

const periodColumns = `id, label, display_name, kind, is_active, created_at, updated_at`

type repo struct{}

func Provide() perioddomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *perioddomain.ReportingPeriod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reporting_periods (`+periodColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Label,
		p.DisplayName,
		p.Kind,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, p *perioddomain.ReportingPeriod) error {
	return db.WithContext(ctx).Exec(
		`UPDATE reporting_periods
		 SET label = ?, display_name = ?, kind = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		p.Label,
		p.DisplayName,
		p.Kind,
		p.IsActive,
		p.UpdatedAt,
		p.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*perioddomain.ReportingPeriod, error) {
	var period perioddomain.ReportingPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+` FROM reporting_periods WHERE id = ?`,
		id,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindByLabelAndKind(ctx context.Context, db *gorm.DB, label string, kind perioddomain.Kind) (*perioddomain.ReportingPeriod, error) {
	var period perioddomain.ReportingPeriod
	err := db.WithContext(ctx).Raw(
		`SELECT `+periodColumns+` FROM reporting_periods WHERE label = ? AND kind = ?`,
		label,
		kind,
	).Scan(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter perioddomain.ListFilter) ([]perioddomain.ReportingPeriod, int64, error) {
	filtered := func(tx *gorm.DB) *gorm.DB {
		if filter.Kind != "" {
			tx = tx.Where("kind = ?", filter.Kind)
		}
		if filter.IsActive != nil {
			tx = tx.Where("is_active = ?", *filter.IsActive)
		}
		if term := strings.TrimSpace(filter.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			tx = tx.Where("(LOWER(label) LIKE ? OR LOWER(display_name) LIKE ?)", like, like)
		}
		return tx
	}

	var total int64
	if err := db.WithContext(ctx).Model(&perioddomain.ReportingPeriod{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var periods []perioddomain.ReportingPeriod
	err := db.WithContext(ctx).
		Scopes(
			filtered,
			option.WithSortBy(filter.Sort).Apply,
			option.WithPage(filter.Page.Page, filter.Page.Limit).Apply,
		).
		Find(&periods).Error
	if err != nil {
		return nil, 0, err
	}
	return periods, total, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, kind perioddomain.Kind) ([]perioddomain.ReportingPeriod, error) {
	query := db.WithContext(ctx).Where("is_active = ?", true)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var periods []perioddomain.ReportingPeriod
	if err := query.Order("kind ASC").Order("created_at DESC").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *repo) CountBatches(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM report_batches WHERE period_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountByKind(ctx context.Context, db *gorm.DB) ([]perioddomain.KindCount, error) {
	var rows []perioddomain.KindCount
	err := db.WithContext(ctx).Raw(
		`SELECT kind,
		        COUNT(*) AS total,
		        SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active
		 FROM reporting_periods
		 GROUP BY kind
		 ORDER BY kind ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
