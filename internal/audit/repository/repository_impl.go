package repository

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, int64, error) {
	filtered := func(tx *gorm.DB) *gorm.DB {
		if accountID := strings.TrimSpace(filter.AccountID); accountID != "" {
			tx = tx.Where("account_id = ?", accountID)
		}
		if action := strings.TrimSpace(filter.Action); action != "" {
			tx = tx.Where("action = ?", action)
		}
		if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
			tx = tx.Where("target_type = ?", targetType)
		}
		if targetID := strings.TrimSpace(filter.TargetID); targetID != "" {
			tx = tx.Where("target_id = ?", targetID)
		}
		if actorID := strings.TrimSpace(filter.ActorID); actorID != "" {
			tx = tx.Where("actor_id = ?", actorID)
		}
		if filter.StartAt != nil {
			tx = tx.Where("created_at >= ?", filter.StartAt.UTC())
		}
		if filter.EndAt != nil {
			tx = tx.Where("created_at <= ?", filter.EndAt.UTC())
		}
		return tx
	}

	var total int64
	if err := db.WithContext(ctx).Model(&auditdomain.AuditLog{}).Scopes(filtered).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []auditdomain.AuditLog
	err := db.WithContext(ctx).
		Scopes(filtered, option.WithPage(filter.Page.Page, filter.Page.Limit).Apply).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
