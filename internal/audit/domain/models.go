package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Actions written by the admin surface and the scheduler.
const (
	ActionReportUploaded    = "report.uploaded"
	ActionReportDeleted     = "report.deleted"
	ActionReportExpired     = "report.expired"
	ActionPeriodCreated     = "period.created"
	ActionPeriodUpdated     = "period.updated"
	ActionPeriodToggled     = "period.toggled"
	ActionPeriodDeactivated = "period.deactivated"
)

const (
	TargetReportBatch = "report_batch"
	TargetPeriod      = "reporting_period"
)

// AuditLog is one administrative change.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	AccountID  *string           `json:"accountId,omitempty" gorm:"type:varchar(64);index:idx_audit_logs_account_created,priority:1"`
	ActorType  string            `json:"actorType" gorm:"type:varchar(20);not null"`
	ActorID    *string           `json:"actorId,omitempty" gorm:"type:varchar(64)"`
	Action     string            `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string            `json:"targetType" gorm:"type:varchar(32);not null"`
	TargetID   *string           `json:"targetId,omitempty" gorm:"type:varchar(64)"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `json:"ipAddress,omitempty" gorm:"type:varchar(64)"`
	UserAgent  *string           `json:"userAgent,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" gorm:"not null;index:idx_audit_logs_account_created,priority:2"`
}

func (AuditLog) TableName() string { return "audit_logs" }
