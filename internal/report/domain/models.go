package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"gorm.io/datatypes"
)

// Status is the processing state of a report batch. Transitions only move forward:
// pending -> processing -> completed|failed, or pending -> failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Data holds the normalized records of a batch. Only the bucket matching the
// batch category is populated.
type Data struct {
	Analytics    []schema.Record `json:"analytics,omitempty"`
	Royalty      []schema.Record `json:"royalty,omitempty"`
	BonusRoyalty []schema.Record `json:"bonusRoyalty,omitempty"`
	MCN          []schema.Record `json:"mcn,omitempty"`
}

func NewData(c schema.Category, records []schema.Record) Data {
	var d Data
	switch c {
	case schema.CategoryAnalytics:
		d.Analytics = records
	case schema.CategoryRoyalty:
		d.Royalty = records
	case schema.CategoryBonusRoyalty:
		d.BonusRoyalty = records
	case schema.CategoryMCN:
		d.MCN = records
	}
	return d
}

// Records returns the bucket for c.
func (d Data) Records(c schema.Category) []schema.Record {
	switch c {
	case schema.CategoryAnalytics:
		return d.Analytics
	case schema.CategoryRoyalty:
		return d.Royalty
	case schema.CategoryBonusRoyalty:
		return d.BonusRoyalty
	case schema.CategoryMCN:
		return d.MCN
	default:
		return nil
	}
}

// ReportBatch is one uploaded report file and its parsed records.
type ReportBatch struct {
	ID               snowflake.ID                  `gorm:"primaryKey"`
	PeriodID         snowflake.ID                  `gorm:"not null;index:idx_report_batches_period_category,priority:1"`
	Period           *perioddomain.ReportingPeriod `gorm:"foreignKey:PeriodID"`
	Category         schema.Category               `gorm:"type:varchar(32);not null;index:idx_report_batches_period_category,priority:2;index:idx_report_batches_category_status,priority:1"`
	FileName         string                        `gorm:"type:text;not null"`
	OriginalFileName string                        `gorm:"type:text;not null"`
	FilePath         string                        `gorm:"type:text;not null"`
	FileSize         int64                         `gorm:"not null;default:0"`
	TotalRecords     int64                         `gorm:"not null;default:0"`
	ProcessedRecords int64                         `gorm:"not null;default:0"`
	FailedRecords    int64                         `gorm:"not null;default:0"`
	Status           Status                        `gorm:"type:varchar(20);not null;default:'pending';index:idx_report_batches_category_status,priority:2"`
	UploadedBy       string                        `gorm:"type:text;not null"`
	ProcessedAt      *time.Time
	ErrorMessage     *string                       `gorm:"type:text"`
	Data             datatypes.JSONType[Data]
	Summary          ingest.Summary                `gorm:"embedded;embeddedPrefix:summary_"`
	IsActive         bool                          `gorm:"not null;default:true;index"`
	CreatedAt        time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt        time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReportBatch) TableName() string { return "report_batches" }

// Records returns the parsed records of the batch category.
func (b *ReportBatch) Records() []schema.Record {
	return b.Data.Data().Records(b.Category)
}
