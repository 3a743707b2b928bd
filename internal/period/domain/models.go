package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind groups reporting periods by the family of reports filed under them.
type Kind string

const (
	KindAnalytics Kind = "analytics"
	KindRoyalty   Kind = "royalty"
	KindBonus     Kind = "bonus"
)

var Kinds = []Kind{KindAnalytics, KindRoyalty, KindBonus}

func (k Kind) Valid() bool {
	switch k {
	case KindAnalytics, KindRoyalty, KindBonus:
		return true
	default:
		return false
	}
}

// ReportingPeriod is the month a report batch belongs to.
type ReportingPeriod struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Label       string       `json:"label" gorm:"type:varchar(10);not null;uniqueIndex:ux_reporting_periods_label_kind,priority:1"`
	DisplayName string       `json:"displayName" gorm:"type:varchar(50);not null"`
	Kind        Kind         `json:"kind" gorm:"type:varchar(20);not null;uniqueIndex:ux_reporting_periods_label_kind,priority:2;index:idx_reporting_periods_kind_active,priority:1"`
	IsActive    bool         `json:"isActive" gorm:"not null;default:true;index:idx_reporting_periods_kind_active,priority:2"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updatedAt" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReportingPeriod) TableName() string { return "reporting_periods" }
