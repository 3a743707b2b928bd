package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes a change to record. Actor and account default to the request context.
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

type ListRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListResponse struct {
	AuditLogs  []AuditLog          `json:"auditLogs"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type ListFilter struct {
	AccountID  string
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Page       pagination.Pagination
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, int64, error)
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidLimit     = errors.New("invalid_limit")
	ErrInvalidPage      = errors.New("invalid_page")
)
