package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetActive(ctx context.Context, id snowflake.ID) (*ReportingPeriod, error)
	ListActiveByKind(ctx context.Context, kind string, includeInactive bool) ([]Response, error)
	ListActiveGrouped(ctx context.Context) (*GroupedResponse, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string) (*Response, error)
	ToggleStatus(ctx context.Context, id string) (*Response, error)
	Stats(ctx context.Context) (*StatsResponse, error)
}

type CreateRequest struct {
	Label       string `json:"label"`
	DisplayName string `json:"displayName"`
	Kind        string `json:"kind"`
	IsActive    *bool  `json:"isActive"`
}

type UpdateRequest struct {
	ID          string  `json:"-"`
	Label       *string `json:"label,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	Kind      string
	IsActive  *bool
	Search    string
	SortBy    string
	SortOrder string
}

type Response struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	DisplayName string    `json:"displayName"`
	Kind        Kind      `json:"kind"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ListResponse struct {
	Periods    []Response          `json:"periods"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type GroupedResponse struct {
	Analytics []Response `json:"analytics"`
	Royalty   []Response `json:"royalty"`
	Bonus     []Response `json:"bonus"`
}

type KindStats struct {
	Kind   Kind  `json:"kind"`
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

type StatsResponse struct {
	Total    int64       `json:"total"`
	Active   int64       `json:"active"`
	Inactive int64       `json:"inactive"`
	ByKind   []KindStats `json:"byKind"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidLabel       = errors.New("invalid_label")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrInvalidKind        = errors.New("invalid_kind")
	ErrInvalidPage        = errors.New("invalid_page")
	ErrInvalidLimit       = errors.New("invalid_limit")
	ErrInvalidSortField   = errors.New("invalid_sort_field")
	ErrInvalidSortOrder   = errors.New("invalid_sort_order")
	ErrEmptyUpdate        = errors.New("invalid_update")
	ErrNotFound           = errors.New("not_found")
	ErrInactive           = errors.New("period_inactive")
	ErrDuplicate          = errors.New("duplicate_period")
	ErrPeriodInUse        = errors.New("period_in_use")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
