package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
)

// Service covers batch intake, administration and record reads.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*BatchResponse, error)
	ValidateFile(ctx context.Context, req ValidateRequest) (*ingest.HeaderReport, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*BatchResponse, error)
	Delete(ctx context.Context, id string) error
	ListAvailable(ctx context.Context, req AvailableRequest) ([]ReportInfo, error)
	ListByCategory(ctx context.Context, req CategoryListRequest) (*ReportListResponse, error)
	ListByPeriod(ctx context.Context, periodID string) (*PeriodReportsResponse, error)
	Summary(ctx context.Context, id string) (*SummaryResponse, error)
	Data(ctx context.Context, id string, req DataRequest) (*DataResponse, error)
	Search(ctx context.Context, id string, req SearchRequest) (*SearchResponse, error)
}

// InsightService aggregates across every completed batch.
type InsightService interface {
	Rollup(ctx context.Context, scope string) (*RollupResponse, error)
	TopTracks(ctx context.Context, limit int) ([]TrackPerformance, error)
	MonthlyTrends(ctx context.Context, category string) ([]MonthlyTrend, error)
	ProcessingStatus(ctx context.Context) (map[Status]StatusTotals, error)
}

type UploadRequest struct {
	PeriodID         string
	Category         string
	FileName         string
	OriginalFileName string
	FilePath         string
	FileSize         int64
	UploadedBy       string
	StrictHeaders    bool
}

type ValidateRequest struct {
	FilePath string
	Category string
}

type ListRequest struct {
	pagination.Pagination
	PeriodID  string
	Category  string
	Status    string
	Search    string
	SortBy    string
	SortOrder string
}

type AvailableRequest struct {
	Category  string
	Limit     int
	SortBy    string
	SortOrder string
}

type CategoryListRequest struct {
	pagination.Pagination
	Category string
	Search   string
}

type DataRequest struct {
	pagination.Pagination
	Search    string
	SortBy    string
	SortOrder string
}

type SearchRequest struct {
	pagination.Pagination
	Search string
	Field  string
}

type PeriodInfo struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	DisplayName string            `json:"displayName"`
	Kind        perioddomain.Kind `json:"kind"`
}

// BatchResponse is the administrative view of a batch.
type BatchResponse struct {
	ID               string          `json:"id"`
	PeriodID         string          `json:"periodId"`
	PeriodInfo       *PeriodInfo     `json:"periodInfo,omitempty"`
	Category         schema.Category `json:"category"`
	FileName         string          `json:"fileName"`
	OriginalFileName string          `json:"originalFileName"`
	FileSize         int64           `json:"fileSize"`
	TotalRecords     int64           `json:"totalRecords"`
	ProcessedRecords int64           `json:"processedRecords"`
	FailedRecords    int64           `json:"failedRecords"`
	Status           Status          `json:"status"`
	UploadedBy       string          `json:"uploadedBy"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
	ErrorMessage     *string         `json:"errorMessage,omitempty"`
	Summary          ingest.Summary  `json:"summary"`
	IsActive         bool            `json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type ListResponse struct {
	Reports    []BatchResponse     `json:"reports"`
	Pagination pagination.PageInfo `json:"pagination"`
}

// ReportInfo is the public listing view of a completed batch.
type ReportInfo struct {
	ID               string          `json:"id"`
	PeriodInfo       *PeriodInfo     `json:"periodInfo"`
	Category         schema.Category `json:"category"`
	OriginalFileName string          `json:"originalFileName"`
	FileSize         int64           `json:"fileSize"`
	TotalRecords     int64           `json:"totalRecords"`
	Summary          ingest.Summary  `json:"summary"`
	CreatedAt        time.Time       `json:"createdAt"`
	ProcessedAt      *time.Time      `json:"processedAt,omitempty"`
}

type ReportListResponse struct {
	Reports    []ReportInfo        `json:"reports"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type PeriodReportsResponse struct {
	PeriodInfo PeriodInfo   `json:"periodInfo"`
	Reports    []ReportInfo `json:"reports"`
}

type SummaryResponse struct {
	ID           string          `json:"id"`
	Category     schema.Category `json:"category"`
	PeriodInfo   *PeriodInfo     `json:"periodInfo"`
	TotalRecords int64           `json:"totalRecords"`
	Summary      ingest.Summary  `json:"summary"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type DataResponse struct {
	PeriodInfo   *PeriodInfo         `json:"periodInfo"`
	Category     schema.Category     `json:"category"`
	TotalRecords int64               `json:"totalRecords"`
	Summary      ingest.Summary      `json:"summary"`
	ProcessedAt  *time.Time          `json:"processedAt,omitempty"`
	Records      []schema.Record     `json:"records"`
	Pagination   pagination.PageInfo `json:"pagination"`
}

type SearchResponse struct {
	SearchQuery string              `json:"searchQuery"`
	SearchField string              `json:"searchField"`
	Records     []schema.Record     `json:"records"`
	Pagination  pagination.PageInfo `json:"pagination"`
}

// CategoryRollup is the lifetime aggregate of one category. Extras are set
// only for the categories that carry them.
type CategoryRollup struct {
	Category         schema.Category `json:"category"`
	ReportsCount     int64           `json:"reportsCount"`
	TotalRecords     int64           `json:"totalRecords"`
	TotalImpressions float64         `json:"totalImpressions"`
	TotalUnits       float64         `json:"totalUnits"`
	TotalRevenue     float64         `json:"totalRevenue"`
	ActiveRecords    int64           `json:"activeRecords"`
	TotalBonus       *float64        `json:"totalBonus,omitempty"`
	TotalCommission  *float64        `json:"totalCommission,omitempty"`
	TotalPayoutInr   *float64        `json:"totalPayoutInr,omitempty"`
}

type OverallRollup struct {
	TotalReports       int64   `json:"totalReports"`
	TotalRecords       int64   `json:"totalRecords"`
	TotalRevenue       float64 `json:"totalRevenue"`
	TotalActiveRecords int64   `json:"totalActiveRecords"`
}

type RollupResponse struct {
	Analytics *CategoryRollup `json:"analytics,omitempty"`
	Royalty   *CategoryRollup `json:"royalty,omitempty"`
	Bonus     *CategoryRollup `json:"bonus,omitempty"`
	MCN       *CategoryRollup `json:"mcn,omitempty"`
	Overall   OverallRollup   `json:"overall"`
}

type TrackPerformance struct {
	Artist       string   `json:"artist"`
	TrackTitle   string   `json:"trackTitle"`
	AlbumTitle   string   `json:"albumTitle,omitempty"`
	TotalUnits   float64  `json:"totalUnits"`
	Services     []string `json:"services"`
	ServiceCount int      `json:"serviceCount"`
}

type MonthlyTrend struct {
	Label        string  `json:"label"`
	DisplayName  string  `json:"displayName"`
	TotalRecords int64   `json:"totalRecords"`
	TotalRevenue float64 `json:"totalRevenue"`
	ReportCount  int64   `json:"reportCount"`
}

type StatusTotals struct {
	Count        int64 `json:"count"`
	TotalRecords int64 `json:"totalRecords"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidCategory   = errors.New("invalid_category")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPage       = errors.New("invalid_page")
	ErrInvalidLimit      = errors.New("invalid_limit")
	ErrInvalidSortField  = errors.New("invalid_sort_field")
	ErrInvalidSortOrder  = errors.New("invalid_sort_order")
	ErrInvalidField      = errors.New("invalid_field")
	ErrInvalidFile       = errors.New("invalid_file")
	ErrInvalidUploader   = errors.New("invalid_uploaded_by")
	ErrMissingSearchTerm = errors.New("missing_search_term")
	ErrNotFound          = errors.New("not_found")
	ErrIngestionFailed   = errors.New("ingestion_failed")
	ErrInvalidTransition = errors.New("invalid_status_transition")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
