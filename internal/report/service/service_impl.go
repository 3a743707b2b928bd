package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/clock"
	"github.com/smallbiznis/tunedesk/internal/config"
	"github.com/smallbiznis/tunedesk/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var adminSortColumns = map[string]string{
	"createdAt":        "created_at",
	"updatedAt":        "updated_at",
	"originalFileName": "original_file_name",
	"category":         "category",
	"status":           "status",
	"totalRecords":     "total_records",
}

var availableSortColumns = map[string]string{
	"createdAt":    "created_at",
	"processedAt":  "processed_at",
	"totalRecords": "total_records",
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          reportdomain.Repository
	Periods       perioddomain.Service
	Pipeline      *ingest.Pipeline
	Limits        *config.ReportConfigHolder
	Clock         clock.Clock            `optional:"true"`
	Metrics       *metrics.Metrics       `optional:"true"`
	IngestMetrics *metrics.IngestMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          reportdomain.Repository
	periods       perioddomain.Service
	pipeline      *ingest.Pipeline
	limits        *config.ReportConfigHolder
	clock         clock.Clock
	metrics       *metrics.Metrics
	ingestMetrics *metrics.IngestMetrics
}

func New(p Params) reportdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	limits := p.Limits
	if limits == nil {
		limits = config.NewStaticReportConfigHolder(config.DefaultReportConfig())
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("report.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		periods:       p.Periods,
		pipeline:      p.Pipeline,
		limits:        limits,
		clock:         clk,
		metrics:       p.Metrics,
		ingestMetrics: p.IngestMetrics,
	}
}

// Upload registers a stored file as a batch and ingests it synchronously.
// When ingestion fails the failed batch is returned together with an error
// wrapping ErrIngestionFailed.
func (s *Service) Upload(ctx context.Context, req reportdomain.UploadRequest) (*reportdomain.BatchResponse, error) {
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	periodID, err := reportdomain.ParseID(strings.TrimSpace(req.PeriodID))
	if err != nil {
		return nil, reportdomain.ErrInvalidPeriod
	}
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return nil, reportdomain.ErrInvalidFile
	}
	uploadedBy := strings.TrimSpace(req.UploadedBy)
	if uploadedBy == "" {
		return nil, reportdomain.ErrInvalidUploader
	}

	if _, err := s.periods.GetActive(ctx, periodID); err != nil {
		if errors.Is(err, perioddomain.ErrInactive) {
			return nil, perioddomain.ErrNotFound
		}
		return nil, err
	}

	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = filepath.Base(filePath)
	}
	originalName := strings.TrimSpace(req.OriginalFileName)
	if originalName == "" {
		originalName = fileName
	}

	now := s.clock.Now()
	batch := &reportdomain.ReportBatch{
		ID:               s.genID.Generate(),
		PeriodID:         periodID,
		Category:         category,
		FileName:         fileName,
		OriginalFileName: originalName,
		FilePath:         filePath,
		FileSize:         req.FileSize,
		Status:           reportdomain.StatusPending,
		UploadedBy:       uploadedBy,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, s.db, batch); err != nil {
		return nil, err
	}

	log := s.log.With(
		zap.String("batch_id", batch.ID.String()),
		zap.String("category", category.String()),
		zap.String("uploaded_by", uploadedBy),
	)
	log.Info("report batch created", zap.String("file", originalName), zap.Int64("size", req.FileSize))

	if err := s.repo.MarkProcessing(ctx, s.db, batch.ID, s.clock.Now()); err != nil {
		return s.fail(ctx, log, batch, err, 0)
	}
	s.ingestMetrics.IncTransition(string(reportdomain.StatusPending), string(reportdomain.StatusProcessing))

	started := time.Now()
	result, err := s.ingestFile(ctx, filePath, category, req.StrictHeaders)
	if err != nil {
		return s.fail(ctx, log, batch, err, time.Since(started))
	}

	completion := reportdomain.Completion{
		Data:             reportdomain.NewData(category, result.Records),
		Summary:          result.Summary,
		TotalRecords:     int64(len(result.Records)),
		ProcessedRecords: int64(len(result.Records)),
		FailedRecords:    int64(result.Stats.RowsSkipped),
		ProcessedAt:      s.clock.Now(),
	}
	if err := s.repo.MarkCompleted(ctx, s.db, batch.ID, completion); err != nil {
		return s.fail(ctx, log, batch, err, time.Since(started))
	}

	s.ingestMetrics.IncTransition(string(reportdomain.StatusProcessing), string(reportdomain.StatusCompleted))
	s.ingestMetrics.ObserveRun(category.String(), string(reportdomain.StatusCompleted), time.Since(started))
	s.ingestMetrics.AddRows(category.String(), result.Stats)
	s.metrics.RecordUpload(ctx, category.String(), string(reportdomain.StatusCompleted))
	s.metrics.RecordIngestedRecords(ctx, category.String(), len(result.Records))

	log.Info("report batch completed",
		zap.Int64("records", completion.TotalRecords),
		zap.Int64("skipped_rows", completion.FailedRecords),
		zap.Float64("total_revenue", result.Summary.TotalRevenue),
	)
	return s.reload(ctx, batch.ID)
}

func (s *Service) ingestFile(ctx context.Context, path string, category schema.Category, strict bool) (*ingest.Result, error) {
	if strict {
		report, err := s.pipeline.ValidateHeaders(ctx, path, category)
		if err != nil {
			return nil, err
		}
		if !report.Valid {
			return nil, fmt.Errorf("%w: %s", ingest.ErrMissingHeaders, strings.Join(report.Missing, ", "))
		}
	}
	return s.pipeline.Ingest(ctx, path, category)
}

func (s *Service) fail(ctx context.Context, log *zap.Logger, batch *reportdomain.ReportBatch, cause error, elapsed time.Duration) (*reportdomain.BatchResponse, error) {
	// The failure must be recorded even when the request context is gone.
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.MarkFailed(ctx, s.db, batch.ID, cause.Error(), s.clock.Now()); err != nil {
		if !errors.Is(err, reportdomain.ErrInvalidTransition) {
			log.Error("mark batch failed", zap.Error(err))
			return nil, err
		}
		// Already finished elsewhere, typically by the stale batch sweeper.
		log.Warn("report batch finished concurrently", zap.Error(cause))
		resp, rerr := s.reload(ctx, batch.ID)
		if rerr != nil {
			return nil, rerr
		}
		return resp, fmt.Errorf("%w: %w", reportdomain.ErrIngestionFailed, cause)
	}

	category := batch.Category.String()
	s.ingestMetrics.IncTransition(string(reportdomain.StatusProcessing), string(reportdomain.StatusFailed))
	s.ingestMetrics.ObserveRun(category, string(reportdomain.StatusFailed), elapsed)
	s.ingestMetrics.IncFailure(category, cause)
	s.metrics.RecordUpload(ctx, category, string(reportdomain.StatusFailed))

	log.Warn("report batch failed", zap.Error(cause))

	resp, err := s.reload(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	return resp, fmt.Errorf("%w: %w", reportdomain.ErrIngestionFailed, cause)
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (*reportdomain.BatchResponse, error) {
	batch, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, reportdomain.ErrNotFound
	}
	return toBatchResponse(batch), nil
}

func (s *Service) ValidateFile(ctx context.Context, req reportdomain.ValidateRequest) (*ingest.HeaderReport, error) {
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(req.FilePath)
	if path == "" {
		return nil, reportdomain.ErrInvalidFile
	}
	return s.pipeline.ValidateHeaders(ctx, path, category)
}

func (s *Service) List(ctx context.Context, req reportdomain.ListRequest) (*reportdomain.ListResponse, error) {
	limits := s.limits.Get()
	page, limit, err := resolvePage(req.Page, req.Limit, limits.List)
	if err != nil {
		return nil, err
	}

	filter := reportdomain.ListFilter{
		Search: req.Search,
		Page:   pagination.Pagination{Page: page, Limit: limit},
	}
	if raw := strings.TrimSpace(req.PeriodID); raw != "" {
		periodID, err := reportdomain.ParseID(raw)
		if err != nil {
			return nil, reportdomain.ErrInvalidPeriod
		}
		filter.PeriodID = periodID
	}
	if strings.TrimSpace(req.Category) != "" {
		if filter.Category, err = parseCategory(req.Category); err != nil {
			return nil, err
		}
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := reportdomain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, reportdomain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if filter.Sort, err = resolveSort(req.SortBy, req.SortOrder, adminSortColumns); err != nil {
		return nil, err
	}

	batches, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	reports := make([]reportdomain.BatchResponse, 0, len(batches))
	for i := range batches {
		reports = append(reports, *toBatchResponse(&batches[i]))
	}
	return &reportdomain.ListResponse{
		Reports:    reports,
		Pagination: pagination.BuildPageInfo(total, page, limit),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*reportdomain.BatchResponse, error) {
	batchID, err := reportdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, reportdomain.ErrInvalidID
	}
	return s.reload(ctx, batchID)
}

// Delete deactivates a batch. The stored file is left in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	batchID, err := reportdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return reportdomain.ErrInvalidID
	}
	deleted, err := s.repo.SoftDelete(ctx, s.db, batchID, s.clock.Now())
	if err != nil {
		return err
	}
	if !deleted {
		return reportdomain.ErrNotFound
	}
	s.log.Info("report batch deactivated", zap.String("batch_id", batchID.String()))
	return nil
}

func (s *Service) ListAvailable(ctx context.Context, req reportdomain.AvailableRequest) ([]reportdomain.ReportInfo, error) {
	limit, ok := s.limits.Get().Available.Clamp(req.Limit)
	if !ok {
		return nil, reportdomain.ErrInvalidLimit
	}

	filter := reportdomain.ListFilter{
		Status: reportdomain.StatusCompleted,
		Page:   pagination.Pagination{Page: 1, Limit: limit},
	}
	var err error
	if strings.TrimSpace(req.Category) != "" {
		if filter.Category, err = parseCategory(req.Category); err != nil {
			return nil, err
		}
	}
	if filter.Sort, err = resolveSort(req.SortBy, req.SortOrder, availableSortColumns); err != nil {
		return nil, err
	}

	batches, _, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return toReportInfos(batches), nil
}

func (s *Service) ListByCategory(ctx context.Context, req reportdomain.CategoryListRequest) (*reportdomain.ReportListResponse, error) {
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	page, limit, err := resolvePage(req.Page, req.Limit, s.limits.Get().List)
	if err != nil {
		return nil, err
	}

	batches, total, err := s.repo.List(ctx, s.db, reportdomain.ListFilter{
		Category: category,
		Status:   reportdomain.StatusCompleted,
		Search:   req.Search,
		Sort:     option.SortBy{Column: "created_at", Desc: true},
		Page:     pagination.Pagination{Page: page, Limit: limit},
	})
	if err != nil {
		return nil, err
	}
	return &reportdomain.ReportListResponse{
		Reports:    toReportInfos(batches),
		Pagination: pagination.BuildPageInfo(total, page, limit),
	}, nil
}

func (s *Service) ListByPeriod(ctx context.Context, periodID string) (*reportdomain.PeriodReportsResponse, error) {
	id, err := reportdomain.ParseID(strings.TrimSpace(periodID))
	if err != nil {
		return nil, reportdomain.ErrInvalidPeriod
	}
	period, err := s.periods.Get(ctx, id.String())
	if err != nil {
		return nil, err
	}

	batches, err := s.repo.FindByPeriod(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	completed := make([]reportdomain.ReportBatch, 0, len(batches))
	for _, b := range batches {
		if b.Status == reportdomain.StatusCompleted {
			completed = append(completed, b)
		}
	}

	return &reportdomain.PeriodReportsResponse{
		PeriodInfo: reportdomain.PeriodInfo{
			ID:          period.ID,
			Label:       period.Label,
			DisplayName: period.DisplayName,
			Kind:        period.Kind,
		},
		Reports: toReportInfos(completed),
	}, nil
}

func (s *Service) Summary(ctx context.Context, id string) (*reportdomain.SummaryResponse, error) {
	batch, err := s.loadCompleted(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return &reportdomain.SummaryResponse{
		ID:           batch.ID.String(),
		Category:     batch.Category,
		PeriodInfo:   toPeriodInfo(batch.Period),
		TotalRecords: batch.TotalRecords,
		Summary:      batch.Summary,
		ProcessedAt:  batch.ProcessedAt,
		CreatedAt:    batch.CreatedAt,
	}, nil
}

// loadCompleted returns an active completed batch; anything else reads as not found.
func (s *Service) loadCompleted(ctx context.Context, id string, withData bool) (*reportdomain.ReportBatch, error) {
	batchID, err := reportdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, reportdomain.ErrInvalidID
	}
	batch, err := s.repo.FindByID(ctx, s.db, batchID, withData)
	if err != nil {
		return nil, err
	}
	if batch == nil || batch.Status != reportdomain.StatusCompleted {
		return nil, reportdomain.ErrNotFound
	}
	return batch, nil
}

func parseCategory(raw string) (schema.Category, error) {
	category, err := schema.ParseCategory(raw)
	if err != nil {
		return "", reportdomain.ErrInvalidCategory
	}
	return category, nil
}

// resolvePage applies defaults and bounds to a page request.
func resolvePage(page, limit int, bounds config.PageLimit) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, 0, reportdomain.ErrInvalidPage
	}
	resolved, ok := bounds.Clamp(limit)
	if !ok {
		return 0, 0, reportdomain.ErrInvalidLimit
	}
	return page, resolved, nil
}

func resolveSort(sortBy, sortOrder string, allowed map[string]string) (option.SortBy, error) {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if _, ok := allowed[sortBy]; !ok {
		return option.SortBy{}, reportdomain.ErrInvalidSortField
	}
	order := strings.ToLower(strings.TrimSpace(sortOrder))
	if order == "" {
		order = "desc"
	}
	if order != "asc" && order != "desc" {
		return option.SortBy{}, reportdomain.ErrInvalidSortOrder
	}
	return option.WithQuerySortBy(sortBy, order, allowed), nil
}

func toPeriodInfo(p *perioddomain.ReportingPeriod) *reportdomain.PeriodInfo {
	if p == nil || p.ID == 0 {
		return nil
	}
	return &reportdomain.PeriodInfo{
		ID:          p.ID.String(),
		Label:       p.Label,
		DisplayName: p.DisplayName,
		Kind:        p.Kind,
	}
}

func toBatchResponse(b *reportdomain.ReportBatch) *reportdomain.BatchResponse {
	return &reportdomain.BatchResponse{
		ID:               b.ID.String(),
		PeriodID:         b.PeriodID.String(),
		PeriodInfo:       toPeriodInfo(b.Period),
		Category:         b.Category,
		FileName:         b.FileName,
		OriginalFileName: b.OriginalFileName,
		FileSize:         b.FileSize,
		TotalRecords:     b.TotalRecords,
		ProcessedRecords: b.ProcessedRecords,
		FailedRecords:    b.FailedRecords,
		Status:           b.Status,
		UploadedBy:       b.UploadedBy,
		ProcessedAt:      b.ProcessedAt,
		ErrorMessage:     b.ErrorMessage,
		Summary:          b.Summary,
		IsActive:         b.IsActive,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func toReportInfos(batches []reportdomain.ReportBatch) []reportdomain.ReportInfo {
	out := make([]reportdomain.ReportInfo, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		out = append(out, reportdomain.ReportInfo{
			ID:               b.ID.String(),
			PeriodInfo:       toPeriodInfo(b.Period),
			Category:         b.Category,
			OriginalFileName: b.OriginalFileName,
			FileSize:         b.FileSize,
			TotalRecords:     b.TotalRecords,
			Summary:          b.Summary,
			CreatedAt:        b.CreatedAt,
			ProcessedAt:      b.ProcessedAt,
		})
	}
	return out
}
