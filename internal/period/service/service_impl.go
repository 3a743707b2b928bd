package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/clock"
	"github.com/smallbiznis/tunedesk/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/pkg/db"
	"github.com/smallbiznis/tunedesk/pkg/db/option"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxLabelLength       = 10
	maxDisplayNameLength = 50
	defaultListLimit     = 10
	maxListLimit         = 100
)

var labelPattern = regexp.MustCompile(`^[A-Za-z]{3}-\d{2}$`)

var sortColumns = map[string]string{
	"label":       "label",
	"displayName": "display_name",
	"kind":        "kind",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    perioddomain.Repository
	Clock   clock.Clock      `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    perioddomain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) perioddomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("period.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   clk,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req perioddomain.CreateRequest) (*perioddomain.Response, error) {
	label, err := normalizeLabel(req.Label)
	if err != nil {
		return nil, err
	}
	displayName, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return nil, err
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	existing, err := s.repo.FindByLabelAndKind(ctx, s.db, label, kind)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, perioddomain.ErrDuplicate
	}

	now := s.clock.Now()
	period := &perioddomain.ReportingPeriod{
		ID:          s.genID.Generate(),
		Label:       label,
		DisplayName: displayName,
		Kind:        kind,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, period); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, perioddomain.ErrDuplicate
		}
		return nil, err
	}

	s.log.Info("reporting period created",
		zap.String("period_id", period.ID.String()),
		zap.String("label", label),
		zap.String("kind", string(kind)),
	)
	s.metrics.RecordPeriodChange(ctx, string(kind), "create")
	return toResponse(period), nil
}

func (s *Service) List(ctx context.Context, req perioddomain.ListRequest) (*perioddomain.ListResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, perioddomain.ErrInvalidPage
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 1 || limit > maxListLimit {
		return nil, perioddomain.ErrInvalidLimit
	}

	var kind perioddomain.Kind
	if strings.TrimSpace(req.Kind) != "" {
		parsed, err := parseKind(req.Kind)
		if err != nil {
			return nil, err
		}
		kind = parsed
	}

	sortBy := strings.TrimSpace(req.SortBy)
	if sortBy == "" {
		sortBy = "createdAt"
	}
	if _, ok := sortColumns[sortBy]; !ok {
		return nil, perioddomain.ErrInvalidSortField
	}
	sortOrder := strings.ToLower(strings.TrimSpace(req.SortOrder))
	if sortOrder == "" {
		sortOrder = "desc"
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, perioddomain.ErrInvalidSortOrder
	}

	items, total, err := s.repo.List(ctx, s.db, perioddomain.ListFilter{
		Kind:     kind,
		IsActive: req.IsActive,
		Search:   req.Search,
		Sort:     option.WithQuerySortBy(sortBy, sortOrder, sortColumns),
		Page:     pagination.Pagination{Page: page, Limit: limit},
	})
	if err != nil {
		return nil, err
	}

	return &perioddomain.ListResponse{
		Periods:    toResponses(items),
		Pagination: pagination.BuildPageInfo(total, page, limit),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*perioddomain.Response, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(period), nil
}

// GetActive returns the period only when it exists and accepts new batches.
func (s *Service) GetActive(ctx context.Context, id snowflake.ID) (*perioddomain.ReportingPeriod, error) {
	period, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrNotFound
	}
	if !period.IsActive {
		return nil, perioddomain.ErrInactive
	}
	return period, nil
}

func (s *Service) ListActiveByKind(ctx context.Context, kind string, includeInactive bool) ([]perioddomain.Response, error) {
	parsed, err := parseKind(kind)
	if err != nil {
		return nil, err
	}

	if includeInactive {
		items, _, err := s.repo.List(ctx, s.db, perioddomain.ListFilter{
			Kind: parsed,
			Sort: option.SortBy{Column: "created_at", Desc: true},
		})
		if err != nil {
			return nil, err
		}
		return toResponses(items), nil
	}

	items, err := s.repo.ListActive(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListActiveGrouped(ctx context.Context) (*perioddomain.GroupedResponse, error) {
	items, err := s.repo.ListActive(ctx, s.db, "")
	if err != nil {
		return nil, err
	}

	grouped := &perioddomain.GroupedResponse{
		Analytics: []perioddomain.Response{},
		Royalty:   []perioddomain.Response{},
		Bonus:     []perioddomain.Response{},
	}
	for i := range items {
		resp := *toResponse(&items[i])
		switch items[i].Kind {
		case perioddomain.KindAnalytics:
			grouped.Analytics = append(grouped.Analytics, resp)
		case perioddomain.KindRoyalty:
			grouped.Royalty = append(grouped.Royalty, resp)
		case perioddomain.KindBonus:
			grouped.Bonus = append(grouped.Bonus, resp)
		}
	}
	return grouped, nil
}

func (s *Service) Update(ctx context.Context, req perioddomain.UpdateRequest) (*perioddomain.Response, error) {
	if req.Label == nil && req.DisplayName == nil && req.Kind == nil && req.IsActive == nil {
		return nil, perioddomain.ErrEmptyUpdate
	}

	period, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	label := period.Label
	if req.Label != nil {
		if label, err = normalizeLabel(*req.Label); err != nil {
			return nil, err
		}
	}
	kind := period.Kind
	if req.Kind != nil {
		if kind, err = parseKind(*req.Kind); err != nil {
			return nil, err
		}
	}
	if req.DisplayName != nil {
		displayName, err := normalizeDisplayName(*req.DisplayName)
		if err != nil {
			return nil, err
		}
		period.DisplayName = displayName
	}
	if req.IsActive != nil {
		period.IsActive = *req.IsActive
	}

	if label != period.Label || kind != period.Kind {
		used, err := s.repo.CountBatches(ctx, s.db, period.ID)
		if err != nil {
			return nil, err
		}
		if used > 0 {
			return nil, perioddomain.ErrPeriodInUse
		}
		existing, err := s.repo.FindByLabelAndKind(ctx, s.db, label, kind)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != period.ID {
			return nil, perioddomain.ErrDuplicate
		}
		period.Label = label
		period.Kind = kind
	}

	period.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, period); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, perioddomain.ErrDuplicate
		}
		return nil, err
	}
	s.metrics.RecordPeriodChange(ctx, string(period.Kind), "update")
	return toResponse(period), nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (*perioddomain.Response, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !period.IsActive {
		return toResponse(period), nil
	}
	return s.setActive(ctx, period, false)
}

func (s *Service) ToggleStatus(ctx context.Context, id string) (*perioddomain.Response, error) {
	period, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.setActive(ctx, period, !period.IsActive)
}

func (s *Service) Stats(ctx context.Context) (*perioddomain.StatsResponse, error) {
	rows, err := s.repo.CountByKind(ctx, s.db)
	if err != nil {
		return nil, err
	}

	counts := make(map[perioddomain.Kind]perioddomain.KindCount, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row
	}

	stats := &perioddomain.StatsResponse{ByKind: make([]perioddomain.KindStats, 0, len(perioddomain.Kinds))}
	for _, kind := range perioddomain.Kinds {
		row := counts[kind]
		stats.Total += row.Total
		stats.Active += row.Active
		stats.ByKind = append(stats.ByKind, perioddomain.KindStats{
			Kind:   kind,
			Total:  row.Total,
			Active: row.Active,
		})
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

func (s *Service) setActive(ctx context.Context, period *perioddomain.ReportingPeriod, active bool) (*perioddomain.Response, error) {
	period.IsActive = active
	period.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, period); err != nil {
		return nil, err
	}
	s.log.Info("reporting period status changed",
		zap.String("period_id", period.ID.String()),
		zap.Bool("is_active", active),
	)
	action := "deactivate"
	if active {
		action = "activate"
	}
	s.metrics.RecordPeriodChange(ctx, string(period.Kind), action)
	return toResponse(period), nil
}

func (s *Service) load(ctx context.Context, id string) (*perioddomain.ReportingPeriod, error) {
	periodID, err := perioddomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, perioddomain.ErrInvalidID
	}
	period, err := s.repo.FindByID(ctx, s.db, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrNotFound
	}
	return period, nil
}

func normalizeLabel(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	if label == "" || utf8.RuneCountInString(label) > maxLabelLength || !labelPattern.MatchString(label) {
		return "", perioddomain.ErrInvalidLabel
	}
	return label, nil
}

func normalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", perioddomain.ErrInvalidDisplayName
	}
	return name, nil
}

func parseKind(raw string) (perioddomain.Kind, error) {
	kind := perioddomain.Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return "", perioddomain.ErrInvalidKind
	}
	return kind, nil
}

func toResponse(p *perioddomain.ReportingPeriod) *perioddomain.Response {
	return &perioddomain.Response{
		ID:          p.ID.String(),
		Label:       p.Label,
		DisplayName: p.DisplayName,
		Kind:        p.Kind,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toResponses(items []perioddomain.ReportingPeriod) []perioddomain.Response {
	out := make([]perioddomain.Response, 0, len(items))
	for i := range items {
		out = append(out, *toResponse(&items[i]))
	}
	return out
}
