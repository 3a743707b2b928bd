package service

import (
	"context"
	"slices"
	"strings"

	"github.com/smallbiznis/tunedesk/internal/config"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const unknownPeriodLabel = "Unknown"

const rollupScopeAll = "all"

type InsightParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   reportdomain.Repository
	Limits *config.ReportConfigHolder
}

// Insights computes cross-batch aggregates over completed, active batches.
type Insights struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   reportdomain.Repository
	limits *config.ReportConfigHolder
}

func NewInsights(p InsightParams) reportdomain.InsightService {
	limits := p.Limits
	if limits == nil {
		limits = config.NewStaticReportConfigHolder(config.DefaultReportConfig())
	}
	return &Insights{
		db:     p.DB,
		log:    p.Log.Named("report.insights"),
		repo:   p.Repo,
		limits: limits,
	}
}

// Rollup aggregates one category, or every category when scope is empty or "all".
func (s *Insights) Rollup(ctx context.Context, scope string) (*reportdomain.RollupResponse, error) {
	categories := schema.Categories
	scope = strings.TrimSpace(scope)
	if scope != "" && !strings.EqualFold(scope, rollupScopeAll) {
		category, err := parseCategory(scope)
		if err != nil {
			return nil, err
		}
		categories = []schema.Category{category}
	}

	rows, err := s.repo.CategoryTotals(ctx, s.db)
	if err != nil {
		return nil, err
	}
	totals := make(map[schema.Category]reportdomain.CategoryTotals, len(rows))
	for _, row := range rows {
		totals[row.Category] = row
	}

	resp := &reportdomain.RollupResponse{}
	for _, category := range categories {
		rollup, err := s.categoryRollup(ctx, category, totals[category])
		if err != nil {
			return nil, err
		}

		resp.Overall.TotalReports += rollup.ReportsCount
		resp.Overall.TotalRecords += rollup.TotalRecords
		resp.Overall.TotalRevenue += rollup.TotalRevenue
		resp.Overall.TotalActiveRecords += rollup.ActiveRecords

		switch category {
		case schema.CategoryAnalytics:
			resp.Analytics = rollup
		case schema.CategoryRoyalty:
			resp.Royalty = rollup
		case schema.CategoryBonusRoyalty:
			resp.Bonus = rollup
		case schema.CategoryMCN:
			resp.MCN = rollup
		}
	}
	return resp, nil
}

func (s *Insights) categoryRollup(ctx context.Context, category schema.Category, t reportdomain.CategoryTotals) (*reportdomain.CategoryRollup, error) {
	rollup := &reportdomain.CategoryRollup{
		Category:      category,
		ReportsCount:  t.Reports,
		TotalRecords:  t.TotalRecords,
		ActiveRecords: t.ActiveRecords,
	}

	switch category {
	case schema.CategoryAnalytics:
		rollup.TotalImpressions = t.TotalImpressions
		rollup.TotalUnits = t.TotalUnits
	case schema.CategoryRoyalty:
		rollup.TotalImpressions = t.TotalUnits
		rollup.TotalUnits = t.TotalUnits
		rollup.TotalRevenue = t.TotalRevenue
	case schema.CategoryBonusRoyalty:
		rollup.TotalImpressions = t.TotalUnits
		rollup.TotalUnits = t.TotalUnits
		rollup.TotalRevenue = t.TotalRevenue
		sums, err := s.sumFields(ctx, category, schema.FieldBonus)
		if err != nil {
			return nil, err
		}
		rollup.TotalBonus = &sums[0]
	case schema.CategoryMCN:
		rollup.TotalRevenue = t.TotalRevenue
		sums, err := s.sumFields(ctx, category, schema.FieldMvCommission, schema.FieldPayoutRevenueInr)
		if err != nil {
			return nil, err
		}
		rollup.TotalCommission = &sums[0]
		rollup.TotalPayoutInr = &sums[1]
	}
	return rollup, nil
}

// sumFields totals record-level fields that have no stored summary column.
func (s *Insights) sumFields(ctx context.Context, category schema.Category, fields ...string) ([]float64, error) {
	batches, err := s.repo.FindCompleted(ctx, s.db, category, true)
	if err != nil {
		return nil, err
	}
	sums := make([]float64, len(fields))
	for i := range batches {
		for _, rec := range batches[i].Records() {
			for j, field := range fields {
				sums[j] += rec.NumberOrZero(field)
			}
		}
	}
	return sums, nil
}

type trackKey struct {
	artist string
	track  string
}

// TopTracks ranks analytics (artist, track) pairs by summed units. Ties keep
// the order in which pairs were first seen.
func (s *Insights) TopTracks(ctx context.Context, limit int) ([]reportdomain.TrackPerformance, error) {
	n, ok := s.limits.Get().TopTracks.Clamp(limit)
	if !ok {
		return nil, reportdomain.ErrInvalidLimit
	}

	batches, err := s.repo.FindCompleted(ctx, s.db, schema.CategoryAnalytics, true)
	if err != nil {
		return nil, err
	}

	var records []schema.Record
	for i := range batches {
		records = append(records, batches[i].Records()...)
	}
	return rankTracks(records, n), nil
}

func rankTracks(records []schema.Record, n int) []reportdomain.TrackPerformance {
	index := make(map[trackKey]int)
	tracks := make([]reportdomain.TrackPerformance, 0)
	seen := make([]map[string]struct{}, 0)

	for _, rec := range records {
		artist, _ := rec.Text(schema.FieldArtist)
		title, _ := rec.Text(schema.FieldTrackTitle)
		key := trackKey{artist: artist, track: title}

		pos, ok := index[key]
		if !ok {
			album, _ := rec.Text(schema.FieldAlbumTitle)
			pos = len(tracks)
			index[key] = pos
			tracks = append(tracks, reportdomain.TrackPerformance{
				Artist:     artist,
				TrackTitle: title,
				AlbumTitle: album,
				Services:   []string{},
			})
			seen = append(seen, map[string]struct{}{})
		}

		track := &tracks[pos]
		track.TotalUnits += rec.NumberOrZero(schema.FieldTotalUnits)
		if service, ok := rec.Text(schema.FieldMusicService); ok && service != "" {
			if _, dup := seen[pos][service]; !dup {
				seen[pos][service] = struct{}{}
				track.Services = append(track.Services, service)
			}
		}
	}

	for i := range tracks {
		tracks[i].ServiceCount = len(tracks[i].Services)
	}
	slices.SortStableFunc(tracks, func(a, b reportdomain.TrackPerformance) int {
		switch {
		case a.TotalUnits > b.TotalUnits:
			return -1
		case a.TotalUnits < b.TotalUnits:
			return 1
		default:
			return 0
		}
	})
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	return tracks
}

// MonthlyTrends groups completed batches by period label, ascending.
func (s *Insights) MonthlyTrends(ctx context.Context, category string) ([]reportdomain.MonthlyTrend, error) {
	var filter schema.Category
	if strings.TrimSpace(category) != "" {
		parsed, err := parseCategory(category)
		if err != nil {
			return nil, err
		}
		filter = parsed
	}

	batches, err := s.repo.FindCompleted(ctx, s.db, filter, false)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	trends := make([]reportdomain.MonthlyTrend, 0)
	for i := range batches {
		b := &batches[i]
		label := unknownPeriodLabel
		displayName := ""
		if b.Period != nil && b.Period.ID != 0 {
			label = b.Period.Label
			displayName = b.Period.DisplayName
		}
		if displayName == "" {
			displayName = label
		}

		pos, ok := index[label]
		if !ok {
			pos = len(trends)
			index[label] = pos
			trends = append(trends, reportdomain.MonthlyTrend{Label: label, DisplayName: displayName})
		}
		trends[pos].TotalRecords += b.TotalRecords
		trends[pos].TotalRevenue += b.Summary.TotalRevenue
		trends[pos].ReportCount++
	}

	slices.SortStableFunc(trends, func(a, b reportdomain.MonthlyTrend) int {
		return strings.Compare(a.Label, b.Label)
	})
	return trends, nil
}

// ProcessingStatus counts active batches per status, including empty statuses.
func (s *Insights) ProcessingStatus(ctx context.Context) (map[reportdomain.Status]reportdomain.StatusTotals, error) {
	rows, err := s.repo.StatusCounts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[reportdomain.Status]reportdomain.StatusTotals, len(reportdomain.Statuses))
	for _, status := range reportdomain.Statuses {
		out[status] = reportdomain.StatusTotals{}
	}
	for _, row := range rows {
		out[row.Status] = reportdomain.StatusTotals{Count: row.Count, TotalRecords: row.TotalRecords}
	}
	return out, nil
}
