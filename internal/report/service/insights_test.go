package service

import (
	"context"
	"errors"
	"testing"

	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankTracks(t *testing.T) {
	records := []schema.Record{
		{schema.FieldArtist: "A", schema.FieldTrackTitle: "T1", schema.FieldTotalUnits: 10.0, schema.FieldMusicService: "X"},
		{schema.FieldArtist: "A", schema.FieldTrackTitle: "T1", schema.FieldTotalUnits: 5.0, schema.FieldMusicService: "Y"},
		{schema.FieldArtist: "B", schema.FieldTrackTitle: "T2", schema.FieldTotalUnits: 3.0, schema.FieldMusicService: "X"},
	}

	got := rankTracks(records, 2)
	want := []reportdomain.TrackPerformance{
		{Artist: "A", TrackTitle: "T1", TotalUnits: 15, Services: []string{"X", "Y"}, ServiceCount: 2},
		{Artist: "B", TrackTitle: "T2", TotalUnits: 3, Services: []string{"X"}, ServiceCount: 1},
	}
	assert.Equal(t, want, got)

	assert.Len(t, rankTracks(records, 1), 1)
	assert.Empty(t, rankTracks(nil, 5))
}

func TestTopTracksAcrossBatches(t *testing.T) {
	f := newFixture(t)
	periodID := f.period(t, "Jan-24", "analytics")
	f.upload(t, periodID, schema.CategoryAnalytics, f.writeCSV(t, schema.CategoryAnalytics,
		analyticsRow("A", "T1", "X", "10"),
		analyticsRow("B", "T2", "X", "3"),
	))
	f.upload(t, periodID, schema.CategoryAnalytics, f.writeCSV(t, schema.CategoryAnalytics,
		analyticsRow("A", "T1", "Y", "5"),
	))

	top, err := f.insights.TopTracks(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "A", top[0].Artist)
	assert.Equal(t, 15.0, top[0].TotalUnits)
	assert.Equal(t, []string{"X", "Y"}, top[0].Services)

	_, err = f.insights.TopTracks(context.Background(), 1000)
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidLimit))
}

func TestRollupPerCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	royaltyPeriod := f.period(t, "Jan-24", "royalty")
	f.upload(t, royaltyPeriod, schema.CategoryRoyalty, f.writeCSV(t, schema.CategoryRoyalty,
		royaltyRow("A", "T1", "10", "4", "3"),
		royaltyRow("B", "T2", "2", "1", "1"),
	))

	bonusPeriod := f.period(t, "Jan-24", "bonus")
	f.upload(t, bonusPeriod, schema.CategoryBonusRoyalty, f.writeCSV(t, schema.CategoryBonusRoyalty,
		map[string]string{schema.FieldTotalUnits: "1", schema.FieldIncome: "2", schema.FieldBonus: "0.5"},
		map[string]string{schema.FieldTotalUnits: "1", schema.FieldIncome: "3", schema.FieldBonus: "1.5"},
	))

	f.upload(t, royaltyPeriod, schema.CategoryMCN, f.writeCSV(t, schema.CategoryMCN,
		map[string]string{schema.FieldRevenueUsd: "100", schema.FieldMvCommission: "10", schema.FieldPayoutRevenueInr: "7500"},
	))

	rollup, err := f.insights.Rollup(ctx, "all")
	require.NoError(t, err)

	require.NotNil(t, rollup.Royalty)
	assert.Equal(t, int64(1), rollup.Royalty.ReportsCount)
	assert.Equal(t, int64(2), rollup.Royalty.TotalRecords)
	assert.InDelta(t, 12.0, rollup.Royalty.TotalUnits, 1e-9)
	assert.InDelta(t, 12.0, rollup.Royalty.TotalImpressions, 1e-9)
	assert.InDelta(t, 5.0, rollup.Royalty.TotalRevenue, 1e-9)

	require.NotNil(t, rollup.Bonus)
	require.NotNil(t, rollup.Bonus.TotalBonus)
	assert.InDelta(t, 2.0, *rollup.Bonus.TotalBonus, 1e-9)

	require.NotNil(t, rollup.MCN)
	require.NotNil(t, rollup.MCN.TotalCommission)
	assert.InDelta(t, 10.0, *rollup.MCN.TotalCommission, 1e-9)
	assert.InDelta(t, 7500.0, *rollup.MCN.TotalPayoutInr, 1e-9)

	require.NotNil(t, rollup.Analytics)
	assert.Equal(t, int64(0), rollup.Analytics.ReportsCount)

	assert.Equal(t, int64(3), rollup.Overall.TotalReports)
	assert.Equal(t, int64(5), rollup.Overall.TotalRecords)
	assert.InDelta(t, 110.0, rollup.Overall.TotalRevenue, 1e-9)

	scoped, err := f.insights.Rollup(ctx, "royalty")
	require.NoError(t, err)
	assert.NotNil(t, scoped.Royalty)
	assert.Nil(t, scoped.MCN)
	assert.Equal(t, int64(1), scoped.Overall.TotalReports)

	_, err = f.insights.Rollup(ctx, "unknown")
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidCategory))
}

func TestMonthlyTrendsAndProcessingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	feb := f.period(t, "Feb-24", "royalty")
	jan := f.period(t, "Jan-24", "royalty")
	f.upload(t, feb, schema.CategoryRoyalty, f.writeCSV(t, schema.CategoryRoyalty, royaltyRow("A", "T", "1", "2", "1")))
	f.upload(t, jan, schema.CategoryRoyalty, f.writeCSV(t, schema.CategoryRoyalty, royaltyRow("A", "T", "1", "3", "1")))
	f.upload(t, jan, schema.CategoryRoyalty, f.writeCSV(t, schema.CategoryRoyalty, royaltyRow("B", "T", "1", "4", "1")))

	trends, err := f.insights.MonthlyTrends(ctx, "royalty")
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "Feb-24", trends[0].Label)
	assert.Equal(t, "Jan-24", trends[1].Label)
	assert.Equal(t, int64(2), trends[1].ReportCount)
	assert.InDelta(t, 7.0, trends[1].TotalRevenue, 1e-9)

	none, err := f.insights.MonthlyTrends(ctx, "mcn")
	require.NoError(t, err)
	assert.Empty(t, none)

	status, err := f.insights.ProcessingStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, status, len(reportdomain.Statuses))
	assert.Equal(t, int64(3), status[reportdomain.StatusCompleted].Count)
	assert.Equal(t, int64(3), status[reportdomain.StatusCompleted].TotalRecords)
	assert.Equal(t, reportdomain.StatusTotals{}, status[reportdomain.StatusPending])
}
