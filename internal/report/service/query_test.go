package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadAnalytics(t *testing.T, f *fixture, rows ...map[string]string) string {
	t.Helper()
	periodID := f.period(t, "Jan-24", "analytics")
	resp := f.upload(t, periodID, schema.CategoryAnalytics, f.writeCSV(t, schema.CategoryAnalytics, rows...))
	return resp.ID
}

func analyticsRow(artist, track, service, units string) map[string]string {
	return map[string]string{
		schema.FieldArtist:       artist,
		schema.FieldTrackTitle:   track,
		schema.FieldMusicService: service,
		schema.FieldTotalUnits:   units,
	}
}

func TestDataPaginationBoundaries(t *testing.T) {
	f := newFixture(t)
	rows := make([]map[string]string, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, analyticsRow(fmt.Sprintf("Artist %d", i), "T", "X", fmt.Sprint(i)))
	}
	id := uploadAnalytics(t, f, rows...)

	cases := []struct {
		page     int
		wantLen  int
		wantNext bool
		wantPrev bool
	}{
		{page: 1, wantLen: 3, wantNext: true, wantPrev: false},
		{page: 2, wantLen: 3, wantNext: true, wantPrev: true},
		{page: 3, wantLen: 1, wantNext: false, wantPrev: true},
		{page: 4, wantLen: 0, wantNext: false, wantPrev: true},
	}
	for _, tc := range cases {
		resp, err := f.reports.Data(context.Background(), id, reportdomain.DataRequest{
			Pagination: pagination.Pagination{Page: tc.page, Limit: 3},
		})
		require.NoError(t, err)
		assert.Len(t, resp.Records, tc.wantLen, "page %d", tc.page)
		assert.Equal(t, int64(7), resp.Pagination.TotalCount)
		assert.Equal(t, 3, resp.Pagination.TotalPages)
		assert.Equal(t, tc.wantNext, resp.Pagination.HasNext, "page %d hasNext", tc.page)
		assert.Equal(t, tc.wantPrev, resp.Pagination.HasPrev, "page %d hasPrev", tc.page)
		assert.NotNil(t, resp.Records)
	}
}

func TestDataSortsNumericAndText(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f,
		analyticsRow("beta", "T", "X", "9"),
		analyticsRow("Alpha", "T", "X", "10"),
		analyticsRow("gamma", "T", "X", "2"),
	)
	ctx := context.Background()

	desc, err := f.reports.Data(ctx, id, reportdomain.DataRequest{SortBy: schema.FieldTotalUnits, SortOrder: "desc"})
	require.NoError(t, err)
	units := make([]float64, 0, 3)
	for _, rec := range desc.Records {
		units = append(units, rec.NumberOrZero(schema.FieldTotalUnits))
	}
	assert.Equal(t, []float64{10, 9, 2}, units)

	asc, err := f.reports.Data(ctx, id, reportdomain.DataRequest{SortBy: schema.FieldArtist})
	require.NoError(t, err)
	artists := make([]string, 0, 3)
	for _, rec := range asc.Records {
		artist, _ := rec.Text(schema.FieldArtist)
		artists = append(artists, artist)
	}
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, artists)

	_, err = f.reports.Data(ctx, id, reportdomain.DataRequest{SortBy: "income"})
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidSortField))
	_, err = f.reports.Data(ctx, id, reportdomain.DataRequest{SortOrder: "sideways"})
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidSortOrder))
}

func TestSearchAcrossFieldsAndByField(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f,
		analyticsRow("Nina", "Morning Song", "Spotify", "3"),
		analyticsRow("Omar", "Evening", "Deezer", "4"),
	)
	ctx := context.Background()

	all, err := f.reports.Search(ctx, id, reportdomain.SearchRequest{Search: "morning"})
	require.NoError(t, err)
	assert.Len(t, all.Records, 1)
	assert.Equal(t, "all", all.SearchField)
	assert.Equal(t, "morning", all.SearchQuery)

	restricted, err := f.reports.Search(ctx, id, reportdomain.SearchRequest{Search: "morning", Field: schema.FieldArtist})
	require.NoError(t, err)
	assert.Empty(t, restricted.Records)
	assert.NotNil(t, restricted.Records)

	byService, err := f.reports.Search(ctx, id, reportdomain.SearchRequest{Search: "deez", Field: schema.FieldMusicService})
	require.NoError(t, err)
	assert.Len(t, byService.Records, 1)

	_, err = f.reports.Search(ctx, id, reportdomain.SearchRequest{Search: "  "})
	assert.True(t, errors.Is(err, reportdomain.ErrMissingSearchTerm))
	_, err = f.reports.Search(ctx, id, reportdomain.SearchRequest{Search: "x", Field: "income"})
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidField))
	_, err = f.reports.Search(ctx, "42", reportdomain.SearchRequest{Search: "x"})
	assert.True(t, errors.Is(err, reportdomain.ErrNotFound))
	_, err = f.reports.Search(ctx, "nope", reportdomain.SearchRequest{Search: "x"})
	assert.True(t, errors.Is(err, reportdomain.ErrInvalidID))
}

func TestDataFiltersBySearchTerm(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f,
		analyticsRow("Nina", "Morning Song", "Spotify", "3"),
		analyticsRow("Omar", "Evening", "Deezer", "4"),
	)

	resp, err := f.reports.Data(context.Background(), id, reportdomain.DataRequest{Search: "omar"})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, int64(1), resp.Pagination.TotalCount)
	assert.Equal(t, int64(2), resp.TotalRecords)
}

func TestSummaryOfCompletedBatch(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f, analyticsRow("A", "T", "X", "5"), analyticsRow("B", "T", "X", "7"))

	summary, err := f.reports.Summary(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, schema.CategoryAnalytics, summary.Category)
	assert.InDelta(t, 12.0, summary.Summary.TotalImpressions, 1e-9)
	assert.InDelta(t, 12.0, summary.Summary.TotalUnits, 1e-9)
	assert.Equal(t, 0.0, summary.Summary.TotalRevenue)
	require.NotNil(t, summary.ProcessedAt)
}

func TestFilterAndSortHelpers(t *testing.T) {
	records := []schema.Record{
		{schema.FieldArtist: "b", schema.FieldTotalUnits: 2.0},
		{schema.FieldArtist: "a"},
		{schema.FieldArtist: "c", schema.FieldTotalUnits: 1.0},
	}

	out := filterRecords(records, schema.CategoryAnalytics, "", "")
	out[0] = nil
	assert.NotNil(t, records[0], "filter must not alias its input")

	sorted := filterRecords(records, schema.CategoryAnalytics, "", "")
	sortRecords(sorted, schema.FieldTotalUnits, false)
	first, _ := sorted[0].Text(schema.FieldArtist)
	assert.Equal(t, "a", first, "absent values sort first ascending")
}

func TestFilterConsultsCategorySearchFields(t *testing.T) {
	records := []schema.Record{
		{schema.FieldArtist: "Nina", "uploadNote": "bootleg"},
		{schema.FieldArtist: "Bootleg Boys"},
	}

	out := filterRecords(records, schema.CategoryAnalytics, "bootleg", "")
	require.Len(t, out, 1)
	artist, _ := out[0].Text(schema.FieldArtist)
	assert.Equal(t, "Bootleg Boys", artist, "keys outside the category schema are not searched")
}

func TestSearchKeepsSurroundingSpaces(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f,
		analyticsRow("Nina", "Night Remix", "Spotify", "3"),
		analyticsRow("Omar", "Remixed", "Deezer", "4"),
	)

	resp, err := f.reports.Search(context.Background(), id, reportdomain.SearchRequest{Search: " Remix"})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	track, _ := resp.Records[0].Text(schema.FieldTrackTitle)
	assert.Equal(t, "Night Remix", track)
	assert.Equal(t, " Remix", resp.SearchQuery)
}

func TestDataPageFarPastTheEndIsEmpty(t *testing.T) {
	f := newFixture(t)
	id := uploadAnalytics(t, f, analyticsRow("A", "T", "X", "1"), analyticsRow("B", "T", "X", "2"))

	resp, err := f.reports.Data(context.Background(), id, reportdomain.DataRequest{
		Pagination: pagination.Pagination{Page: math.MaxInt64 / 50, Limit: 100},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.NotNil(t, resp.Records)
	assert.Equal(t, int64(2), resp.Pagination.TotalCount)
	assert.False(t, resp.Pagination.HasNext)

	search, err := f.reports.Search(context.Background(), id, reportdomain.SearchRequest{
		Search:     "a",
		Pagination: pagination.Pagination{Page: math.MaxInt, Limit: 100},
	})
	require.NoError(t, err)
	assert.Empty(t, search.Records)
}
