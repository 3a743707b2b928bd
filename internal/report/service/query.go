package service

import (
	"cmp"
	"context"
	"slices"
	"strings"

	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
)

const searchAllFields = "all"

// Data returns one page of a batch's records, optionally filtered and sorted.
func (s *Service) Data(ctx context.Context, id string, req reportdomain.DataRequest) (*reportdomain.DataResponse, error) {
	page, limit, err := resolvePage(req.Page, req.Limit, s.limits.Get().Data)
	if err != nil {
		return nil, err
	}

	order := strings.ToLower(strings.TrimSpace(req.SortOrder))
	if order == "" {
		order = "asc"
	}
	if order != "asc" && order != "desc" {
		return nil, reportdomain.ErrInvalidSortOrder
	}

	batch, err := s.loadCompleted(ctx, id, true)
	if err != nil {
		return nil, err
	}

	sortField := strings.TrimSpace(req.SortBy)
	if sortField != "" {
		if _, ok := schema.Lookup(batch.Category, sortField); !ok {
			return nil, reportdomain.ErrInvalidSortField
		}
	}

	records := filterRecords(batch.Records(), batch.Category, req.Search, "")
	if sortField != "" {
		sortRecords(records, sortField, order == "desc")
	}

	s.metrics.RecordRead(ctx, batch.Category.String(), "data")
	return &reportdomain.DataResponse{
		PeriodInfo:   toPeriodInfo(batch.Period),
		Category:     batch.Category,
		TotalRecords: batch.TotalRecords,
		Summary:      batch.Summary,
		ProcessedAt:  batch.ProcessedAt,
		Records:      pagination.Slice(records, page, limit),
		Pagination:   pagination.BuildPageInfo(int64(len(records)), page, limit),
	}, nil
}

// Search filters a batch's records by term, across every field or one named field.
func (s *Service) Search(ctx context.Context, id string, req reportdomain.SearchRequest) (*reportdomain.SearchResponse, error) {
	term := req.Search
	if strings.TrimSpace(term) == "" {
		return nil, reportdomain.ErrMissingSearchTerm
	}
	page, limit, err := resolvePage(req.Page, req.Limit, s.limits.Get().Search)
	if err != nil {
		return nil, err
	}

	batch, err := s.loadCompleted(ctx, id, true)
	if err != nil {
		return nil, err
	}

	field := strings.TrimSpace(req.Field)
	if field != "" {
		if _, ok := schema.Lookup(batch.Category, field); !ok {
			return nil, reportdomain.ErrInvalidField
		}
	}

	records := filterRecords(batch.Records(), batch.Category, term, field)
	searchField := field
	if searchField == "" {
		searchField = searchAllFields
	}

	s.metrics.RecordRead(ctx, batch.Category.String(), "search")
	return &reportdomain.SearchResponse{
		SearchQuery: term,
		SearchField: searchField,
		Records:     pagination.Slice(records, page, limit),
		Pagination:  pagination.BuildPageInfo(int64(len(records)), page, limit),
	}, nil
}

// filterRecords returns the records whose display form contains term, case
// insensitively. An empty field matches against the category's search fields.
// A blank term keeps every record. The result never aliases the input slice.
func filterRecords(records []schema.Record, category schema.Category, term, field string) []schema.Record {
	if strings.TrimSpace(term) == "" {
		out := make([]schema.Record, len(records))
		copy(out, records)
		return out
	}

	fields := schema.SearchFields(category)
	if field != "" {
		fields = []string{field}
	}
	needle := strings.ToLower(term)
	out := make([]schema.Record, 0)
	for _, rec := range records {
		if matches(rec, needle, fields) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec schema.Record, needle string, fields []string) bool {
	for _, name := range fields {
		value, ok := rec.String(name)
		if ok && strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

// sortRecords orders records in place by one field. Two numbers compare
// numerically; anything else compares by display form, absent values as "".
func sortRecords(records []schema.Record, field string, desc bool) {
	slices.SortStableFunc(records, func(a, b schema.Record) int {
		c := compareField(a, b, field)
		if desc {
			return -c
		}
		return c
	})
}

func compareField(a, b schema.Record, field string) int {
	av, aNum := a.Number(field)
	bv, bNum := b.Number(field)
	if aNum && bNum {
		return cmp.Compare(av, bv)
	}
	as, _ := a.String(field)
	bs, _ := b.String(field)
	return strings.Compare(as, bs)
}
