package pagination

import "math"

// Pagination is the offset page request shared by every paginated listing.
type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PageInfo is the page metadata attached to paginated responses.
type PageInfo struct {
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// MaxOffset caps row offsets so page*limit never overflows.
const MaxOffset = math.MaxInt32

// Offset returns the number of rows to skip for the page, capped at MaxOffset.
func (p Pagination) Offset() int {
	return Offset(p.Page, p.Limit)
}

func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > MaxOffset/limit {
		return MaxOffset
	}
	return (page - 1) * limit
}

func BuildPageInfo(totalCount int64, page, limit int) PageInfo {
	if page < 1 {
		page = 1
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(totalCount) / float64(limit)))
	}
	return PageInfo{
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// Slice returns the page window of items without copying the backing array.
func Slice[T any](items []T, page, limit int) []T {
	if page < 1 || limit < 1 {
		return items[:0]
	}
	if page-1 >= (len(items)+limit-1)/limit {
		return items[:0]
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return items[:0]
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
