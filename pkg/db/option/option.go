package option

import (
	"strings"

	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// SortBy is a column/direction pair that has already been validated.
type SortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy validates a user supplied sort column against the allowed set.
// Unknown columns fall back to created_at; anything but "asc" sorts descending.
func WithQuerySortBy(column, order string, allowed map[string]string) SortBy {
	resolved := "created_at"
	if mapped, ok := allowed[strings.TrimSpace(column)]; ok {
		resolved = mapped
	}
	return SortBy{
		Column: resolved,
		Desc:   !strings.EqualFold(strings.TrimSpace(order), "asc"),
	}
}

func WithSortBy(sort SortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return db.Order(sort.Column + " " + direction)
	})
}

func WithPage(page, limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit < 1 {
			return db
		}
		return db.Offset(pagination.Offset(page, limit)).Limit(limit)
	})
}
