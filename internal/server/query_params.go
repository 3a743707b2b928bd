package server

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalInt returns 0 for an absent value so services apply their defaults.
func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

func trimStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

type pageQuery struct {
	Page  string `form:"page"`
	Limit string `form:"limit"`
}

func (q pageQuery) pagination() (pagination.Pagination, error) {
	page, err := parseOptionalInt(q.Page)
	if err != nil {
		return pagination.Pagination{}, newValidationError("page", "invalid_page", "page must be an integer")
	}
	limit, err := parseOptionalInt(q.Limit)
	if err != nil {
		return pagination.Pagination{}, newValidationError("limit", "invalid_limit", "limit must be an integer")
	}
	return pagination.Pagination{Page: page, Limit: limit}, nil
}
