package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	"github.com/smallbiznis/tunedesk/internal/authorization"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	"github.com/smallbiznis/tunedesk/internal/ratelimit"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/internal/storage"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	// Checked first: the wrapped cause may itself be a validation error.
	if errors.Is(err, reportdomain.ErrIngestionFailed) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "ingestion_failed",
			Message: ingestionFailureMessage(err),
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if errors.Is(err, storage.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "file", Code: "file_too_large", Message: "file exceeds the upload size limit"},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many uploads, retry later",
		}
	case errors.Is(err, ratelimit.ErrUploadInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "the same file is already being ingested for this period",
		}
	case errors.Is(err, perioddomain.ErrDuplicate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "a period with this label and kind already exists",
		}
	case errors.Is(err, perioddomain.ErrPeriodInUse):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "period is referenced by report batches",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, reportdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reduces an error to the type and code written to the request log.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	if errors.Is(err, reportdomain.ErrIngestionFailed) {
		switch {
		case errors.Is(err, ingest.ErrFileNotFound):
			return payload.Type, "file_not_found"
		case errors.Is(err, ingest.ErrParseFailure):
			return payload.Type, "parse_failure"
		case errors.Is(err, ingest.ErrMissingHeaders):
			return payload.Type, "missing_headers"
		}
	}
	return payload.Type, payload.Type
}

func ingestionFailureMessage(err error) string {
	switch {
	case errors.Is(err, ingest.ErrFileNotFound):
		return "uploaded file could not be read"
	case errors.Is(err, ingest.ErrMissingHeaders):
		return "report file is missing expected headers"
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return "unsupported report file format"
	case errors.Is(err, ingest.ErrParseFailure):
		return "report file could not be parsed"
	default:
		return "report ingestion failed"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, schema.ErrUnknownCategory),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, storage.ErrUnsupportedFileType),
		errors.Is(err, storage.ErrEmptyFile):
		return true
	case isReportValidationError(err),
		isPeriodValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isReportValidationError(err error) bool {
	switch {
	case errors.Is(err, reportdomain.ErrInvalidID),
		errors.Is(err, reportdomain.ErrInvalidPeriod),
		errors.Is(err, reportdomain.ErrInvalidCategory),
		errors.Is(err, reportdomain.ErrInvalidStatus),
		errors.Is(err, reportdomain.ErrInvalidPage),
		errors.Is(err, reportdomain.ErrInvalidLimit),
		errors.Is(err, reportdomain.ErrInvalidSortField),
		errors.Is(err, reportdomain.ErrInvalidSortOrder),
		errors.Is(err, reportdomain.ErrInvalidField),
		errors.Is(err, reportdomain.ErrInvalidFile),
		errors.Is(err, reportdomain.ErrInvalidUploader),
		errors.Is(err, reportdomain.ErrMissingSearchTerm):
		return true
	default:
		return false
	}
}

func isPeriodValidationError(err error) bool {
	switch {
	case errors.Is(err, perioddomain.ErrInvalidID),
		errors.Is(err, perioddomain.ErrInvalidLabel),
		errors.Is(err, perioddomain.ErrInvalidDisplayName),
		errors.Is(err, perioddomain.ErrInvalidKind),
		errors.Is(err, perioddomain.ErrInvalidPage),
		errors.Is(err, perioddomain.ErrInvalidLimit),
		errors.Is(err, perioddomain.ErrInvalidSortField),
		errors.Is(err, perioddomain.ErrInvalidSortOrder),
		errors.Is(err, perioddomain.ErrEmptyUpdate):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidPage),
		errors.Is(err, auditdomain.ErrInvalidLimit):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, reportdomain.ErrNotFound),
		errors.Is(err, perioddomain.ErrNotFound),
		errors.Is(err, perioddomain.ErrInactive),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, schema.ErrUnknownCategory):
		return "invalid_category"
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, storage.ErrUnsupportedFileType):
		return "unsupported_file_type"
	case errors.Is(err, storage.ErrEmptyFile):
		return "empty_file"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_search_term":
		return "search"
	case "invalid_update":
		return "request"
	case "unsupported_file_type", "empty_file":
		return "file"
	case "invalid_uploaded_by":
		return "uploadedBy"
	case "invalid_sort_field":
		return "sortBy"
	case "invalid_sort_order":
		return "sortOrder"
	case "invalid_display_name":
		return "displayName"
	case "invalid_period":
		return "periodId"
	case "invalid_time_range":
		return "startAt"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_search_term":
		return "search term is required"
	case "invalid_update":
		return "no fields to update"
	case "unsupported_file_type":
		return "only .csv and .xlsx files are accepted"
	case "empty_file":
		return "file is empty"
	case "invalid_time_range":
		return "startAt must not be after endAt"
	default:
		return "invalid value"
	}
}
