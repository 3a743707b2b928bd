package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	"github.com/smallbiznis/tunedesk/internal/ratelimit"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"go.uber.org/zap"
)

const uploadFormFile = "file"

// UploadReport stores the multipart file and ingests it into a new batch.
// A batch that failed ingestion is still returned, with status 422.
func (s *Server) UploadReport(c *gin.Context) {
	category, err := schema.ParseCategory(c.PostForm("category"))
	if err != nil {
		AbortWithError(c, reportdomain.ErrInvalidCategory)
		return
	}
	periodID := strings.TrimSpace(c.PostForm("periodId"))
	if periodID == "" {
		AbortWithError(c, reportdomain.ErrInvalidPeriod)
		return
	}
	strict, err := parseOptionalBool(c.PostForm("strictHeaders"))
	if err != nil {
		AbortWithError(c, newValidationError("strictHeaders", "invalid_strict_headers", "invalid strictHeaders"))
		return
	}
	c.Set("report_category", category.String())

	header, err := c.FormFile(uploadFormFile)
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}

	if err := s.limiter.AllowUploader(c.Request.Context(), callerID(c)); err != nil {
		setRetryAfter(c, err)
		AbortWithError(c, err)
		return
	}
	release, err := s.limiter.LockUpload(c.Request.Context(), periodID, category.String(), header.Filename)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer release()

	src, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer src.Close()

	stored, err := s.store.Save(category, header.Filename, src)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	strictHeaders := s.cfg.Upload.StrictHeaders
	if strict != nil {
		strictHeaders = *strict
	}

	resp, err := s.reportSvc.Upload(c.Request.Context(), reportdomain.UploadRequest{
		PeriodID:         periodID,
		Category:         category.String(),
		FileName:         stored.FileName,
		OriginalFileName: stored.OriginalFileName,
		FilePath:         stored.Path,
		FileSize:         stored.Size,
		UploadedBy:       callerID(c),
		StrictHeaders:    strictHeaders,
	})
	if resp != nil {
		c.Set("report_batch_id", resp.ID)
		s.recordAudit(c, auditdomain.ActionReportUploaded, auditdomain.TargetReportBatch, resp.ID, map[string]any{
			"period_id": resp.PeriodID,
			"category":  resp.Category.String(),
			"file_name": resp.OriginalFileName,
			"status":    string(resp.Status),
			"records":   resp.TotalRecords,
		})
	}
	if err != nil {
		if resp == nil {
			// No batch references the file.
			if rmErr := s.store.Remove(stored.Path); rmErr != nil {
				s.log.Warn("remove orphaned upload", zap.String("path", stored.Path), zap.Error(rmErr))
			}
			AbortWithError(c, err)
			return
		}
		if errors.Is(err, reportdomain.ErrIngestionFailed) {
			_ = c.Error(err)
			status, payload := mapError(err)
			c.JSON(status, gin.H{"error": payload, "data": resp})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func setRetryAfter(c *gin.Context, err error) {
	var limited *ratelimit.RateLimitedError
	if !errors.As(err, &limited) || limited.RetryAfter <= 0 {
		return
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
}

// ValidateReportFile checks the header row of an uploaded file without creating a batch.
func (s *Server) ValidateReportFile(c *gin.Context) {
	category, err := schema.ParseCategory(c.PostForm("category"))
	if err != nil {
		AbortWithError(c, reportdomain.ErrInvalidCategory)
		return
	}

	header, err := c.FormFile(uploadFormFile)
	if err != nil {
		AbortWithError(c, newValidationError("file", "required", "file is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer src.Close()

	stored, err := s.store.Save(category, header.Filename, src)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer func() {
		if rmErr := s.store.Remove(stored.Path); rmErr != nil {
			s.log.Warn("remove validated upload", zap.String("path", stored.Path), zap.Error(rmErr))
		}
	}()

	resp, err := s.reportSvc.ValidateFile(c.Request.Context(), reportdomain.ValidateRequest{
		FilePath: stored.Path,
		Category: category.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReportBatches(c *gin.Context) {
	var query struct {
		pageQuery
		PeriodID  string `form:"periodId"`
		Category  string `form:"category"`
		Status    string `form:"status"`
		Search    string `form:"search"`
		SortBy    string `form:"sortBy"`
		SortOrder string `form:"sortOrder"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page, err := query.pagination()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.List(c.Request.Context(), reportdomain.ListRequest{
		Pagination: page,
		PeriodID:   strings.TrimSpace(query.PeriodID),
		Category:   strings.TrimSpace(query.Category),
		Status:     strings.TrimSpace(query.Status),
		Search:     strings.TrimSpace(query.Search),
		SortBy:     strings.TrimSpace(query.SortBy),
		SortOrder:  strings.TrimSpace(query.SortOrder),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportBatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("report_batch_id", id)

	resp, err := s.reportSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteReportBatch(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("report_batch_id", id)

	if err := s.reportSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	s.recordAudit(c, auditdomain.ActionReportDeleted, auditdomain.TargetReportBatch, id, nil)

	c.Status(http.StatusNoContent)
}

func (s *Server) ListAvailableReports(c *gin.Context) {
	var query struct {
		Category  string `form:"category"`
		Limit     string `form:"limit"`
		SortBy    string `form:"sortBy"`
		SortOrder string `form:"sortOrder"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
		return
	}

	resp, err := s.reportSvc.ListAvailable(c.Request.Context(), reportdomain.AvailableRequest{
		Category:  strings.TrimSpace(query.Category),
		Limit:     limit,
		SortBy:    strings.TrimSpace(query.SortBy),
		SortOrder: strings.TrimSpace(query.SortOrder),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReportsByCategory(c *gin.Context) {
	var query struct {
		pageQuery
		Search string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page, err := query.pagination()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	category := strings.TrimSpace(c.Param("category"))
	c.Set("report_category", category)

	resp, err := s.reportSvc.ListByCategory(c.Request.Context(), reportdomain.CategoryListRequest{
		Pagination: page,
		Category:   category,
		Search:     strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReportsByPeriod(c *gin.Context) {
	resp, err := s.reportSvc.ListByPeriod(c.Request.Context(), strings.TrimSpace(c.Param("periodId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportSummary(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("report_batch_id", id)

	resp, err := s.reportSvc.Summary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReportData(c *gin.Context) {
	var query struct {
		pageQuery
		Search    string `form:"search"`
		SortBy    string `form:"sortBy"`
		SortOrder string `form:"sortOrder"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page, err := query.pagination()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	c.Set("report_batch_id", id)

	resp, err := s.reportSvc.Data(c.Request.Context(), id, reportdomain.DataRequest{
		Pagination: page,
		Search:     strings.TrimSpace(query.Search),
		SortBy:     strings.TrimSpace(query.SortBy),
		SortOrder:  strings.TrimSpace(query.SortOrder),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("report_category", resp.Category.String())

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SearchReportData(c *gin.Context) {
	var query struct {
		pageQuery
		Search string `form:"search"`
		Field  string `form:"field"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	page, err := query.pagination()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	c.Set("report_batch_id", id)

	resp, err := s.reportSvc.Search(c.Request.Context(), id, reportdomain.SearchRequest{
		Pagination: page,
		Search:     strings.TrimSpace(query.Search),
		Field:      strings.TrimSpace(query.Field),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
