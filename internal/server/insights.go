package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tunedesk/internal/report/domain"
)

// GetRollup aggregates completed batches for one category, or every category with "all".
func (s *Server) GetRollup(c *gin.Context) {
	scope := strings.TrimSpace(c.DefaultQuery("category", "all"))

	resp, err := s.insightSvc.Rollup(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTopTracks(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
		return
	}

	resp, err := s.insightSvc.TopTracks(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []domain.TrackPerformance{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMonthlyTrends(c *gin.Context) {
	resp, err := s.insightSvc.MonthlyTrends(c.Request.Context(), strings.TrimSpace(c.Query("category")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []domain.MonthlyTrend{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProcessingStatus(c *gin.Context) {
	resp, err := s.insightSvc.ProcessingStatus(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
