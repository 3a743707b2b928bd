package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
)

type createPeriodRequest struct {
	Label       string `json:"label"`
	DisplayName string `json:"displayName"`
	Kind        string `json:"kind"`
	IsActive    *bool  `json:"isActive"`
}

type updatePeriodRequest struct {
	Label       *string `json:"label,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

func (s *Server) CreatePeriod(c *gin.Context) {
	var req createPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.periodSvc.Create(c.Request.Context(), perioddomain.CreateRequest{
		Label:       strings.TrimSpace(req.Label),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Kind:        strings.TrimSpace(req.Kind),
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionPeriodCreated, auditdomain.TargetPeriod, resp.ID, map[string]any{"label": resp.Label, "kind": string(resp.Kind)})
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPeriods(c *gin.Context) {
	var query struct {
		pageQuery
		Kind      string `form:"kind"`
		IsActive  string `form:"isActive"`
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
	active, err := parseOptionalBool(query.IsActive)
	if err != nil {
		AbortWithError(c, newValidationError("isActive", "invalid_is_active", "invalid isActive"))
		return
	}

	resp, err := s.periodSvc.List(c.Request.Context(), perioddomain.ListRequest{
		Pagination: page,
		Kind:       strings.TrimSpace(query.Kind),
		IsActive:   active,
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

func (s *Server) GetPeriod(c *gin.Context) {
	resp, err := s.periodSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePeriod(c *gin.Context) {
	var req updatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.periodSvc.Update(c.Request.Context(), perioddomain.UpdateRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Label:       trimStringPtr(req.Label),
		DisplayName: trimStringPtr(req.DisplayName),
		Kind:        trimStringPtr(req.Kind),
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionPeriodUpdated, auditdomain.TargetPeriod, resp.ID, map[string]any{"label": resp.Label, "kind": string(resp.Kind), "is_active": resp.IsActive})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TogglePeriod(c *gin.Context) {
	resp, err := s.periodSvc.ToggleStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionPeriodToggled, auditdomain.TargetPeriod, resp.ID, map[string]any{"is_active": resp.IsActive})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DeactivatePeriod is the delete path for periods; rows are never removed.
func (s *Server) DeactivatePeriod(c *gin.Context) {
	resp, err := s.periodSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.ActionPeriodDeactivated, auditdomain.TargetPeriod, resp.ID, nil)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPeriodStats(c *gin.Context) {
	resp, err := s.periodSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListActivePeriods(c *gin.Context) {
	resp, err := s.periodSvc.ListActiveGrouped(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListActivePeriodsByKind(c *gin.Context) {
	resp, err := s.periodSvc.ListActiveByKind(c.Request.Context(), strings.TrimSpace(c.Param("kind")), false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []perioddomain.Response{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
