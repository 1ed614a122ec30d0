package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/config"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// AdminHandler serves the admin dashboard: account moderation, student
// statistics, system metrics and data exports.
type AdminHandler struct {
	profiles *service.ProfileService
	metrics  *service.MetricsService
	exports  *service.ExportService
	audit    *service.AuditService
	cfg      config.ExportsConfig
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(profiles *service.ProfileService, metrics *service.MetricsService, exports *service.ExportService, audit *service.AuditService, cfg config.ExportsConfig) *AdminHandler {
	return &AdminHandler{profiles: profiles, metrics: metrics, exports: exports, audit: audit, cfg: cfg}
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Student signup counts plus a system metrics snapshot
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	students, err := h.profiles.StudentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"students": students,
		"system":   h.metrics.Snapshot(),
	}, nil)
}

// ListProfiles godoc
// @Summary List profiles
// @Tags Admin
// @Produce json
// @Param role query string false "Filter by role"
// @Param approval_status query string false "Filter by approval status"
// @Param search query string false "Match against name or email"
// @Success 200 {object} response.Envelope
// @Router /admin/profiles [get]
func (h *AdminHandler) ListProfiles(c *gin.Context) {
	page, pageSize := pageParams(c)
	filter := models.ProfileFilter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("role"); raw != "" {
		role := models.Role(raw)
		filter.Role = &role
	}
	if raw := c.Query("approval_status"); raw != "" {
		status := models.ApprovalStatus(raw)
		filter.ApprovalStatus = &status
	}

	profiles, pagination, err := h.profiles.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, pagination)
}

// SetApproval godoc
// @Summary Moderate an account
// @Description Approve or reject a pending account, optionally changing its role
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body service.ApprovalRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/profiles/{id}/approval [put]
func (h *AdminHandler) SetApproval(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	profile, err := h.profiles.SetApproval(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// AuditLogs godoc
// @Summary List audit trail entries
// @Tags Admin
// @Produce json
// @Param resource query string false "Filter by resource"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	page, pageSize := pageParams(c)
	logs, pagination, err := h.audit.Recent(c.Request.Context(), c.Query("resource"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Export godoc
// @Summary Export a resource
// @Description Streams the named resource as a CSV or PDF attachment
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param resource path string true "Resource (profiles, chapters, feedback, availability)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /admin/exports/{resource} [get]
func (h *AdminHandler) Export(c *gin.Context) {
	if !h.cfg.Enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))
	result, err := h.exports.Export(c.Request.Context(), c.Param("resource"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	if result.DownloadToken != "" {
		c.Header("X-Export-Download-Token", result.DownloadToken)
	}
	c.Data(http.StatusOK, result.ContentType, result.Body)
}

// Download godoc
// @Summary Download an archived export
// @Description Serves a previously rendered export referenced by a signed token
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/exports/download [get]
func (h *AdminHandler) Download(c *gin.Context) {
	if !h.cfg.Enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}

	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.exports.OpenArchived(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Body)
}
