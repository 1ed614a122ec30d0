package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// AnnouncementHandler exposes announcement endpoints.
type AnnouncementHandler struct {
	service *service.AnnouncementService
}

// NewAnnouncementHandler creates a new handler.
func NewAnnouncementHandler(svc *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// Panel godoc
// @Summary Public announcement panel
// @Description The five most recent published announcements, pinned first
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) Panel(c *gin.Context) {
	announcements, err := h.service.Panel(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, nil)
}

// ListOwn godoc
// @Summary List own announcements
// @Description Every announcement authored by the caller, drafts included
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/announcements [get]
func (h *AnnouncementHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	announcements, err := h.service.ListOwn(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, nil)
}

// Create godoc
// @Summary Create announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.AnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, announcement)
}

// Update godoc
// @Summary Update announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body service.AnnouncementRequest true "Announcement payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
		return
	}

	var req service.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}

	announcement, err := h.service.Update(c.Request.Context(), profile, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), profile, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
