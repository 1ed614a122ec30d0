package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// FeedbackHandler exposes feedback submission and moderation endpoints.
type FeedbackHandler struct {
	service *service.FeedbackService
}

// NewFeedbackHandler creates a new handler.
func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit godoc
// @Summary Submit feedback
// @Tags Feedback
// @Accept json
// @Produce json
// @Param payload body service.FeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /feedback [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}

	entry, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

// ListPublic godoc
// @Summary List moderated feedback
// @Description Reviewed and resolved entries only
// @Tags Feedback
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /feedback [get]
func (h *FeedbackHandler) ListPublic(c *gin.Context) {
	page, pageSize := pageParams(c)
	entries, pagination, err := h.service.ListPublic(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// ListOwn godoc
// @Summary List own feedback
// @Description The caller's submissions in every status
// @Tags Feedback
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /feedback/mine [get]
func (h *FeedbackHandler) ListOwn(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	entries, pagination, err := h.service.ListOwn(c.Request.Context(), claims.UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// ListAll godoc
// @Summary Moderation queue
// @Description Every feedback entry, filterable by status
// @Tags Feedback
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /admin/feedback [get]
func (h *FeedbackHandler) ListAll(c *gin.Context) {
	page, pageSize := pageParams(c)
	filter := models.FeedbackFilter{Page: page, PageSize: pageSize}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []models.FeedbackStatus{models.FeedbackStatus(status)}
	}

	entries, pagination, err := h.service.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Moderate godoc
// @Summary Moderate a feedback entry
// @Tags Feedback
// @Accept json
// @Produce json
// @Param id path string true "Feedback ID"
// @Param payload body service.FeedbackModerateRequest true "Moderation payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/feedback/{id} [put]
func (h *FeedbackHandler) Moderate(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.FeedbackModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid moderation payload"))
		return
	}

	entry, err := h.service.Moderate(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}
