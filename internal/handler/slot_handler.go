package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// SlotHandler exposes office-hour availability endpoints.
type SlotHandler struct {
	service *service.SlotService
}

// NewSlotHandler creates a new handler.
func NewSlotHandler(svc *service.SlotService) *SlotHandler {
	return &SlotHandler{service: svc}
}

// List godoc
// @Summary List availability slots
// @Description List active availability windows, optionally from a start time
// @Tags Availability
// @Produce json
// @Param professor_id query string false "Filter by professor"
// @Param from query string false "RFC3339 lower bound on start time"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *SlotHandler) List(c *gin.Context) {
	filter := models.SlotFilter{
		ProfessorID: c.Query("professor_id"),
		ActiveOnly:  true,
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = &from
	}

	slots, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slots, nil)
}

// Create godoc
// @Summary Publish an availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.SlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability [post]
func (h *SlotHandler) Create(c *gin.Context) {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
		return
	}

	var req service.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	slot, err := h.service.Create(c.Request.Context(), profile, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, slot)
}

// Update godoc
// @Summary Update an availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.SlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /availability/{id} [put]
func (h *SlotHandler) Update(c *gin.Context) {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
		return
	}

	var req service.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}

	slot, err := h.service.Update(c.Request.Context(), profile, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, slot, nil)
}

// Deactivate godoc
// @Summary Retire an availability slot
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /availability/{id} [delete]
func (h *SlotHandler) Deactivate(c *gin.Context) {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), profile, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
