package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/config"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// ChapterHandler exposes course chapter endpoints.
type ChapterHandler struct {
	service *service.ChapterService
	gateCfg config.GateConfig
}

// NewChapterHandler creates a new handler.
func NewChapterHandler(svc *service.ChapterService, gateCfg config.GateConfig) *ChapterHandler {
	if gateCfg.HomePath == "" {
		gateCfg.HomePath = "/"
	}
	return &ChapterHandler{service: svc, gateCfg: gateCfg}
}

// List godoc
// @Summary List chapters
// @Description List chapters visible to the caller, ordered by position
// @Tags Chapters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chapters [get]
func (h *ChapterHandler) List(c *gin.Context) {
	level := middleware.AccessFrom(c)
	chapters, err := h.service.List(c.Request.Context(), level)
	if err != nil {
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if level == access.Admin {
		counts := make(map[models.ChapterStatus]int)
		for _, ch := range chapters {
			counts[ch.Status]++
		}
		meta = map[string]interface{}{"status_counts": counts}
	}

	response.JSON(c, http.StatusOK, chapters, nil, meta)
}

// Get godoc
// @Summary Fetch one chapter
// @Description Return a chapter; unpublished chapters redirect non-admin callers home
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /chapters/{id} [get]
func (h *ChapterHandler) Get(c *gin.Context) {
	level := middleware.AccessFrom(c)
	chapter, err := h.service.Get(c.Request.Context(), level, c.Param("id"))
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrForbidden.Code {
			// Unpublished content is not an error page for regular users;
			// they are sent back to the chapter list.
			response.Redirect(c, h.gateCfg.HomePath)
			return
		}
		response.Error(c, err)
		return
	}

	var meta map[string]interface{}
	if level == access.Admin && chapter.Status != models.ChapterPublished {
		meta = map[string]interface{}{"preview": true, "status": chapter.Status}
	}

	response.JSON(c, http.StatusOK, chapter, nil, meta)
}

// Create godoc
// @Summary Create chapter
// @Tags Chapters
// @Accept json
// @Produce json
// @Param payload body service.ChapterCreateRequest true "Chapter payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/chapters [post]
func (h *ChapterHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.ChapterCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chapter payload"))
		return
	}

	chapter, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, chapter)
}

// Update godoc
// @Summary Update chapter
// @Tags Chapters
// @Accept json
// @Produce json
// @Param id path string true "Chapter ID"
// @Param payload body service.ChapterUpdateRequest true "Chapter payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/chapters/{id} [put]
func (h *ChapterHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.ChapterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chapter payload"))
		return
	}

	chapter, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, chapter, nil)
}

// Delete godoc
// @Summary Delete chapter
// @Tags Chapters
// @Produce json
// @Param id path string true "Chapter ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/chapters/{id} [delete]
func (h *ChapterHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
