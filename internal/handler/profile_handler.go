package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	service *service.ProfileService
}

// NewProfileHandler creates a new handler.
func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Me godoc
// @Summary Get own profile
// @Description Meta carries the resolved access level; accounts awaiting
// approval (or rejected) only get the sign-out action
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	profile, err := h.service.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil, accountMeta(claims, profile))
}

// accountMeta tells clients which screen variant to render for the account.
func accountMeta(claims *models.JWTClaims, profile *models.Profile) map[string]interface{} {
	level := access.Resolve(&models.SessionUser{ID: claims.UserID, Email: claims.Email}, profile)
	meta := map[string]interface{}{"access_level": level}
	if level == access.PendingApproval || level == access.Rejected {
		meta["actions"] = []string{"sign_out"}
	}
	return meta
}

// UpdateMe godoc
// @Summary Update own profile
// @Description Role and approval status are not editable here
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body service.ProfileUpdateRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	claims := claimsFromContext(c)
	var req service.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.UpdateOwn(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
