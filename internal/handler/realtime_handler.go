package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	"github.com/coursehub/coursehub-api/internal/session"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// Tables that expose a change feed. Anything else is rejected before the
// connection is upgraded.
var realtimeTables = map[string]bool{
	"chapters":           true,
	"announcements":      true,
	"availability_slots": true,
}

// RealtimeHandler upgrades HTTP requests into websocket change-feed
// subscriptions. Each connection runs its own session provider, so the
// subscriber's profile is resolved (and provisioned when missing) through the
// same pipeline long-lived clients use.
type RealtimeHandler struct {
	hub      *realtime.Hub
	profiles session.ProfileStore
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler creates a new handler.
func NewRealtimeHandler(hub *realtime.Hub, profiles session.ProfileStore, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{
		hub:      hub,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Subscribe godoc
// @Summary Subscribe to a table change feed
// @Description Upgrades to a websocket and streams INSERT/UPDATE/DELETE events
// @Tags Realtime
// @Param table query string true "Table name (chapters, announcements, availability_slots)"
// @Success 101
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /realtime [get]
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	table := c.Query("table")
	if !realtimeTables[table] {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown realtime table %q", table)))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return
	}

	// The connection outlives this request, so resolve the subscriber's
	// context through the session pipeline rather than a one-shot lookup.
	sess := session.NewProvider(h.profiles, h.logger)
	sess.Start(c.Request.Context(), func(context.Context) (*models.SessionUser, error) {
		return &models.SessionUser{ID: claims.UserID, Email: claims.Email}, nil
	})
	sess.Wait()
	snap := sess.Snapshot()

	if err := feedAccessError(table, access.Resolve(snap.User, snap.Profile)); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", zap.String("table", table), zap.Error(err))
		return
	}

	h.hub.Register(table, conn)
}

// feedAccessError applies the approval and role rules to a feed subscription.
// The chapters feed carries rows in every status, so it is limited to the one
// level allowed to see unpublished chapters.
func feedAccessError(table string, level access.Level) error {
	switch level {
	case access.Anonymous:
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	case access.PendingApproval:
		return appErrors.Clone(appErrors.ErrPendingApproval, "account is awaiting approval")
	case access.Rejected:
		return appErrors.Clone(appErrors.ErrAccountRejected, "account registration was rejected")
	}
	if table == realtime.TableChapters && level != access.Admin {
		return appErrors.Clone(appErrors.ErrForbidden, "chapter feed is restricted to administrators")
	}
	return nil
}
