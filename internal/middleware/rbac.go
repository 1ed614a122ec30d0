package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// RequireRoles allows the request only when the resolved profile carries one
// of the given roles. Runs after the gate so the profile is already loaded.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		profile := ProfileFrom(c)
		if profile == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
			c.Abort()
			return
		}
		if _, ok := allowed[profile.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireApproved blocks accounts that have not passed the approval
// workflow. Admin accounts are approved by construction.
func RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch AccessFrom(c) {
		case access.PendingApproval:
			response.Error(c, appErrors.ErrPendingApproval)
			c.Abort()
		case access.Rejected:
			response.Error(c, appErrors.ErrAccountRejected)
			c.Abort()
		case access.ProfileDegraded:
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile unavailable"))
			c.Abort()
		default:
			c.Next()
		}
	}
}
