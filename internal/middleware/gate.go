package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/pkg/config"
	"github.com/coursehub/coursehub-api/pkg/response"
)

const (
	// ContextProfileKey stores the resolved *models.Profile, when available.
	ContextProfileKey = "currentProfile"
	// ContextAccessKey stores the resolved access.Level for the request.
	ContextAccessKey = "accessLevel"
)

type profileLoader interface {
	FetchProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Gate guards navigation-style routes. Requests without a session are
// redirected to the sign-in target, signed-in requests on guest-only routes
// are redirected home. A session whose profile cannot be loaded passes
// through degraded rather than being bounced to sign-in.
type Gate struct {
	profiles profileLoader
	cfg      config.GateConfig
	logger   *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(profiles profileLoader, cfg config.GateConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/auth"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	return &Gate{profiles: profiles, cfg: cfg, logger: logger}
}

// RequireAuth redirects anonymous requests to the sign-in target and
// resolves the caller's profile and access level for downstream handlers.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			response.Redirect(c, g.cfg.SignInPath)
			c.Abort()
			return
		}

		g.resolve(c, claims)
		c.Next()
	}
}

// RequireGuest redirects signed-in requests to the home target. Used by the
// sign-in and sign-up surfaces.
func (g *Gate) RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsFrom(c) != nil {
			response.Redirect(c, g.cfg.HomePath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Resolve attaches profile and access level without redirecting. Public
// routes use it so handlers can branch on the caller's level.
func (g *Gate) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := claimsFrom(c); claims != nil {
			g.resolve(c, claims)
		} else {
			c.Set(ContextAccessKey, access.Anonymous)
		}
		c.Next()
	}
}

func (g *Gate) resolve(c *gin.Context, claims *models.JWTClaims) {
	user := &models.SessionUser{ID: claims.UserID, Email: claims.Email}

	profile, err := g.profiles.FetchProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		// Keep the session alive in degraded form; individual handlers
		// decide what a missing profile means for them.
		g.logger.Warn("profile resolution failed", zap.String("user_id", claims.UserID), zap.Error(err))
		profile = nil
	}

	if profile != nil {
		c.Set(ContextProfileKey, profile)
	}
	c.Set(ContextAccessKey, access.Resolve(user, profile))
}

func claimsFrom(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// ProfileFrom returns the resolved profile for the request, if any.
func ProfileFrom(c *gin.Context) *models.Profile {
	value, ok := c.Get(ContextProfileKey)
	if !ok {
		return nil
	}
	profile, ok := value.(*models.Profile)
	if !ok {
		return nil
	}
	return profile
}

// AccessFrom returns the resolved access level, defaulting to anonymous.
func AccessFrom(c *gin.Context) access.Level {
	value, ok := c.Get(ContextAccessKey)
	if !ok {
		return access.Anonymous
	}
	level, ok := value.(access.Level)
	if !ok {
		return access.Anonymous
	}
	return level
}
