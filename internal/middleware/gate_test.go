package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/pkg/config"
)

type stubProfileLoader struct {
	profiles map[string]*models.Profile
	err      error
}

func (s *stubProfileLoader) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func setClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func gateRouter(t *testing.T, loader *stubProfileLoader, claims *models.JWTClaims, guard func(*Gate) gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gate := NewGate(loader, config.GateConfig{SignInPath: "/auth", HomePath: "/"}, nil)
	router := gin.New()
	router.GET("/probe", setClaims(claims), guard(gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"level": string(AccessFrom(c))})
	})
	return router
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	router := gateRouter(t, &stubProfileLoader{}, nil, (*Gate).RequireAuth)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
}

func TestRequireAuthResolvesProfile(t *testing.T) {
	loader := &stubProfileLoader{profiles: map[string]*models.Profile{
		"user-1": {ID: "user-1", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved},
	}}
	claims := &models.JWTClaims{UserID: "user-1", Email: "ana@example.edu"}
	router := gateRouter(t, loader, claims, (*Gate).RequireAuth)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(access.Student))
}

func TestRequireAuthDegradedProfileStillPasses(t *testing.T) {
	loader := &stubProfileLoader{err: errors.New("connection refused")}
	claims := &models.JWTClaims{UserID: "user-1", Email: "ana@example.edu"}
	router := gateRouter(t, loader, claims, (*Gate).RequireAuth)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(access.ProfileDegraded))
}

func TestRequireGuestRedirectsSignedIn(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Email: "ana@example.edu"}
	router := gateRouter(t, &stubProfileLoader{}, claims, (*Gate).RequireGuest)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRequireGuestAllowsAnonymous(t *testing.T) {
	router := gateRouter(t, &stubProfileLoader{}, nil, (*Gate).RequireGuest)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveTagsAnonymousRequests(t *testing.T) {
	router := gateRouter(t, &stubProfileLoader{}, nil, (*Gate).Resolve)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(access.Anonymous))
}

func TestRequireApprovedBlocksPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	loader := &stubProfileLoader{profiles: map[string]*models.Profile{
		"user-1": {ID: "user-1", Role: models.RoleStudent, ApprovalStatus: models.ApprovalPending},
	}}
	gate := NewGate(loader, config.GateConfig{SignInPath: "/auth", HomePath: "/"}, nil)
	claims := &models.JWTClaims{UserID: "user-1", Email: "ana@example.edu"}

	router := gin.New()
	router.GET("/probe", setClaims(claims), gate.RequireAuth(), RequireApproved(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "PENDING_APPROVAL")
}

func TestRequireRolesRejectsStudentOnAdminRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	loader := &stubProfileLoader{profiles: map[string]*models.Profile{
		"user-1": {ID: "user-1", Role: models.RoleStudent, ApprovalStatus: models.ApprovalApproved},
	}}
	gate := NewGate(loader, config.GateConfig{}, nil)
	claims := &models.JWTClaims{UserID: "user-1", Email: "ana@example.edu"}

	router := gin.New()
	router.GET("/probe", setClaims(claims), gate.RequireAuth(), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
