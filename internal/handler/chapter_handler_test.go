package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/config"
)

type chapterRepoStub struct {
	chapters []models.Chapter
	created  []*models.Chapter
}

func (s *chapterRepoStub) List(_ context.Context, filter models.ChapterFilter) ([]models.Chapter, error) {
	if len(filter.Statuses) == 0 {
		return append([]models.Chapter(nil), s.chapters...), nil
	}
	allowed := make(map[models.ChapterStatus]bool, len(filter.Statuses))
	for _, status := range filter.Statuses {
		allowed[status] = true
	}
	var out []models.Chapter
	for _, ch := range s.chapters {
		if allowed[ch.Status] {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (s *chapterRepoStub) GetByID(_ context.Context, id string) (*models.Chapter, error) {
	for i := range s.chapters {
		if s.chapters[i].ID == id {
			copy := s.chapters[i]
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *chapterRepoStub) Create(_ context.Context, chapter *models.Chapter) error {
	chapter.ID = "new-chapter"
	s.created = append(s.created, chapter)
	s.chapters = append(s.chapters, *chapter)
	return nil
}

func (s *chapterRepoStub) Update(_ context.Context, chapter *models.Chapter) error {
	for i := range s.chapters {
		if s.chapters[i].ID == chapter.ID {
			s.chapters[i] = *chapter
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *chapterRepoStub) Delete(_ context.Context, id string) error {
	for i := range s.chapters {
		if s.chapters[i].ID == id {
			s.chapters = append(s.chapters[:i], s.chapters[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *chapterRepoStub) NextOrderIndex(_ context.Context) (int, error) {
	return len(s.chapters) + 1, nil
}

func buildChapterRouter(repo *chapterRepoStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewChapterService(repo, nil, nil, nil, nil, nil, 0)
	h := NewChapterHandler(svc, config.GateConfig{HomePath: "/"})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-Test-Access"); raw != "" {
			c.Set(middleware.ContextAccessKey, access.Level(raw))
		} else {
			c.Set(middleware.ContextAccessKey, access.Anonymous)
		}
		if c.GetHeader("X-Test-Access") == string(access.Admin) {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		}
		c.Next()
	})
	router.GET("/chapters", h.List)
	router.GET("/chapters/:id", h.Get)
	router.POST("/admin/chapters", h.Create)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestChapterRoutes(t *testing.T) {
	repo := &chapterRepoStub{chapters: []models.Chapter{
		{ID: "ch-1", Title: "Intro", Status: models.ChapterPublished, OrderIndex: 1},
		{ID: "ch-2", Title: "Drafting", Status: models.ChapterDraft, OrderIndex: 2},
	}}
	router := buildChapterRouter(repo)

	t.Run("student list omits drafts", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/chapters", nil)
		req.Header.Set("X-Test-Access", string(access.Student))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"ch-1"`)
		require.NotContains(t, resp.Body.String(), `"ch-2"`)
	})

	t.Run("admin list includes drafts with status counts", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/chapters", nil)
		req.Header.Set("X-Test-Access", string(access.Admin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"ch-2"`)
		require.Contains(t, resp.Body.String(), `"status_counts"`)
	})

	t.Run("draft chapter redirects students home", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/chapters/ch-2", nil)
		req.Header.Set("X-Test-Access", string(access.Student))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusSeeOther, resp.Code)
		require.Equal(t, "/", resp.Header().Get("Location"))
	})

	t.Run("draft chapter previews for admins", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/chapters/ch-2", nil)
		req.Header.Set("X-Test-Access", string(access.Admin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"preview":true`)
	})

	t.Run("missing chapter is not found", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/chapters/nope", nil)
		req.Header.Set("X-Test-Access", string(access.Admin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("create rejects invalid payload", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/admin/chapters", bytes.NewBufferString(`{`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Access", string(access.Admin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("create defaults to draft", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/admin/chapters", bytes.NewBufferString(`{"title":"New","content":"body"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Access", string(access.Admin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Len(t, repo.created, 1)
		require.Equal(t, models.ChapterDraft, repo.created[0].Status)
	})
}
