package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockChapterRepo struct {
	chapters   map[string]*models.Chapter
	lastFilter models.ChapterFilter
	nextIndex  int
}

func newMockChapterRepo() *mockChapterRepo {
	return &mockChapterRepo{chapters: make(map[string]*models.Chapter), nextIndex: 1}
}

func (m *mockChapterRepo) List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error) {
	m.lastFilter = filter
	allowed := func(status models.ChapterStatus) bool {
		if len(filter.Statuses) == 0 {
			return true
		}
		for _, s := range filter.Statuses {
			if s == status {
				return true
			}
		}
		return false
	}
	var out []models.Chapter
	for _, c := range m.chapters {
		if allowed(c.Status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockChapterRepo) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	if c, ok := m.chapters[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChapterRepo) Create(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = "ch-new"
	}
	copy := *chapter
	m.chapters[chapter.ID] = &copy
	return nil
}

func (m *mockChapterRepo) Update(ctx context.Context, chapter *models.Chapter) error {
	copy := *chapter
	m.chapters[chapter.ID] = &copy
	return nil
}

func (m *mockChapterRepo) Delete(ctx context.Context, id string) error {
	delete(m.chapters, id)
	return nil
}

func (m *mockChapterRepo) NextOrderIndex(ctx context.Context) (int, error) {
	return m.nextIndex, nil
}

type mockCache struct {
	store      map[string][]byte
	deletions  []string
	getErr     error
	missAlways bool
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	if m.missAlways {
		return appErrors.ErrCacheMiss
	}
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletions = append(m.deletions, pattern)
	m.store = make(map[string][]byte)
	return nil
}

type mockPublisher struct {
	events []realtime.ChangeEvent
}

func (m *mockPublisher) Publish(ev realtime.ChangeEvent) {
	m.events = append(m.events, ev)
}

func newChapterService(repo *mockChapterRepo, cache *mockCache, publisher *mockPublisher) *ChapterService {
	return NewChapterService(repo, cache, publisher, &mockAuditor{}, validator.New(), zap.NewNop(), time.Minute)
}

func TestChapterListStudentSeesPublishedOnly(t *testing.T) {
	repo := newMockChapterRepo()
	repo.chapters["ch-1"] = &models.Chapter{ID: "ch-1", Title: "Intro", Status: models.ChapterPublished}
	repo.chapters["ch-2"] = &models.Chapter{ID: "ch-2", Title: "Draft", Status: models.ChapterDraft}
	svc := newChapterService(repo, newMockCache(), &mockPublisher{})

	chapters, err := svc.List(context.Background(), access.Student)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "ch-1", chapters[0].ID)
	assert.Equal(t, []models.ChapterStatus{models.ChapterPublished}, repo.lastFilter.Statuses)
}

func TestChapterListAdminSeesAllStatuses(t *testing.T) {
	repo := newMockChapterRepo()
	repo.chapters["ch-1"] = &models.Chapter{ID: "ch-1", Status: models.ChapterPublished}
	repo.chapters["ch-2"] = &models.Chapter{ID: "ch-2", Status: models.ChapterDraft}
	repo.chapters["ch-3"] = &models.Chapter{ID: "ch-3", Status: models.ChapterArchived}
	svc := newChapterService(repo, newMockCache(), &mockPublisher{})

	chapters, err := svc.List(context.Background(), access.Admin)
	require.NoError(t, err)
	assert.Len(t, chapters, 3)
	assert.Empty(t, repo.lastFilter.Statuses)
}

func TestChapterListServedFromCache(t *testing.T) {
	repo := newMockChapterRepo()
	repo.chapters["ch-1"] = &models.Chapter{ID: "ch-1", Status: models.ChapterPublished}
	cache := newMockCache()
	svc := newChapterService(repo, cache, &mockPublisher{})

	first, err := svc.List(context.Background(), access.Student)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A row added behind the cache must not appear until invalidation.
	repo.chapters["ch-2"] = &models.Chapter{ID: "ch-2", Status: models.ChapterPublished}
	second, err := svc.List(context.Background(), access.Student)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestChapterGetDraftForbiddenForStudent(t *testing.T) {
	repo := newMockChapterRepo()
	repo.chapters["ch-2"] = &models.Chapter{ID: "ch-2", Status: models.ChapterDraft}
	svc := newChapterService(repo, newMockCache(), &mockPublisher{})

	_, err := svc.Get(context.Background(), access.Student, "ch-2")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	chapter, err := svc.Get(context.Background(), access.Admin, "ch-2")
	require.NoError(t, err)
	assert.Equal(t, models.ChapterDraft, chapter.Status)
}

func TestChapterCreateAssignsNextPosition(t *testing.T) {
	repo := newMockChapterRepo()
	repo.nextIndex = 7
	cache := newMockCache()
	publisher := &mockPublisher{}
	svc := newChapterService(repo, cache, publisher)

	chapter, err := svc.Create(context.Background(), "admin-1", ChapterCreateRequest{Title: "Closures"})
	require.NoError(t, err)
	assert.Equal(t, 7, chapter.OrderIndex)
	assert.Equal(t, models.ChapterDraft, chapter.Status)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.ChangeInsert, publisher.events[0].Type)
	assert.Equal(t, "chapters", publisher.events[0].Table)
	assert.Contains(t, cache.deletions, "chapters:*")
}

func TestChapterUpdatePublishesOldAndNewRows(t *testing.T) {
	repo := newMockChapterRepo()
	repo.chapters["ch-1"] = &models.Chapter{ID: "ch-1", Title: "Old title", OrderIndex: 1, Status: models.ChapterDraft}
	publisher := &mockPublisher{}
	svc := newChapterService(repo, newMockCache(), publisher)

	_, err := svc.Update(context.Background(), "admin-1", "ch-1", ChapterUpdateRequest{
		Title:      "New title",
		OrderIndex: 1,
		Status:     "published",
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.Equal(t, realtime.ChangeUpdate, ev.Type)

	var oldRow, newRow models.Chapter
	require.NoError(t, json.Unmarshal(ev.OldRow, &oldRow))
	require.NoError(t, json.Unmarshal(ev.NewRow, &newRow))
	assert.Equal(t, "Old title", oldRow.Title)
	assert.Equal(t, "New title", newRow.Title)
	assert.Equal(t, models.ChapterPublished, newRow.Status)
}

func TestChapterDeleteMissing(t *testing.T) {
	svc := newChapterService(newMockChapterRepo(), newMockCache(), &mockPublisher{})

	err := svc.Delete(context.Background(), "admin-1", "nope")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
