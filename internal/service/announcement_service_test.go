package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	announcements map[string]*models.Announcement
	lastFilter    models.AnnouncementFilter
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{announcements: make(map[string]*models.Announcement)}
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	m.lastFilter = filter
	var out []models.Announcement
	for _, a := range m.announcements {
		if filter.PublishedOnly && !a.IsPublished {
			continue
		}
		if filter.AuthorID != "" && a.AuthorID != filter.AuthorID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if a, ok := m.announcements[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = "ann-new"
	}
	copy := *announcement
	m.announcements[announcement.ID] = &copy
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	copy := *announcement
	m.announcements[announcement.ID] = &copy
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	delete(m.announcements, id)
	return nil
}

func newAnnouncementService(repo *mockAnnouncementRepo, cache *mockCache, publisher *mockPublisher) *AnnouncementService {
	return NewAnnouncementService(repo, cache, publisher, &mockAuditor{}, validator.New(), zap.NewNop(), 0)
}

func TestAnnouncementPanelLimitsToPublished(t *testing.T) {
	repo := newMockAnnouncementRepo()
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		repo.announcements[id] = &models.Announcement{ID: id, IsPublished: true}
	}
	repo.announcements["draft"] = &models.Announcement{ID: "draft", IsPublished: false}
	svc := newAnnouncementService(repo, newMockCache(), &mockPublisher{})

	panel, err := svc.Panel(context.Background())
	require.NoError(t, err)
	assert.Len(t, panel, 5)
	assert.True(t, repo.lastFilter.PublishedOnly)
	assert.Equal(t, 5, repo.lastFilter.Limit)
}

func TestAnnouncementListOwnIncludesDrafts(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.announcements["a1"] = &models.Announcement{ID: "a1", AuthorID: "admin-1", IsPublished: false}
	repo.announcements["a2"] = &models.Announcement{ID: "a2", AuthorID: "admin-1", IsPublished: true}
	repo.announcements["a3"] = &models.Announcement{ID: "a3", AuthorID: "admin-2", IsPublished: true}
	svc := newAnnouncementService(repo, newMockCache(), &mockPublisher{})

	own, err := svc.ListOwn(context.Background(), "admin-1")
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestAnnouncementCreateDefaultsTypeAndImportance(t *testing.T) {
	repo := newMockAnnouncementRepo()
	cache := newMockCache()
	svc := newAnnouncementService(repo, cache, &mockPublisher{})

	created, err := svc.Create(context.Background(), "admin-1", AnnouncementRequest{
		Title:   "Welcome",
		Content: "Course starts Monday",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementTypeAnnouncement, created.Type)
	assert.Equal(t, models.ImportanceNormal, created.ImportanceLevel)
	assert.Contains(t, cache.deletions, "announcements:*")
}

func TestAnnouncementUpdateRefusedForOtherAuthor(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.announcements["a1"] = &models.Announcement{ID: "a1", AuthorID: "admin-1"}
	svc := newAnnouncementService(repo, newMockCache(), &mockPublisher{})

	other := &models.Profile{ID: "prof-1", Role: models.RoleProfessor}
	_, err := svc.Update(context.Background(), other, "a1", AnnouncementRequest{Title: "X", Content: "Y"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAnnouncementDeleteByAdmin(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.announcements["a1"] = &models.Announcement{ID: "a1", AuthorID: "prof-1"}
	svc := newAnnouncementService(repo, newMockCache(), &mockPublisher{})

	admin := &models.Profile{ID: "admin-1", Role: models.RoleAdmin}
	err := svc.Delete(context.Background(), admin, "a1")
	require.NoError(t, err)
	assert.Empty(t, repo.announcements)
}
