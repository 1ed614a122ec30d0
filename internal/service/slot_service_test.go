package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockSlotRepo struct {
	slots map[string]*models.AvailabilitySlot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[string]*models.AvailabilitySlot)}
}

func (m *mockSlotRepo) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, error) {
	var out []models.AvailabilitySlot
	for _, s := range m.slots {
		if filter.ActiveOnly && !s.IsActive {
			continue
		}
		if filter.ProfessorID != "" && s.ProfessorID != filter.ProfessorID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockSlotRepo) GetByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	if s, ok := m.slots[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = "slot-new"
	}
	copy := *slot
	m.slots[slot.ID] = &copy
	return nil
}

func (m *mockSlotRepo) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	copy := *slot
	m.slots[slot.ID] = &copy
	return nil
}

func (m *mockSlotRepo) Deactivate(ctx context.Context, id string) error {
	if s, ok := m.slots[id]; ok {
		s.IsActive = false
		return nil
	}
	return sql.ErrNoRows
}

func newSlotService(repo *mockSlotRepo, publisher *mockPublisher) *SlotService {
	return NewSlotService(repo, publisher, &mockAuditor{}, validator.New(), zap.NewNop())
}

func professorProfile(id string) *models.Profile {
	return &models.Profile{ID: id, Role: models.RoleProfessor, ApprovalStatus: models.ApprovalApproved}
}

func TestSlotCreateDefaults(t *testing.T) {
	repo := newMockSlotRepo()
	publisher := &mockPublisher{}
	svc := newSlotService(repo, publisher)

	start := time.Now().UTC().Add(24 * time.Hour)
	slot, err := svc.Create(context.Background(), professorProfile("prof-1"), SlotRequest{
		Title:     "Office hours",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "prof-1", slot.ProfessorID)
	assert.Equal(t, "office_hours", slot.SlotType)
	assert.True(t, slot.IsActive)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.ChangeInsert, publisher.events[0].Type)
}

func TestSlotCreateRejectsInvertedWindow(t *testing.T) {
	svc := newSlotService(newMockSlotRepo(), &mockPublisher{})

	start := time.Now().UTC().Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), professorProfile("prof-1"), SlotRequest{
		Title:     "Broken",
		StartTime: start,
		EndTime:   start.Add(-time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSlotUpdateRefusedForOtherProfessor(t *testing.T) {
	repo := newMockSlotRepo()
	start := time.Now().UTC().Add(24 * time.Hour)
	repo.slots["slot-1"] = &models.AvailabilitySlot{ID: "slot-1", ProfessorID: "prof-1", IsActive: true}
	svc := newSlotService(repo, &mockPublisher{})

	_, err := svc.Update(context.Background(), professorProfile("prof-2"), "slot-1", SlotRequest{
		Title:     "Hijack",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSlotUpdateAllowedForAdmin(t *testing.T) {
	repo := newMockSlotRepo()
	start := time.Now().UTC().Add(24 * time.Hour)
	repo.slots["slot-1"] = &models.AvailabilitySlot{ID: "slot-1", ProfessorID: "prof-1", IsActive: true}
	svc := newSlotService(repo, &mockPublisher{})

	admin := &models.Profile{ID: "admin-1", Role: models.RoleAdmin, ApprovalStatus: models.ApprovalApproved}
	slot, err := svc.Update(context.Background(), admin, "slot-1", SlotRequest{
		Title:     "Moved",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Moved", slot.Title)
	assert.Equal(t, "prof-1", slot.ProfessorID)
}

func TestSlotDeactivateSoftDeletes(t *testing.T) {
	repo := newMockSlotRepo()
	repo.slots["slot-1"] = &models.AvailabilitySlot{ID: "slot-1", ProfessorID: "prof-1", IsActive: true}
	publisher := &mockPublisher{}
	svc := newSlotService(repo, publisher)

	err := svc.Deactivate(context.Background(), professorProfile("prof-1"), "slot-1")
	require.NoError(t, err)
	assert.False(t, repo.slots["slot-1"].IsActive)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.ChangeUpdate, publisher.events[0].Type)
}
