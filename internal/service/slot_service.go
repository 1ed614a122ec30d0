package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

const slotTable = "availability_slots"

type slotRepository interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, error)
	GetByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	Update(ctx context.Context, slot *models.AvailabilitySlot) error
	Deactivate(ctx context.Context, id string) error
}

// SlotRequest creates or rewrites an availability slot.
type SlotRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Location    *string   `json:"location"`
	VirtualLink *string   `json:"virtual_link" validate:"omitempty,url"`
	MaxBookings int       `json:"max_bookings" validate:"gte=0"`
	SlotType    string    `json:"slot_type" validate:"omitempty,oneof=office_hours review_session consultation"`
	IsRecurring bool      `json:"is_recurring"`
}

// SlotService manages office-hour availability windows. Writes are scoped to
// the owning professor; admin may manage any slot.
type SlotService struct {
	repo      slotRepository
	publisher changePublisher
	auditor   auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSlotService constructs a SlotService.
func NewSlotService(repo slotRepository, publisher changePublisher, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger) *SlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &SlotService{repo: repo, publisher: publisher, auditor: auditor, validator: validate, logger: logger}
}

// List returns active upcoming slots for the availability page.
func (s *SlotService) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, error) {
	slots, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return slots, nil
}

// Create publishes a new availability window owned by the actor.
func (s *SlotService) Create(ctx context.Context, actor *models.Profile, req SlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	slotType := req.SlotType
	if slotType == "" {
		slotType = "office_hours"
	}

	slot := &models.AvailabilitySlot{
		ProfessorID: actor.ID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		VirtualLink: req.VirtualLink,
		MaxBookings: req.MaxBookings,
		SlotType:    slotType,
		IsRecurring: req.IsRecurring,
		IsActive:    true,
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}

	s.afterMutation(actor.ID, realtime.ChangeInsert, nil, slot)
	return slot, nil
}

// Update rewrites a slot the actor owns.
func (s *SlotService) Update(ctx context.Context, actor *models.Profile, id string, req SlotRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	slot, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	previous := *slot
	slot.Title = req.Title
	slot.Description = req.Description
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.Location = req.Location
	slot.VirtualLink = req.VirtualLink
	slot.MaxBookings = req.MaxBookings
	if req.SlotType != "" {
		slot.SlotType = req.SlotType
	}
	slot.IsRecurring = req.IsRecurring

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
	}

	s.afterMutation(actor.ID, realtime.ChangeUpdate, &previous, slot)
	return slot, nil
}

// Deactivate retires a slot without deleting its history.
func (s *SlotService) Deactivate(ctx context.Context, actor *models.Profile, id string) error {
	slot, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate slot")
	}

	retired := *slot
	retired.IsActive = false
	s.afterMutation(actor.ID, realtime.ChangeUpdate, slot, &retired)
	return nil
}

func (s *SlotService) loadOwned(ctx context.Context, actor *models.Profile, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	if slot.ProfessorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "slot belongs to another professor")
	}
	return slot, nil
}

func (s *SlotService) afterMutation(actorID string, changeType realtime.ChangeType, oldRow, newRow *models.AvailabilitySlot) {
	if s.publisher != nil {
		var oldPayload, newPayload interface{}
		if oldRow != nil {
			oldPayload = oldRow
		}
		if newRow != nil {
			newPayload = newRow
		}
		s.publisher.Publish(realtime.NewChangeEvent(slotTable, changeType, oldPayload, newPayload))
	}

	resourceID := ""
	if newRow != nil {
		resourceID = newRow.ID
	} else if oldRow != nil {
		resourceID = oldRow.ID
	}
	s.auditor.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSlotWrite,
		Resource:   slotTable,
		ResourceID: &resourceID,
		NewValues:  []byte(`{"change":"` + string(changeType) + `"}`),
	})
}
