package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type feedbackRepository interface {
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error)
	GetByID(ctx context.Context, id string) (*models.Feedback, error)
	Create(ctx context.Context, entry *models.Feedback) error
	UpdateStatus(ctx context.Context, id string, status models.FeedbackStatus) error
}

// FeedbackRequest submits a new feedback entry.
type FeedbackRequest struct {
	Type        string `json:"feedback_type" validate:"required,oneof=course_content technical_issue suggestion general"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Message     string `json:"message" validate:"required"`
	Rating      *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// FeedbackModerateRequest updates the moderation status of an entry.
type FeedbackModerateRequest struct {
	Status models.FeedbackStatus `json:"status" validate:"required,oneof=pending reviewed resolved rejected"`
}

// FeedbackService handles feedback submission and moderation. Non-admin
// listings only expose entries that passed review.
type FeedbackService struct {
	repo      feedbackRepository
	auditor   auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(repo feedbackRepository, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &FeedbackService{repo: repo, auditor: auditor, validator: validate, logger: logger}
}

// Submit records a new feedback entry for the actor. Entries start pending
// and stay invisible until moderated.
func (s *FeedbackService) Submit(ctx context.Context, actorID string, req FeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	entry := &models.Feedback{
		UserID:      actorID,
		Type:        models.FeedbackType(req.Type),
		Subject:     req.Subject,
		Message:     req.Message,
		Rating:      req.Rating,
		IsAnonymous: req.IsAnonymous,
		Status:      models.FeedbackPending,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	return entry, nil
}

// ListPublic returns moderated entries only.
func (s *FeedbackService) ListPublic(ctx context.Context, page, pageSize int) ([]models.Feedback, *models.Pagination, error) {
	entries, pagination, err := s.repo.List(ctx, models.FeedbackFilter{
		Statuses: []models.FeedbackStatus{models.FeedbackReviewed, models.FeedbackResolved},
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return entries, pagination, nil
}

// ListOwn returns the actor's own submissions regardless of status.
func (s *FeedbackService) ListOwn(ctx context.Context, actorID string, page, pageSize int) ([]models.Feedback, *models.Pagination, error) {
	entries, pagination, err := s.repo.List(ctx, models.FeedbackFilter{UserID: actorID, Page: page, PageSize: pageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return entries, pagination, nil
}

// ListAll returns every entry for the moderation queue.
func (s *FeedbackService) ListAll(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	entries, pagination, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return entries, pagination, nil
}

// Moderate moves an entry through the moderation workflow.
func (s *FeedbackService) Moderate(ctx context.Context, adminID, id string, req FeedbackModerateRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid moderation payload")
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}

	previous := entry.Status
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback status")
	}
	entry.Status = req.Status

	s.auditor.Record(&models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionFeedbackModerate,
		Resource:   "feedback",
		ResourceID: &id,
		OldValues:  []byte(`{"status":"` + string(previous) + `"}`),
		NewValues:  []byte(`{"status":"` + string(req.Status) + `"}`),
	})

	return entry, nil
}
