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

const (
	announcementTable           = "announcements"
	announcementPanelCacheKey   = "announcements:panel"
	announcementCachePattern    = "announcements:*"
	announcementPanelLimit      = 5
	defaultAnnouncementCacheTTL = 2 * time.Minute
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementRequest creates or rewrites an announcement.
type AnnouncementRequest struct {
	Title           string     `json:"title" validate:"required"`
	Content         string     `json:"content" validate:"required"`
	IsPublished     bool       `json:"is_published"`
	IsPinned        bool       `json:"is_pinned"`
	Type            string     `json:"announcement_type" validate:"omitempty,oneof=announcement event deadline update"`
	ImportanceLevel string     `json:"importance_level" validate:"omitempty,oneof=low normal high urgent"`
	EventDate       *time.Time `json:"event_date"`
	EventTime       *string    `json:"event_time"`
	Location        *string    `json:"location"`
}

// AnnouncementService manages announcements. The public panel shows the five
// most recent published entries, pinned first, and is served from cache.
type AnnouncementService struct {
	repo      announcementRepository
	cache     listCache
	publisher changePublisher
	auditor   auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(repo announcementRepository, cache listCache, publisher changePublisher, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultAnnouncementCacheTTL
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &AnnouncementService{repo: repo, cache: cache, publisher: publisher, auditor: auditor, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Panel returns the published announcements for the public home panel.
func (s *AnnouncementService) Panel(ctx context.Context) ([]models.Announcement, error) {
	if s.cache != nil {
		var cached []models.Announcement
		if err := s.cache.Get(ctx, announcementPanelCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("announcement cache read failed", zap.Error(err))
		}
	}

	announcements, err := s.repo.List(ctx, models.AnnouncementFilter{PublishedOnly: true, Limit: announcementPanelLimit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, announcementPanelCacheKey, announcements, s.cacheTTL); err != nil {
			s.logger.Warn("announcement cache write failed", zap.Error(err))
		}
	}
	return announcements, nil
}

// ListOwn returns every announcement authored by the actor, drafts included.
func (s *AnnouncementService) ListOwn(ctx context.Context, authorID string) ([]models.Announcement, error) {
	announcements, err := s.repo.List(ctx, models.AnnouncementFilter{AuthorID: authorID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, nil
}

// Create inserts a new announcement authored by the actor.
func (s *AnnouncementService) Create(ctx context.Context, actorID string, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement := &models.Announcement{
		Title:           req.Title,
		Content:         req.Content,
		AuthorID:        actorID,
		IsPublished:     req.IsPublished,
		IsPinned:        req.IsPinned,
		Type:            models.AnnouncementType(req.Type),
		ImportanceLevel: models.ImportanceLevel(req.ImportanceLevel),
		EventDate:       req.EventDate,
		EventTime:       req.EventTime,
		Location:        req.Location,
	}
	if announcement.Type == "" {
		announcement.Type = models.AnnouncementTypeAnnouncement
	}
	if announcement.ImportanceLevel == "" {
		announcement.ImportanceLevel = models.ImportanceNormal
	}

	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.afterMutation(ctx, actorID, realtime.ChangeInsert, nil, announcement)
	return announcement, nil
}

// Update rewrites an announcement the actor owns.
func (s *AnnouncementService) Update(ctx context.Context, actor *models.Profile, id string, req AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	previous := *announcement
	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.IsPublished = req.IsPublished
	announcement.IsPinned = req.IsPinned
	if req.Type != "" {
		announcement.Type = models.AnnouncementType(req.Type)
	}
	if req.ImportanceLevel != "" {
		announcement.ImportanceLevel = models.ImportanceLevel(req.ImportanceLevel)
	}
	announcement.EventDate = req.EventDate
	announcement.EventTime = req.EventTime
	announcement.Location = req.Location

	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}

	s.afterMutation(ctx, actor.ID, realtime.ChangeUpdate, &previous, announcement)
	return announcement, nil
}

// Delete removes an announcement the actor owns.
func (s *AnnouncementService) Delete(ctx context.Context, actor *models.Profile, id string) error {
	announcement, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}

	s.afterMutation(ctx, actor.ID, realtime.ChangeDelete, announcement, nil)
	return nil
}

func (s *AnnouncementService) loadOwned(ctx context.Context, actor *models.Profile, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	if announcement.AuthorID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another author")
	}
	return announcement, nil
}

func (s *AnnouncementService) afterMutation(ctx context.Context, actorID string, changeType realtime.ChangeType, oldRow, newRow *models.Announcement) {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, announcementCachePattern); err != nil {
			s.logger.Warn("announcement cache invalidation failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		var oldPayload, newPayload interface{}
		if oldRow != nil {
			oldPayload = oldRow
		}
		if newRow != nil {
			newPayload = newRow
		}
		s.publisher.Publish(realtime.NewChangeEvent(announcementTable, changeType, oldPayload, newPayload))
	}

	resourceID := ""
	if newRow != nil {
		resourceID = newRow.ID
	} else if oldRow != nil {
		resourceID = oldRow.ID
	}
	s.auditor.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionAnnouncementEdit,
		Resource:   announcementTable,
		ResourceID: &resourceID,
		NewValues:  []byte(`{"change":"` + string(changeType) + `"}`),
	})
}
