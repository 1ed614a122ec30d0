package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/access"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/realtime"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

const (
	chapterTable           = "chapters"
	chapterListCacheKey    = "chapters:published"
	chapterCachePattern    = "chapters:*"
	defaultChapterCacheTTL = 5 * time.Minute
)

type chapterRepository interface {
	List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error)
	GetByID(ctx context.Context, id string) (*models.Chapter, error)
	Create(ctx context.Context, chapter *models.Chapter) error
	Update(ctx context.Context, chapter *models.Chapter) error
	Delete(ctx context.Context, id string) error
	NextOrderIndex(ctx context.Context) (int, error)
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type changePublisher interface {
	Publish(ev realtime.ChangeEvent)
}

// ChapterCreateRequest creates a new chapter.
type ChapterCreateRequest struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	Content         string     `json:"content"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=0"`
	OrderIndex      *int       `json:"order_index" validate:"omitempty,gte=1"`
	Status          string     `json:"status" validate:"omitempty,oneof=draft scheduled published archived"`
	ReleaseDate     *time.Time `json:"release_date"`
}

// ChapterUpdateRequest rewrites an existing chapter.
type ChapterUpdateRequest struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	Content         string     `json:"content"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=0"`
	OrderIndex      int        `json:"order_index" validate:"gte=1"`
	Status          string     `json:"status" validate:"required,oneof=draft scheduled published archived"`
	ReleaseDate     *time.Time `json:"release_date"`
}

// ChapterService manages the course chapter lifecycle. Mutations are pushed
// to realtime subscribers and invalidate the cached published listing.
type ChapterService struct {
	repo      chapterRepository
	cache     listCache
	publisher changePublisher
	auditor   auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewChapterService constructs a ChapterService. cache and publisher may be
// nil, disabling caching and realtime fan-out respectively.
func NewChapterService(repo chapterRepository, cache listCache, publisher changePublisher, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *ChapterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultChapterCacheTTL
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &ChapterService{repo: repo, cache: cache, publisher: publisher, auditor: auditor, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns the chapters visible to the given access level, ordered by
// position. Admin sees every status; everyone else only published chapters.
func (s *ChapterService) List(ctx context.Context, level access.Level) ([]models.Chapter, error) {
	if level == access.Admin {
		chapters, err := s.repo.List(ctx, models.ChapterFilter{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chapters")
		}
		return chapters, nil
	}

	if s.cache != nil {
		var cached []models.Chapter
		if err := s.cache.Get(ctx, chapterListCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("chapter cache read failed", zap.Error(err))
		}
	}

	chapters, err := s.repo.List(ctx, models.ChapterFilter{Statuses: []models.ChapterStatus{models.ChapterPublished}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chapters")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, chapterListCacheKey, chapters, s.cacheTTL); err != nil {
			s.logger.Warn("chapter cache write failed", zap.Error(err))
		}
	}
	return chapters, nil
}

// Get returns one chapter, enforcing the status visibility rule for the
// caller's access level.
func (s *ChapterService) Get(ctx context.Context, level access.Level, id string) (*models.Chapter, error) {
	chapter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}
	if !access.CanViewChapter(level, chapter.Status) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "chapter is not published")
	}
	return chapter, nil
}

// Create inserts a chapter. The position defaults to the end of the course.
func (s *ChapterService) Create(ctx context.Context, actorID string, req ChapterCreateRequest) (*models.Chapter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chapter payload")
	}

	status := models.ChapterStatus(req.Status)
	if status == "" {
		status = models.ChapterDraft
	}

	orderIndex := 0
	if req.OrderIndex != nil {
		orderIndex = *req.OrderIndex
	} else {
		next, err := s.repo.NextOrderIndex(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign chapter position")
		}
		orderIndex = next
	}

	chapter := &models.Chapter{
		Title:           req.Title,
		Description:     req.Description,
		Content:         req.Content,
		DurationMinutes: req.DurationMinutes,
		OrderIndex:      orderIndex,
		Status:          status,
		ReleaseDate:     req.ReleaseDate,
	}

	if err := s.repo.Create(ctx, chapter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chapter")
	}

	s.afterMutation(ctx, actorID, realtime.ChangeInsert, nil, chapter)
	return chapter, nil
}

// Update rewrites a chapter.
func (s *ChapterService) Update(ctx context.Context, actorID, id string, req ChapterUpdateRequest) (*models.Chapter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chapter payload")
	}

	chapter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}

	previous := *chapter
	chapter.Title = req.Title
	chapter.Description = req.Description
	chapter.Content = req.Content
	chapter.DurationMinutes = req.DurationMinutes
	chapter.OrderIndex = req.OrderIndex
	chapter.Status = models.ChapterStatus(req.Status)
	chapter.ReleaseDate = req.ReleaseDate

	if err := s.repo.Update(ctx, chapter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update chapter")
	}

	s.afterMutation(ctx, actorID, realtime.ChangeUpdate, &previous, chapter)
	return chapter, nil
}

// Delete removes a chapter.
func (s *ChapterService) Delete(ctx context.Context, actorID, id string) error {
	chapter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete chapter")
	}

	s.afterMutation(ctx, actorID, realtime.ChangeDelete, chapter, nil)
	return nil
}

func (s *ChapterService) afterMutation(ctx context.Context, actorID string, changeType realtime.ChangeType, oldRow, newRow *models.Chapter) {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, chapterCachePattern); err != nil {
			s.logger.Warn("chapter cache invalidation failed", zap.Error(err))
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
		s.publisher.Publish(realtime.NewChangeEvent(chapterTable, changeType, oldPayload, newPayload))
	}

	resourceID := ""
	if newRow != nil {
		resourceID = newRow.ID
	} else if oldRow != nil {
		resourceID = oldRow.ID
	}
	s.auditor.Record(&models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionChapterWrite,
		Resource:   chapterTable,
		ResourceID: &resourceID,
		NewValues:  []byte(`{"change":"` + string(changeType) + `"}`),
	})
}
