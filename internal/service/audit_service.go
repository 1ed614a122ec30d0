package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/jobs"
)

type auditLogRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, resource string, page, pageSize int) ([]models.AuditLog, *models.Pagination, error)
}

// AuditService records audit trail entries asynchronously so write paths do
// not block on the audit insert.
type AuditService struct {
	repo   auditLogRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// AuditConfig tunes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// NewAuditService constructs the service and its backing queue. Call Start
// before recording and Stop on shutdown.
func NewAuditService(repo auditLogRepository, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged, never surfaced to the
// caller; audit writes must not fail the business operation.
func (s *AuditService) Record(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	// Stamp at record time so the trail reflects when the action happened,
	// not when the background writer got to it.
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	job := jobs.Job{ID: uuid.NewString(), Type: entry.Action, Payload: entry}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

// Recent lists stored audit entries, newest first.
func (s *AuditService) Recent(ctx context.Context, resource string, page, pageSize int) ([]models.AuditLog, *models.Pagination, error) {
	logs, pagination, err := s.repo.List(ctx, resource, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	return logs, pagination, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Warn("unexpected audit payload type", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.CreateAuditLog(ctx, entry)
}
