package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

const feedbackColumns = "id, user_id, feedback_type, subject, message, rating, is_anonymous, status, created_at, updated_at"

// FeedbackRepository provides persistence for feedback entries.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository creates the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// List returns feedback entries newest first with pagination metadata.
func (r *FeedbackRepository) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	where := " WHERE 1=1"
	var args []interface{}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		where += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ", "))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM feedback" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, nil, fmt.Errorf("count feedback: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT %s FROM feedback%s ORDER BY created_at DESC LIMIT %d OFFSET %d", feedbackColumns, where, pageSize, offset)
	var entries []models.Feedback
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list feedback: %w", err)
	}

	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return entries, pagination, nil
}

// GetByID returns one feedback entry.
func (r *FeedbackRepository) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	query := fmt.Sprintf("SELECT %s FROM feedback WHERE id = $1 LIMIT 1", feedbackColumns)
	var entry models.Feedback
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return &entry, nil
}

// Create inserts a new feedback entry. New entries always start pending.
func (r *FeedbackRepository) Create(ctx context.Context, entry *models.Feedback) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.FeedbackPending
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `INSERT INTO feedback (id, user_id, feedback_type, subject, message, rating, is_anonymous, status, created_at, updated_at) VALUES (:id, :user_id, :feedback_type, :subject, :message, :rating, :is_anonymous, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// UpdateStatus moves a feedback entry through the moderation workflow.
func (r *FeedbackRepository) UpdateStatus(ctx context.Context, id string, status models.FeedbackStatus) error {
	const query = `UPDATE feedback SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update feedback status: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
