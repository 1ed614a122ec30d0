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

const chapterColumns = "id, title, description, content, duration_minutes, order_index, status, release_date, created_at, updated_at"

// ChapterRepository provides persistence for course chapters.
type ChapterRepository struct {
	db *sqlx.DB
}

// NewChapterRepository creates the repository.
func NewChapterRepository(db *sqlx.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// List returns chapters ordered by order_index, optionally restricted to a
// set of statuses.
func (r *ChapterRepository) List(ctx context.Context, filter models.ChapterFilter) ([]models.Chapter, error) {
	query := fmt.Sprintf("SELECT %s FROM chapters", chapterColumns)
	var args []interface{}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY order_index ASC, id ASC"

	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, query, args...); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

// GetByID returns a chapter by identifier.
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	query := fmt.Sprintf("SELECT %s FROM chapters WHERE id = $1 LIMIT 1", chapterColumns)
	var chapter models.Chapter
	if err := r.db.GetContext(ctx, &chapter, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	return &chapter, nil
}

// Create inserts a new chapter.
func (r *ChapterRepository) Create(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = now
	}
	chapter.UpdatedAt = now

	const query = `INSERT INTO chapters (id, title, description, content, duration_minutes, order_index, status, release_date, created_at, updated_at) VALUES (:id, :title, :description, :content, :duration_minutes, :order_index, :status, :release_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

// Update rewrites mutable chapter fields.
func (r *ChapterRepository) Update(ctx context.Context, chapter *models.Chapter) error {
	chapter.UpdatedAt = time.Now().UTC()
	const query = `UPDATE chapters SET title = :title, description = :description, content = :content, duration_minutes = :duration_minutes, order_index = :order_index, status = :status, release_date = :release_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// Delete removes a chapter row.
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM chapters WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return nil
}

// NextOrderIndex returns one past the highest order_index currently stored.
func (r *ChapterRepository) NextOrderIndex(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(MAX(order_index), 0) + 1 FROM chapters`
	var next int
	if err := r.db.GetContext(ctx, &next, query); err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return next, nil
}
