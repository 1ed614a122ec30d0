package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

const announcementColumns = "a.id, a.title, a.content, a.author_id, a.is_published, a.is_pinned, a.announcement_type, a.importance_level, a.event_date, a.event_time, a.location, a.created_at, a.updated_at"

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements newest first. Author names are joined in for
// display in the public panel.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s, p.full_name AS author_name FROM announcements a LEFT JOIN profiles p ON p.id = a.author_id WHERE 1=1`, announcementColumns)
	var args []interface{}
	if filter.PublishedOnly {
		query += " AND a.is_published = TRUE"
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		query += fmt.Sprintf(" AND a.author_id = $%d", len(args))
	}
	query += " ORDER BY a.is_pinned DESC, a.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return announcements, nil
}

// GetByID returns one announcement.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s, p.full_name AS author_name FROM announcements a LEFT JOIN profiles p ON p.id = a.author_id WHERE a.id = $1 LIMIT 1`, announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	const query = `INSERT INTO announcements (id, title, content, author_id, is_published, is_pinned, announcement_type, importance_level, event_date, event_time, location, created_at, updated_at) VALUES (:id, :title, :content, :author_id, :is_published, :is_pinned, :announcement_type, :importance_level, :event_date, :event_time, :location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update rewrites mutable announcement fields.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, is_published = :is_published, is_pinned = :is_pinned, announcement_type = :announcement_type, importance_level = :importance_level, event_date = :event_date, event_time = :event_time, location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement row.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM announcements WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return nil
}
