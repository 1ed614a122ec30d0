package models

import "time"

// ChapterStatus tracks a chapter through its publishing lifecycle.
type ChapterStatus string

const (
	ChapterDraft     ChapterStatus = "draft"
	ChapterScheduled ChapterStatus = "scheduled"
	ChapterPublished ChapterStatus = "published"
	ChapterArchived  ChapterStatus = "archived"
)

// Chapter represents a persisted course chapter row. order_index is a dense
// ordering key, not guaranteed gap-free.
type Chapter struct {
	ID              string        `db:"id" json:"id"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description"`
	Content         string        `db:"content" json:"content"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	OrderIndex      int           `db:"order_index" json:"order_index"`
	Status          ChapterStatus `db:"status" json:"status"`
	ReleaseDate     *time.Time    `db:"release_date" json:"release_date,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// ChapterFilter narrows chapter listings.
type ChapterFilter struct {
	Statuses []ChapterStatus
}
