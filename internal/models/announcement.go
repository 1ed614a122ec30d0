package models

import "time"

// AnnouncementType classifies an announcement.
type AnnouncementType string

const (
	AnnouncementTypeAnnouncement AnnouncementType = "announcement"
	AnnouncementTypeEvent        AnnouncementType = "event"
	AnnouncementTypeDeadline     AnnouncementType = "deadline"
	AnnouncementTypeUpdate       AnnouncementType = "update"
)

// ImportanceLevel defines ordering weight for announcements.
type ImportanceLevel string

const (
	ImportanceLow    ImportanceLevel = "low"
	ImportanceNormal ImportanceLevel = "normal"
	ImportanceHigh   ImportanceLevel = "high"
	ImportanceUrgent ImportanceLevel = "urgent"
)

// Announcement represents a persisted announcement row. Unpublished rows are
// drafts visible only to their author.
type Announcement struct {
	ID              string           `db:"id" json:"id"`
	Title           string           `db:"title" json:"title"`
	Content         string           `db:"content" json:"content"`
	AuthorID        string           `db:"author_id" json:"author_id"`
	AuthorName      *string          `db:"author_name" json:"author_name,omitempty"`
	IsPublished     bool             `db:"is_published" json:"is_published"`
	IsPinned        bool             `db:"is_pinned" json:"is_pinned"`
	Type            AnnouncementType `db:"announcement_type" json:"announcement_type"`
	ImportanceLevel ImportanceLevel  `db:"importance_level" json:"importance_level"`
	EventDate       *time.Time       `db:"event_date" json:"event_date,omitempty"`
	EventTime       *string          `db:"event_time" json:"event_time,omitempty"`
	Location        *string          `db:"location" json:"location,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter narrows announcement listings.
type AnnouncementFilter struct {
	AuthorID      string
	PublishedOnly bool
	Limit         int
}
