package models

import "time"

// FeedbackType classifies submitted feedback.
type FeedbackType string

const (
	FeedbackCourseContent  FeedbackType = "course_content"
	FeedbackTechnicalIssue FeedbackType = "technical_issue"
	FeedbackSuggestion     FeedbackType = "suggestion"
	FeedbackGeneral        FeedbackType = "general"
)

// FeedbackStatus tracks moderation state. Only reviewed and resolved entries
// are listed publicly.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackReviewed FeedbackStatus = "reviewed"
	FeedbackResolved FeedbackStatus = "resolved"
	FeedbackRejected FeedbackStatus = "rejected"
)

// Feedback represents a persisted feedback row.
type Feedback struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Type        FeedbackType   `db:"feedback_type" json:"feedback_type"`
	Subject     string         `db:"subject" json:"subject"`
	Message     string         `db:"message" json:"message"`
	Rating      *int           `db:"rating" json:"rating,omitempty"`
	IsAnonymous bool           `db:"is_anonymous" json:"is_anonymous"`
	Status      FeedbackStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// FeedbackFilter narrows feedback listings.
type FeedbackFilter struct {
	Statuses []FeedbackStatus
	UserID   string
	Page     int
	PageSize int
}
