package models

import "time"

// Role represents the coarse permission class of a profile.
type Role string

const (
	RoleStudent   Role = "student"
	RoleProfessor Role = "professor"
	RoleAdmin     Role = "admin"
)

// ApprovalStatus gates whether a registered account may see course content.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Profile is the application-level user record, one row per auth identity.
// The id doubles as the session user id.
type Profile struct {
	ID             string         `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	PasswordHash   string         `db:"password_hash" json:"-"`
	FullName       string         `db:"full_name" json:"full_name"`
	Role           Role           `db:"role" json:"role"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	StudentID      *string        `db:"student_id" json:"student_id,omitempty"`
	Bio            *string        `db:"bio" json:"bio,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// SessionUser is the opaque auth identity carried by a live session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProfileFilter captures filtering criteria for listing profiles.
type ProfileFilter struct {
	Role           *Role
	ApprovalStatus *ApprovalStatus
	Search         string
	CreatedAfter   *time.Time
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// StudentStats summarises registration activity for the admin dashboard.
type StudentStats struct {
	TotalStudents        int       `json:"total_students"`
	NewStudentsThisWeek  int       `json:"new_students_this_week"`
	NewStudentsThisMonth int       `json:"new_students_this_month"`
	RecentStudents       []Profile `json:"recent_students"`
}
