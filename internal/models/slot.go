package models

import "time"

// AvailabilitySlot is an office-hours window published by a professor.
// The window is half-open: [StartTime, EndTime).
type AvailabilitySlot struct {
	ID          string    `db:"id" json:"id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	Location    *string   `db:"location" json:"location,omitempty"`
	VirtualLink *string   `db:"virtual_link" json:"virtual_link,omitempty"`
	MaxBookings int       `db:"max_bookings" json:"max_bookings"`
	SlotType    string    `db:"slot_type" json:"slot_type"`
	IsRecurring bool      `db:"is_recurring" json:"is_recurring"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SlotFilter narrows availability listings.
type SlotFilter struct {
	ProfessorID string
	ActiveOnly  bool
	From        *time.Time
}
