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

const slotColumns = "id, professor_id, title, description, start_time, end_time, location, virtual_link, max_bookings, slot_type, is_recurring, is_active, created_at, updated_at"

// SlotRepository provides persistence for availability slots.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// List returns slots ordered by start time.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_slots WHERE 1=1", slotColumns)
	var args []interface{}
	if filter.ProfessorID != "" {
		args = append(args, filter.ProfessorID)
		query += fmt.Sprintf(" AND professor_id = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND is_active = TRUE"
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	query += " ORDER BY start_time ASC"

	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list availability slots: %w", err)
	}
	return slots, nil
}

// GetByID returns one slot.
func (r *SlotRepository) GetByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_slots WHERE id = $1 LIMIT 1", slotColumns)
	var slot models.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get availability slot: %w", err)
	}
	return &slot, nil
}

// Create inserts a new slot.
func (r *SlotRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO availability_slots (id, professor_id, title, description, start_time, end_time, location, virtual_link, max_bookings, slot_type, is_recurring, is_active, created_at, updated_at) VALUES (:id, :professor_id, :title, :description, :start_time, :end_time, :location, :virtual_link, :max_bookings, :slot_type, :is_recurring, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create availability slot: %w", err)
	}
	return nil
}

// Update rewrites mutable slot fields.
func (r *SlotRepository) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availability_slots SET title = :title, description = :description, start_time = :start_time, end_time = :end_time, location = :location, virtual_link = :virtual_link, max_bookings = :max_bookings, slot_type = :slot_type, is_recurring = :is_recurring, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update availability slot: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a slot by flipping is_active.
func (r *SlotRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE availability_slots SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate availability slot: %w", err)
	}
	return nil
}
