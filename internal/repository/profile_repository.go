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

const profileColumns = "id, email, password_hash, full_name, role, approval_status, student_id, bio, created_at, updated_at"

// ProfileRepository provides database access for profiles, refresh tokens,
// and audit logs.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail returns a profile by email address.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE email = $1 LIMIT 1`, profileColumns)
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return &profile, nil
}

// FindByID returns a profile by identifier.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1 LIMIT 1`, profileColumns)
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// Create inserts a new profile row.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (id, email, password_hash, full_name, role, approval_status, student_id, bio, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :approval_status, :student_id, :bio, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Ensure inserts the profile unless a row for the id already exists, then
// returns the stored row either way. The insert races cleanly with concurrent
// provisioning of the same identity.
func (r *ProfileRepository) Ensure(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (id, email, password_hash, full_name, role, approval_status, student_id, bio, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :approval_status, :student_id, :bio, :created_at, :updated_at) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return r.FindByID(ctx, profile.ID)
}

// Update updates soft fields plus role and approval status.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET full_name = :full_name, role = :role, approval_status = :approval_status, student_id = :student_id, bio = :bio, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *ProfileRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE profiles SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// List returns profiles based on filters with total count.
func (r *ProfileRepository) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	baseQuery := `FROM profiles WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.ApprovalStatus != nil {
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", len(args)+1))
		args = append(args, *filter.ApprovalStatus)
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.CreatedAfter)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"full_name":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", profileColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	return profiles, total, nil
}

// CountStudentsSince counts student profiles created at or after the cutoff.
func (r *ProfileRepository) CountStudentsSince(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM profiles WHERE role = $1 AND created_at >= $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, models.RoleStudent, cutoff); err != nil {
		return 0, fmt.Errorf("count students since: %w", err)
	}
	return total, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *ProfileRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *ProfileRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *ProfileRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *ProfileRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
