package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	Ensure(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	CountStudentsSince(ctx context.Context, cutoff time.Time) (int, error)
}

// ProfileUpdateRequest carries self-service profile edits.
type ProfileUpdateRequest struct {
	FullName  string  `json:"full_name" validate:"required"`
	StudentID *string `json:"student_id"`
	Bio       *string `json:"bio"`
}

// ApprovalRequest moves an account through the approval workflow.
type ApprovalRequest struct {
	ApprovalStatus models.ApprovalStatus `json:"approval_status" validate:"required,oneof=pending approved rejected"`
	Role           *models.Role          `json:"role" validate:"omitempty,oneof=student professor admin"`
}

// ProfileService manages profile reads, self-service edits and the admin
// approval workflow. It also backs the session provider's profile lookups.
type ProfileService struct {
	repo       profileRepository
	auditor    auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	adminEmail string
}

// NewProfileService constructs a ProfileService. adminEmail is the bootstrap
// admin address; identities provisioned with it become approved admins.
func NewProfileService(repo profileRepository, auditor auditRecorder, validate *validator.Validate, logger *zap.Logger, adminEmail string) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if auditor == nil {
		auditor = noopAuditor{}
	}
	return &ProfileService{
		repo:       repo,
		auditor:    auditor,
		validator:  validate,
		logger:     logger,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

// FetchProfile returns the stored profile for a session user id. Missing
// rows surface as sql.ErrNoRows so callers can distinguish absent from broken.
func (s *ProfileService) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.repo.FindByID(ctx, userID)
}

// ProvisionProfile creates the default profile row for an authenticated
// identity that has none. Safe to race: a concurrent insert for the same id
// resolves to the stored row. The bootstrap admin email maps to an approved
// admin here just as it does at signup, so an identity created out-of-band
// with that address never lands in the approval queue.
func (s *ProfileService) ProvisionProfile(ctx context.Context, user models.SessionUser) (*models.Profile, error) {
	profile := &models.Profile{
		ID:             user.ID,
		Email:          user.Email,
		Role:           models.RoleStudent,
		ApprovalStatus: models.ApprovalPending,
	}
	if s.adminEmail != "" && strings.ToLower(strings.TrimSpace(user.Email)) == s.adminEmail {
		profile.Role = models.RoleAdmin
		profile.ApprovalStatus = models.ApprovalApproved
	}
	stored, err := s.repo.Ensure(ctx, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile provisioned", zap.String("user_id", user.ID), zap.String("role", string(stored.Role)))
	return stored, nil
}

// GetByID returns one profile.
func (s *ProfileService) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// UpdateOwn applies self-service edits to the caller's profile. Role and
// approval status are never editable through this path.
func (s *ProfileService) UpdateOwn(ctx context.Context, userID string, req ProfileUpdateRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	profile, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.FullName = req.FullName
	profile.StudentID = req.StudentID
	profile.Bio = req.Bio

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	s.auditor.Record(&models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionProfileUpdate,
		Resource:   "profiles",
		ResourceID: &userID,
	})

	return profile, nil
}

// List returns profiles for the admin directory with pagination.
func (s *ProfileService) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	return profiles, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetApproval updates approval status (and optionally role) for an account.
// Admin accounts cannot be demoted through the approval workflow.
func (s *ProfileService) SetApproval(ctx context.Context, adminID, targetID string, req ApprovalRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}

	profile, err := s.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if profile.Role == models.RoleAdmin && targetID != adminID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin accounts cannot be moderated")
	}

	previous := profile.ApprovalStatus
	profile.ApprovalStatus = req.ApprovalStatus
	if req.Role != nil {
		profile.Role = *req.Role
	}

	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update approval status")
	}

	s.auditor.Record(&models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionApprovalChange,
		Resource:   "profiles",
		ResourceID: &targetID,
		OldValues:  []byte(`{"approval_status":"` + string(previous) + `"}`),
		NewValues:  []byte(`{"approval_status":"` + string(profile.ApprovalStatus) + `"}`),
	})

	return profile, nil
}

// StudentStats summarises student registrations for the admin dashboard.
func (s *ProfileService) StudentStats(ctx context.Context) (*models.StudentStats, error) {
	now := time.Now().UTC()

	total, err := s.repo.CountStudentsSince(ctx, time.Time{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	week, err := s.repo.CountStudentsSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weekly students")
	}
	month, err := s.repo.CountStudentsSince(ctx, now.AddDate(0, -1, 0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count monthly students")
	}

	role := models.RoleStudent
	recent, _, err := s.repo.List(ctx, models.ProfileFilter{
		Role:      &role,
		Page:      1,
		PageSize:  5,
		SortBy:    "created_at",
		SortOrder: "DESC",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent students")
	}

	return &models.StudentStats{
		TotalStudents:        total,
		NewStudentsThisWeek:  week,
		NewStudentsThisMonth: month,
		RecentStudents:       recent,
	}, nil
}
