package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

const auditLogColumns = `id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at`

// AuditLogRepository persists the audit trail.
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new repository.
func NewAuditLogRepository(db *sqlx.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// CreateAuditLog stores an audit log entry.
func (r *AuditLogRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (` + auditLogColumns + `) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// List returns the newest entries first, optionally narrowed to one resource.
func (r *AuditLogRepository) List(ctx context.Context, resource string, page, pageSize int) ([]models.AuditLog, *models.Pagination, error) {
	where := ""
	args := []interface{}{}
	if resource != "" {
		where = ` WHERE resource = $1`
		args = append(args, resource)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_logs` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, nil, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT `+auditLogColumns+` FROM audit_logs`+where+` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	logs := []models.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list audit logs: %w", err)
	}

	return logs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
