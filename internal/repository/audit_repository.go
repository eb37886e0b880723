package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs an AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit record.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, entry)
	return err
}

// List returns the most recent audit records, newest first.
func (r *AuditRepository) List(ctx context.Context, resource string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at
		FROM audit_logs`
	args := []interface{}{}
	if resource != "" {
		query += ` WHERE resource = $1`
		args = append(args, resource)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	entries := []models.AuditLog{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}
