package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// DashboardRepository aggregates the headline counters shown on the landing page.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Summary computes all dashboard counters in one round trip.
func (r *DashboardRepository) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM books) AS total_books,
        (SELECT COUNT(*) FROM items) AS total_items,
        (SELECT COUNT(*) FROM items WHERE status = 'available') AS available_items,
        (SELECT COUNT(*) FROM items WHERE status = 'borrowed') AS borrowed_items,
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM transactions WHERE status IN ('ongoing', 'partially_returned')) AS ongoing_transactions,
        (SELECT COALESCE(SUM(total_fine), 0) FROM transactions WHERE status = 'has_problem_pending') AS outstanding_fines`

	var summary models.DashboardSummary
	if err := r.db.GetContext(ctx, &summary, query); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	summary.GeneratedAt = time.Now().UTC()
	return &summary, nil
}
