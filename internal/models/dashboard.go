package models

import "time"

// DashboardSummary aggregates headline library counters for the landing dashboard.
type DashboardSummary struct {
	TotalBooks          int       `db:"total_books" json:"total_books"`
	TotalItems          int       `db:"total_items" json:"total_items"`
	AvailableItems      int       `db:"available_items" json:"available_items"`
	BorrowedItems       int       `db:"borrowed_items" json:"borrowed_items"`
	TotalStudents       int       `db:"total_students" json:"total_students"`
	OngoingTransactions int       `db:"ongoing_transactions" json:"ongoing_transactions"`
	OutstandingFines    int64     `db:"outstanding_fines" json:"outstanding_fines"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// SystemMetrics is a lightweight runtime snapshot exposed to administrators.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
