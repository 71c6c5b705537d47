package models

import "time"

// SystemMetrics is a point-in-time view of the process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ImportedRows             uint64    `json:"imported_rows"`
	RejectedRows             uint64    `json:"rejected_rows"`
	AuditEntriesDropped      uint64    `json:"audit_entries_dropped"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
