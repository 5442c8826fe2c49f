package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Emitted    int    `json:"emitted"`
	Suppressed int    `json:"suppressed"`
	Blocked    int    `json:"blocked"`
	Forwarded  int    `json:"forwarded"`
	Diverted   int    `json:"diverted"`
}

// KeyStats represents statistics grouped by key
type KeyStats struct {
	Key          string  `json:"key"`
	Total        int     `json:"total"`
	Emitted      int     `json:"emitted"`
	Suppressed   int     `json:"suppressed"`
	Blocked      int     `json:"blocked"`
	Forwarded    int     `json:"forwarded"`
	Diverted     int     `json:"diverted"`
	AvgLatencyUs float64 `json:"avg_latency_us"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	Total           int     `json:"total"`
	Emitted         int     `json:"emitted"`
	Suppressed      int     `json:"suppressed"`
	Blocked         int     `json:"blocked"`
	Forwarded       int     `json:"forwarded"`
	Diverted        int     `json:"diverted"`
	Failures        int     `json:"failures"`
	ContextTimeouts int     `json:"context_timeouts"`
	Sessions        int     `json:"sessions"`
	AvgLatencyUs    float64 `json:"avg_latency_us"`
	MaxLatencyUs    int64   `json:"max_latency_us"`
}

// since returns the cutoff in unix milliseconds for the last N days.
// Zero or negative days means all time.
func since(days int) int64 {
	if days <= 0 {
		return 0
	}
	return time.Now().AddDate(0, 0, -days).UnixMilli()
}

const outcomeCounts = `
	COUNT(*) as total,
	COALESCE(SUM(CASE WHEN outcome = 'emitted' THEN 1 ELSE 0 END), 0) as emitted,
	COALESCE(SUM(CASE WHEN outcome = 'suppressed' THEN 1 ELSE 0 END), 0) as suppressed,
	COALESCE(SUM(CASE WHEN outcome = 'blocked' THEN 1 ELSE 0 END), 0) as blocked,
	COALESCE(SUM(CASE WHEN outcome = 'forwarded' THEN 1 ELSE 0 END), 0) as forwarded,
	COALESCE(SUM(CASE WHEN outcome = 'diverted' THEN 1 ELSE 0 END), 0) as diverted`

// GetDailyStats retrieves statistics grouped by local date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(ts_ms / 1000, 'unixepoch', 'localtime') as date,` + outcomeCounts + `
		FROM activations
		WHERE ts_ms >= ?
		GROUP BY date
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := []DailyStats{}
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.Total, &s.Emitted, &s.Suppressed, &s.Blocked, &s.Forwarded, &s.Diverted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetKeyStats retrieves statistics grouped by key for the last N days
func (db *DB) GetKeyStats(days int) ([]KeyStats, error) {
	query := `
		SELECT
			key_name,` + outcomeCounts + `,
			AVG(latency_us) as avg_latency_us
		FROM activations
		WHERE ts_ms >= ?
		GROUP BY key_name
		ORDER BY total DESC, key_name
	`

	rows, err := db.conn.Query(query, since(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query key stats: %w", err)
	}
	defer rows.Close()

	stats := []KeyStats{}
	for rows.Next() {
		var s KeyStats
		err := rows.Scan(&s.Key, &s.Total, &s.Emitted, &s.Suppressed, &s.Blocked, &s.Forwarded, &s.Diverted, &s.AvgLatencyUs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	return db.overall(since(days), time.Now().Add(time.Minute).UnixMilli())
}

// GetStatsForDateRange retrieves overall stats for a custom date range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	return db.overall(startTime.UnixMilli(), endTime.UnixMilli())
}

func (db *DB) overall(fromMs, toMs int64) (*OverallStats, error) {
	query := `
		SELECT` + outcomeCounts + `,
			COALESCE(SUM(CASE WHEN error_message IS NOT NULL THEN 1 ELSE 0 END), 0) as failures,
			COALESCE(SUM(CASE WHEN context_timed_out THEN 1 ELSE 0 END), 0) as context_timeouts,
			COUNT(DISTINCT session_id) as sessions,
			COALESCE(AVG(latency_us), 0) as avg_latency_us,
			COALESCE(MAX(latency_us), 0) as max_latency_us
		FROM activations
		WHERE ts_ms >= ? AND ts_ms <= ?
	`

	var stats OverallStats
	err := db.conn.QueryRow(query, fromMs, toMs).Scan(
		&stats.Total,
		&stats.Emitted,
		&stats.Suppressed,
		&stats.Blocked,
		&stats.Forwarded,
		&stats.Diverted,
		&stats.Failures,
		&stats.ContextTimeouts,
		&stats.Sessions,
		&stats.AvgLatencyUs,
		&stats.MaxLatencyUs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	return &stats, nil
}
