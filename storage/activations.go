package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Activation is one recorded press of a bound key
type Activation struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Timestamp       time.Time `json:"timestamp"`
	Key             string    `json:"key"`
	Action          string    `json:"action"`
	RuleIndex       int       `json:"rule_index"`
	Outcome         string    `json:"outcome"`
	WindowTitle     *string   `json:"window_title"`
	WindowClass     *string   `json:"window_class"`
	WindowBinary    *string   `json:"window_binary"`
	ContextTimedOut bool      `json:"context_timed_out"`
	LatencyUs       int64     `json:"latency_us"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// SaveActivation saves an activation to the database. An empty
// SessionID is filled with the current session.
func (db *DB) SaveActivation(a *Activation) error {
	if a.SessionID == "" {
		a.SessionID = db.session
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	query := `
		INSERT INTO activations (
			session_id, ts_ms, key_name, action, rule_index, outcome,
			window_title, window_class, window_binary, context_timed_out,
			latency_us, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		a.SessionID, a.Timestamp.UnixMilli(), a.Key, a.Action, a.RuleIndex, a.Outcome,
		nullable(a.WindowTitle), nullable(a.WindowClass), nullable(a.WindowBinary), a.ContextTimedOut,
		a.LatencyUs, nullable(optional(a.ErrorMessage)),
	)
	if err != nil {
		return fmt.Errorf("failed to save activation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	a.ID = id
	return nil
}

// GetActivations retrieves activations with pagination, newest first
func (db *DB) GetActivations(limit, offset int) ([]Activation, error) {
	query := `
		SELECT
			id, session_id, ts_ms, key_name, action, rule_index, outcome,
			window_title, window_class, window_binary, context_timed_out,
			latency_us, error_message
		FROM activations
		ORDER BY ts_ms DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %w", err)
	}
	defer rows.Close()

	activations := []Activation{}
	for rows.Next() {
		var a Activation
		var tsMs int64
		var title, class, binary, errorMessage sql.NullString

		err := rows.Scan(
			&a.ID, &a.SessionID, &tsMs, &a.Key, &a.Action, &a.RuleIndex, &a.Outcome,
			&title, &class, &binary, &a.ContextTimedOut,
			&a.LatencyUs, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation: %w", err)
		}

		a.Timestamp = time.UnixMilli(tsMs)
		a.WindowTitle = fromNull(title)
		a.WindowClass = fromNull(class)
		a.WindowBinary = fromNull(binary)
		if errorMessage.Valid {
			a.ErrorMessage = errorMessage.String
		}

		activations = append(activations, a)
	}

	return activations, rows.Err()
}

// GetActivationCount returns the total number of activations
func (db *DB) GetActivationCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM activations").Scan(&count)
	return count, err
}

// Prune deletes activations older than the given age and returns how
// many were removed
func (db *DB) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	result, err := db.conn.Exec(`DELETE FROM activations WHERE ts_ms < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
