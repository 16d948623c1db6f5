// Package history records the commands sent to each thermostat and the
// state changes observed on it.
//
// History is an audit trail only. The bridge never restores controller
// state from it on restart.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-venstar/internal/thermostat"
)

// Page size bounds for list queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeFormat is fixed-width so lexical order in SQLite matches time order.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Command outcomes stored in thermostat_commands.status.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CommandRecord is one entry in the command log.
type CommandRecord struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Source     string         `json:"source"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StateRecord is one observed state change.
type StateRecord struct {
	ID         string           `json:"id"`
	DeviceID   string           `json:"device_id"`
	State      thermostat.State `json:"state"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// CommandFilter selects entries from the command log. Empty fields match all.
type CommandFilter struct {
	DeviceID string
	Command  string
	Status   string
	Limit    int // default 50, max 200
	Offset   int
}

// CommandList is a page of the command log, most recent first.
type CommandList struct {
	Commands []CommandRecord `json:"commands"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// Repository is the history store used by the bridge and the API.
type Repository interface {
	RecordCommand(ctx context.Context, rec *CommandRecord) error
	ListCommands(ctx context.Context, filter CommandFilter) (*CommandList, error)
	RecordState(ctx context.Context, rec *StateRecord) error
	ListStates(ctx context.Context, deviceID string, limit int) ([]StateRecord, error)
}

// SQLiteRepository stores history in the bridge database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordCommand inserts a command log entry, generating ID and CreatedAt
// when they are empty.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, rec *CommandRecord) error {
	if rec.ID == "" {
		rec.ID = "cmd-" + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	params := "{}"
	if len(rec.Parameters) > 0 {
		b, err := json.Marshal(rec.Parameters)
		if err != nil {
			return fmt.Errorf("marshalling command parameters: %w", err)
		}
		params = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO thermostat_commands (id, device_id, command, parameters, source, status, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.Command, params, rec.Source, rec.Status,
		nullableString(rec.Error), rec.DurationMS,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}
	return nil
}

// ListCommands returns command log entries matching filter, newest first.
func (r *SQLiteRepository) ListCommands(ctx context.Context, filter CommandFilter) (*CommandList, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	for _, c := range []struct{ column, value string }{
		{"device_id", filter.DeviceID},
		{"command", filter.Command},
		{"status", filter.Status},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM thermostat_commands " + where //nolint:gosec // WHERE built from fixed column names
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command records: %w", err)
	}

	query := "SELECT id, device_id, command, parameters, source, status, error, duration_ms, created_at FROM thermostat_commands " + //nolint:gosec // WHERE built from fixed column names
		where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close()

	commands := []CommandRecord{}
	for rows.Next() {
		var rec CommandRecord
		var params string
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Command, &params, &rec.Source,
			&rec.Status, &errText, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		if errText.Valid {
			rec.Error = errText.String
		}
		if params != "" && params != "{}" {
			var decoded map[string]any
			if json.Unmarshal([]byte(params), &decoded) == nil {
				rec.Parameters = decoded
			}
		}
		if rec.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing command timestamp %q: %w", createdAt, err)
		}
		commands = append(commands, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command records: %w", err)
	}

	return &CommandList{
		Commands: commands,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

// RecordState inserts a state change entry.
func (r *SQLiteRepository) RecordState(ctx context.Context, rec *StateRecord) error {
	if rec.ID == "" {
		rec.ID = "st-" + uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	b, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO thermostat_states (id, device_id, state, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, string(b), rec.RecordedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting state record: %w", err)
	}
	return nil
}

// ListStates returns the most recent state changes for deviceID, newest first.
func (r *SQLiteRepository) ListStates(ctx context.Context, deviceID string, limit int) ([]StateRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, state, recorded_at FROM thermostat_states
		 WHERE device_id = ? ORDER BY recorded_at DESC LIMIT ?`,
		deviceID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying state records: %w", err)
	}
	defer rows.Close()

	states := []StateRecord{}
	for rows.Next() {
		var rec StateRecord
		var stateJSON, recordedAt string
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &stateJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state record: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
			return nil, fmt.Errorf("decoding state record %s: %w", rec.ID, err)
		}
		if rec.RecordedAt, err = time.Parse(timeFormat, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing state timestamp %q: %w", recordedAt, err)
		}
		states = append(states, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state records: %w", err)
	}
	return states, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
