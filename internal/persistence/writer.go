package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// execer lets batch writes run against either the pool or a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventLogWriter writes enveloped events to Postgres using multi-row INSERT.
// Inserts are idempotent on the log sequence, so a replayed batch after a
// crash is harmless.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in stoken.events.
type EventRow struct {
	Sequence  int64
	CommandID string
	EventType string
	VaultID   string
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp uint64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to stoken.events. Pass a
// transaction to make the batch atomic with other writes; pass nil to use
// the pool directly.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow, tx *sql.Tx) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO stoken.events
		(sequence, command_id, event_type, vault_id, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.CommandID, e.EventType, e.VaultID,
			e.Payload, e.StateHash, e.PrevHash, int64(e.Timestamp),
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	var exec execer = w.db
	if tx != nil {
		exec = tx
	}
	_, err := exec.ExecContext(ctx, query, args...)
	return err
}

// LatestSequence returns the highest persisted log sequence, or 0 for an
// empty log.
func (w *EventLogWriter) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM stoken.events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// LatestStateHash returns the state hash of the highest persisted event.
func (w *EventLogWriter) LatestStateHash(ctx context.Context) ([]byte, error) {
	var hash []byte
	err := w.db.QueryRowContext(ctx,
		`SELECT state_hash FROM stoken.events ORDER BY sequence DESC LIMIT 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest state hash: %w", err)
	}
	return hash, nil
}

// RecentCommandIDs returns the command ids behind the most recent events.
// The dispatcher warms its dedup cache with them after a restart.
func (w *EventLogWriter) RecentCommandIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT command_id FROM (
			SELECT command_id, MAX(sequence) AS seq
			FROM stoken.events GROUP BY command_id
		) recent ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent command ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarshalPayload JSON-encodes an event payload for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
