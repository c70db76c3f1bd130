package persistence

import (
	"context"
	"database/sql"
	"time"
)

// PostgresCommandChecker is the durable tier of command deduplication. A
// command id that produced events is present in the event log, so a lookup
// there answers "was this command already applied".
// Implements ingestion.StoredCommandChecker.
type PostgresCommandChecker struct {
	db *sql.DB
}

func NewPostgresCommandChecker(db *sql.DB) *PostgresCommandChecker {
	return &PostgresCommandChecker{db: db}
}

// IsDuplicate checks whether any event row carries this command id. The
// lookup is bounded; on timeout the caller treats the command as new and
// relies on the log's ON CONFLICT guard.
func (pc *PostgresCommandChecker) IsDuplicate(command string, commandID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := pc.db.QueryRowContext(ctx, `
		SELECT 1 FROM stoken.events WHERE command_id = $1 LIMIT 1
	`, commandID).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
