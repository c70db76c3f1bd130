package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KVStore is a Postgres-backed key-value table with per-entry expiry. The
// projection worker uses it to mirror withdrawal-request deadlines so
// operational tooling can watch cooldowns without replaying the log.
type KVStore struct {
	db *sql.DB
}

// KVEntry is one stored key with its expiry.
type KVEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

// Put upserts a key with a TTL measured from now.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := kv.db.ExecContext(ctx, `
		INSERT INTO stoken.kv (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3
	`, key, value, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Get returns the value for a live key. Expired keys read as absent even
// before the sweeper removes them.
func (kv *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := kv.db.QueryRowContext(ctx, `
		SELECT value FROM stoken.kv
		WHERE key = $1 AND expires_at > NOW()
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

// Delete removes a key.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	_, err := kv.db.ExecContext(ctx, `DELETE FROM stoken.kv WHERE key = $1`, key)
	return err
}

// ExtendTTL pushes out the expiry of every live key expiring before
// threshold to extendTo from now, and reports how many keys were extended.
// Used when a cooldown change lengthens outstanding deadlines.
func (kv *KVStore) ExtendTTL(ctx context.Context, threshold time.Time, extendTo time.Duration) (int64, error) {
	res, err := kv.db.ExecContext(ctx, `
		UPDATE stoken.kv
		SET expires_at = $1
		WHERE expires_at > NOW() AND expires_at < $2
	`, time.Now().Add(extendTo), threshold)
	if err != nil {
		return 0, fmt.Errorf("kv extend ttl: %w", err)
	}
	return res.RowsAffected()
}

// Sweep deletes expired keys and reports how many were removed. Intended to
// run on a timer.
func (kv *KVStore) Sweep(ctx context.Context) (int64, error) {
	res, err := kv.db.ExecContext(ctx, `DELETE FROM stoken.kv WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("kv sweep: %w", err)
	}
	return res.RowsAffected()
}
