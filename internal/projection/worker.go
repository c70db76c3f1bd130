package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stokenvault/internal/event"
	"stokenvault/internal/ingestion"
	"stokenvault/internal/persistence"
)

// Worker updates projection tables from enveloped events. The projection
// channel is non-blocking with drop: if projections fall behind they can be
// rebuilt from the event log.
type Worker struct {
	db         *sql.DB
	kv         *persistence.KVStore
	inputChan  <-chan ingestion.Output
	requestTTL time.Duration
	lastSeq    int64
}

// DefaultRequestTTL is how long a withdrawal-request mirror entry stays
// visible in the KV table after its last update.
const DefaultRequestTTL = 14 * 24 * time.Hour

func NewWorker(db *sql.DB, kv *persistence.KVStore, inputChan <-chan ingestion.Output, requestTTL time.Duration) *Worker {
	if requestTTL <= 0 {
		requestTTL = DefaultRequestTTL
	}
	return &Worker{
		db:         db,
		kv:         kv,
		inputChan:  inputChan,
		requestTTL: requestTTL,
	}
}

// Run starts the projection loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.processOutput(ctx, out); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", out.Envelope.Sequence, err)
				// Continue; projections are eventually consistent
			}

			w.lastSeq = out.Envelope.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, out ingestion.Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	env := out.Envelope
	switch ev := out.Event.(type) {
	case *event.PriceUpdated:
		err = insertPricePoint(ctx, tx, env, ev.NewPrice, "oracle")
	case *event.PriceAccepted:
		err = insertPricePoint(ctx, tx, env, ev.NewPrice, "accepted")
	case *event.WithdrawalRequested:
		err = w.upsertRequest(ctx, tx, env, ev)
	case *event.WithdrawalMinimumUpdated:
		_, err = tx.ExecContext(ctx, `
			UPDATE stoken.withdrawal_requests
			SET min_amount_out = $1, last_sequence = $2
			WHERE vault_id = $3 AND request_id = $4
		`, int64(ev.NewMinimum), env.Sequence, env.VaultID, int64(ev.RequestID))
	case *event.WithdrawalFulfilled:
		err = w.closeRequest(ctx, tx, env, ev.RequestID, "fulfilled", ev.AmountPaid)
	case *event.WithdrawalCancelled:
		err = w.closeRequest(ctx, tx, env, ev.RequestID, "cancelled", 0)
	case *event.CooldownsUpdated:
		err = w.extendMirrorDeadlines(ctx)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stoken.watermark (worker_id, last_sequence, updated_at)
		VALUES ('projections', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func insertPricePoint(ctx context.Context, tx *sql.Tx, env ingestion.Envelope, price uint64, source string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stoken.price_history (vault_id, sequence, price, source, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO NOTHING
	`, env.VaultID, env.Sequence, int64(price), source, int64(env.Timestamp))
	if err != nil {
		return fmt.Errorf("price history insert: %w", err)
	}
	return nil
}

func (w *Worker) upsertRequest(ctx context.Context, tx *sql.Tx, env ingestion.Envelope, ev *event.WithdrawalRequested) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stoken.withdrawal_requests
			(vault_id, request_id, user_addr, shares, amount_due, min_amount_out,
			 price, status, requested_at, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9)
		ON CONFLICT (vault_id, request_id) DO UPDATE
			SET min_amount_out = $6, last_sequence = $9
	`, env.VaultID, int64(ev.RequestID), ev.User, int64(ev.SharesAfterFee),
		int64(ev.AmountDue), int64(ev.MinAmountOut), int64(ev.Price),
		int64(env.Timestamp), env.Sequence)
	if err != nil {
		return fmt.Errorf("withdrawal request upsert: %w", err)
	}

	if w.kv != nil {
		mirror, merr := json.Marshal(map[string]interface{}{
			"vault_id":   env.VaultID,
			"request_id": ev.RequestID,
			"user":       ev.User,
			"amount_due": ev.AmountDue,
		})
		if merr != nil {
			return merr
		}
		key := fmt.Sprintf("wr:%s:%d", env.VaultID, ev.RequestID)
		if err := w.kv.Put(ctx, key, mirror, w.requestTTL); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) closeRequest(ctx context.Context, tx *sql.Tx, env ingestion.Envelope, requestID uint64, status string, amountPaid uint64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE stoken.withdrawal_requests
		SET status = $1, amount_paid = $2, closed_at = $3, last_sequence = $4
		WHERE vault_id = $5 AND request_id = $6
	`, status, int64(amountPaid), int64(env.Timestamp), env.Sequence,
		env.VaultID, int64(requestID))
	if err != nil {
		return fmt.Errorf("withdrawal request close: %w", err)
	}

	if w.kv != nil {
		key := fmt.Sprintf("wr:%s:%d", env.VaultID, requestID)
		if err := w.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// extendMirrorDeadlines keeps mirror entries alive across a cooldown change.
// Requests already close to expiry get a fresh TTL so operators keep seeing
// them until the engine settles their new deadlines.
func (w *Worker) extendMirrorDeadlines(ctx context.Context) error {
	if w.kv == nil {
		return nil
	}
	extended, err := w.kv.ExtendTTL(ctx, time.Now().Add(w.requestTTL), w.requestTTL)
	if err != nil {
		return err
	}
	if extended > 0 {
		log.Printf("INFO: extended %d withdrawal mirror deadlines after cooldown change", extended)
	}
	return nil
}

// LastSequence returns the highest sequence this worker has processed.
func (w *Worker) LastSequence() int64 { return w.lastSeq }

// RebuildProjections truncates and rebuilds all projection tables from the
// event log.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE stoken.price_history`,
		`TRUNCATE stoken.withdrawal_requests`,
		`DELETE FROM stoken.watermark WHERE worker_id = 'projections'`,
	}
	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO stoken.price_history (vault_id, sequence, price, source, timestamp)
		SELECT vault_id, sequence, (payload->>'new_price')::BIGINT,
		       CASE event_type WHEN 'PriceUpdated' THEN 'oracle' ELSE 'accepted' END,
		       timestamp
		FROM stoken.events
		WHERE event_type IN ('PriceUpdated', 'PriceAccepted')
	`)
	if err != nil {
		return fmt.Errorf("rebuild price history: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO stoken.withdrawal_requests
			(vault_id, request_id, user_addr, shares, amount_due, min_amount_out,
			 price, status, requested_at, last_sequence)
		SELECT vault_id, (payload->>'request_id')::BIGINT, payload->>'user',
		       (payload->>'shares_after_fee')::BIGINT, (payload->>'amount_due')::BIGINT,
		       (payload->>'min_amount_out')::BIGINT, (payload->>'price')::BIGINT,
		       'pending', timestamp, sequence
		FROM stoken.events
		WHERE event_type = 'WithdrawalRequested'
	`)
	if err != nil {
		return fmt.Errorf("rebuild withdrawal requests: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE stoken.withdrawal_requests wr
		SET status = CASE e.event_type
				WHEN 'WithdrawalFulfilled' THEN 'fulfilled'
				ELSE 'cancelled'
			END,
		    amount_paid = COALESCE((e.payload->>'amount_paid')::BIGINT, 0),
		    closed_at = e.timestamp,
		    last_sequence = e.sequence
		FROM stoken.events e
		WHERE e.event_type IN ('WithdrawalFulfilled', 'WithdrawalCancelled')
		  AND e.vault_id = wr.vault_id
		  AND (e.payload->>'request_id')::BIGINT = wr.request_id
	`)
	if err != nil {
		return fmt.Errorf("rebuild request closures: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
