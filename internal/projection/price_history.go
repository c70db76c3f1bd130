package projection

import (
	"context"
	"database/sql"
	"fmt"
)

// PricePoint is one row of the share price history projection.
type PricePoint struct {
	VaultID   string `json:"vault_id"`
	Sequence  int64  `json:"sequence"`
	Price     uint64 `json:"price"`
	Source    string `json:"source"` // "oracle" or "accepted"
	Timestamp uint64 `json:"timestamp"`
}

// PriceHistory reads the price history projection for the query surface.
type PriceHistory struct {
	db *sql.DB
}

func NewPriceHistory(db *sql.DB) *PriceHistory {
	return &PriceHistory{db: db}
}

// Recent returns the newest price points for a vault, newest first.
func (ph *PriceHistory) Recent(ctx context.Context, vaultID string, limit int) ([]PricePoint, error) {
	rows, err := ph.db.QueryContext(ctx, `
		SELECT vault_id, sequence, price, source, timestamp
		FROM stoken.price_history
		WHERE vault_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("price history query: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Range returns price points within [fromTS, toTS], oldest first.
func (ph *PriceHistory) Range(ctx context.Context, vaultID string, fromTS, toTS uint64) ([]PricePoint, error) {
	rows, err := ph.db.QueryContext(ctx, `
		SELECT vault_id, sequence, price, source, timestamp
		FROM stoken.price_history
		WHERE vault_id = $1 AND timestamp BETWEEN $2 AND $3
		ORDER BY sequence ASC
	`, vaultID, int64(fromTS), int64(toTS))
	if err != nil {
		return nil, fmt.Errorf("price history range query: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func scanPricePoints(rows *sql.Rows) ([]PricePoint, error) {
	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		var price, ts int64
		if err := rows.Scan(&p.VaultID, &p.Sequence, &price, &p.Source, &ts); err != nil {
			return nil, err
		}
		p.Price = uint64(price)
		p.Timestamp = uint64(ts)
		points = append(points, p)
	}
	return points, rows.Err()
}
