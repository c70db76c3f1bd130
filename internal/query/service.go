package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stokenvault/internal/projection"
	"stokenvault/internal/vault"
)

// ErrNotFound is returned when a vault, request, or holder is unknown.
var ErrNotFound = errors.New("not found")

// VaultReader is the view surface an engine exposes to the query service.
type VaultReader interface {
	ID() string
	UnderlyingAsset() string
	Decimals() uint32
	Price() uint64
	IsPaused() bool
	WhitelistEnabled() bool
	IsWhitelisted(addr string) bool
	MinSharesToMint() uint64
	Balance(addr string) uint64
	AssetManager() string
	Accountant() string
	Ledger() (price, totalShares, totalIdle, withdrawalsPending, sharesInCustody uint64)
	Request(id uint64) (vault.WithdrawalRequest, bool)
	PendingPriceValue() (vault.PendingPrice, bool)
	EmergencyStatus() (vault.EmergencyRequest, bool)
}

// Service answers read queries. Vault state comes from the live engines;
// history comes from the Postgres projections. Responses carry
// as_of_sequence, the projection watermark, for freshness semantics.
type Service struct {
	vaults  map[string]VaultReader
	db      *sql.DB
	history *projection.PriceHistory
}

func NewService(db *sql.DB) *Service {
	return &Service{
		vaults:  make(map[string]VaultReader),
		db:      db,
		history: projection.NewPriceHistory(db),
	}
}

// RegisterVault exposes an engine through the query surface.
func (s *Service) RegisterVault(v VaultReader) {
	s.vaults[v.ID()] = v
}

// GetVault returns the full read-model of one vault.
func (s *Service) GetVault(ctx context.Context, vaultID string) (*VaultResponse, error) {
	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, ErrNotFound
	}

	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	price, totalShares, totalIdle, pending, custody := v.Ledger()
	resp := &VaultResponse{
		VaultID:            v.ID(),
		UnderlyingAsset:    v.UnderlyingAsset(),
		Decimals:           v.Decimals(),
		Price:              price,
		TotalShares:        totalShares,
		TotalIdle:          totalIdle,
		WithdrawalsPending: pending,
		SharesInCustody:    custody,
		Paused:             v.IsPaused(),
		WhitelistEnabled:   v.WhitelistEnabled(),
		MinSharesToMint:    v.MinSharesToMint(),
		AssetManager:       v.AssetManager(),
		Accountant:         v.Accountant(),
		AsOfSequence:       asOfSeq,
	}

	if pp, ok := v.PendingPriceValue(); ok {
		resp.PendingPrice = &pp
	}
	if em, ok := v.EmergencyStatus(); ok {
		resp.Emergency = &em
	}
	return resp, nil
}

// GetRequest returns one withdrawal request from the live engine.
func (s *Service) GetRequest(ctx context.Context, vaultID string, requestID uint64) (*RequestResponse, error) {
	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, ErrNotFound
	}
	req, ok := v.Request(requestID)
	if !ok {
		return nil, ErrNotFound
	}

	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}
	return &RequestResponse{VaultID: vaultID, Request: req, AsOfSequence: asOfSeq}, nil
}

// GetBalance returns a holder's share balance.
func (s *Service) GetBalance(ctx context.Context, vaultID, addr string) (*BalanceResponse, error) {
	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, ErrNotFound
	}

	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		VaultID:      vaultID,
		Address:      addr,
		Shares:       v.Balance(addr),
		Whitelisted:  v.IsWhitelisted(addr),
		AsOfSequence: asOfSeq,
	}, nil
}

// GetPriceHistory returns the newest projected price points for a vault.
func (s *Service) GetPriceHistory(ctx context.Context, vaultID string, limit int) (*PriceHistoryResponse, error) {
	if _, ok := s.vaults[vaultID]; !ok {
		return nil, ErrNotFound
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.history.Recent(ctx, vaultID, limit)
	if err != nil {
		return nil, err
	}
	return &PriceHistoryResponse{VaultID: vaultID, Points: points, AsOfSequence: asOfSeq}, nil
}

// GetEvents returns event log rows for a vault with cursor pagination.
func (s *Service) GetEvents(ctx context.Context, vaultID string, limit int, beforeSequence *int64) ([]EventResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT sequence, command_id, event_type, vault_id, payload, state_hash, timestamp
		FROM stoken.events
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventResponse
	for rows.Next() {
		var e EventResponse
		var ts int64
		if err := rows.Scan(
			&e.Sequence, &e.CommandID, &e.EventType, &e.VaultID,
			&e.Payload, &e.StateHash, &ts,
		); err != nil {
			return nil, err
		}
		e.Timestamp = uint64(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and basic
// conservation on each live vault ledger.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM stoken.events e1
		LEFT JOIN stoken.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e2.sequence IS NOT NULL AND e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, v := range s.vaults {
		_, totalShares, _, pending, custody := v.Ledger()
		if custody > totalShares {
			report.LedgerFaults = append(report.LedgerFaults, VaultLedgerFault{
				VaultID: id,
				Detail:  fmt.Sprintf("shares in custody %d exceed total shares %d", custody, totalShares),
			})
		}
		if custody == 0 && pending > 0 {
			report.LedgerFaults = append(report.LedgerFaults, VaultLedgerFault{
				VaultID: id,
				Detail:  fmt.Sprintf("withdrawals pending %d with no shares in custody", pending),
			})
		}
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.LedgerFaults) == 0
	return report, nil
}

// --- helpers ---

func (s *Service) watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM stoken.watermark WHERE worker_id = 'projections'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
