package query

import (
	"stokenvault/internal/projection"
	"stokenvault/internal/vault"
)

// VaultResponse is the full read-model of one vault. Live fields come from
// the engine; AsOfSequence reports the projection watermark so clients can
// reason about history freshness.
type VaultResponse struct {
	VaultID         string `json:"vault_id"`
	UnderlyingAsset string `json:"underlying_asset"`
	Decimals        uint32 `json:"decimals"`

	Price              uint64 `json:"price"`
	TotalShares        uint64 `json:"total_shares"`
	TotalIdle          uint64 `json:"total_idle"`
	WithdrawalsPending uint64 `json:"withdrawals_pending"`
	SharesInCustody    uint64 `json:"shares_in_custody"`

	Paused           bool   `json:"paused"`
	WhitelistEnabled bool   `json:"whitelist_enabled"`
	MinSharesToMint  uint64 `json:"min_shares_to_mint"`
	AssetManager     string `json:"asset_manager"`
	Accountant       string `json:"accountant"`

	PendingPrice *vault.PendingPrice     `json:"pending_price,omitempty"`
	Emergency    *vault.EmergencyRequest `json:"emergency,omitempty"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// RequestResponse is one withdrawal request as seen by the live engine.
type RequestResponse struct {
	VaultID      string                  `json:"vault_id"`
	Request      vault.WithdrawalRequest `json:"request"`
	AsOfSequence int64                   `json:"as_of_sequence"`
}

// BalanceResponse is a holder's share balance and whitelist standing.
type BalanceResponse struct {
	VaultID      string `json:"vault_id"`
	Address      string `json:"address"`
	Shares       uint64 `json:"shares"`
	Whitelisted  bool   `json:"whitelisted"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// PriceHistoryResponse wraps projected price points.
type PriceHistoryResponse struct {
	VaultID      string                  `json:"vault_id"`
	Points       []projection.PricePoint `json:"points"`
	AsOfSequence int64                   `json:"as_of_sequence"`
}

// EventResponse is one row of the event log for API consumers.
type EventResponse struct {
	Sequence  int64  `json:"sequence"`
	CommandID string `json:"command_id"`
	EventType string `json:"event_type"`
	VaultID   string `json:"vault_id"`
	Payload   []byte `json:"payload"`
	StateHash []byte `json:"state_hash"`
	Timestamp uint64 `json:"timestamp"`
}

// IntegrityReport is the result of an admin integrity check.
type IntegrityReport struct {
	IsHealthy       bool              `json:"is_healthy"`
	HashChainBreaks []int64           `json:"hash_chain_breaks,omitempty"`
	LedgerFaults    []VaultLedgerFault `json:"ledger_faults,omitempty"`
}

// VaultLedgerFault names a vault whose live ledger violates conservation.
type VaultLedgerFault struct {
	VaultID string `json:"vault_id"`
	Detail  string `json:"detail"`
}
