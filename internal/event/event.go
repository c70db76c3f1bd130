package event

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeVaultInitialized
	TypeDeposit
	TypeDepositsProcessed
	TypeFundsReturned
	TypeWithdrawalRequested
	TypeWithdrawalMinimumUpdated
	TypeWithdrawalFulfilled
	TypeWithdrawalCancelled
	TypePriceUpdated
	TypePricePending
	TypePriceAccepted
	TypePriceRejected
	TypeManagementFeeAccrued
	TypeRolesChangePending
	TypeRolesUpdated
	TypeFeesChangePending
	TypeFeesUpdated
	TypeLimitsChangePending
	TypeLimitsUpdated
	TypeWhitelistChangePending
	TypeWhitelistToggled
	TypeUserWhitelisted
	TypeUserRemovedFromWhitelist
	TypeCooldownsChangePending
	TypeCooldownsUpdated
	TypeVaultPaused
	TypeVaultUnpaused
	TypeEmergencyWithdrawPending
	TypeEmergencyWithdrawExecuted
	TypeUnexpectedDepositsWithdrawn
	TypeAllowlistMintAccepted
	TypeAllowlistMintCancelled
	TypeAllowlistMinted
	TypeSwapExecuted
	TypeTotalSharesWritten
)

func (t Type) String() string {
	switch t {
	case TypeVaultInitialized:
		return "VaultInitialized"
	case TypeDeposit:
		return "Deposit"
	case TypeDepositsProcessed:
		return "DepositsProcessed"
	case TypeFundsReturned:
		return "FundsReturned"
	case TypeWithdrawalRequested:
		return "WithdrawalRequested"
	case TypeWithdrawalMinimumUpdated:
		return "WithdrawalMinimumUpdated"
	case TypeWithdrawalFulfilled:
		return "WithdrawalFulfilled"
	case TypeWithdrawalCancelled:
		return "WithdrawalCancelled"
	case TypePriceUpdated:
		return "PriceUpdated"
	case TypePricePending:
		return "PricePending"
	case TypePriceAccepted:
		return "PriceAccepted"
	case TypePriceRejected:
		return "PriceRejected"
	case TypeManagementFeeAccrued:
		return "ManagementFeeAccrued"
	case TypeRolesChangePending:
		return "RolesChangePending"
	case TypeRolesUpdated:
		return "RolesUpdated"
	case TypeFeesChangePending:
		return "FeesChangePending"
	case TypeFeesUpdated:
		return "FeesUpdated"
	case TypeLimitsChangePending:
		return "LimitsChangePending"
	case TypeLimitsUpdated:
		return "LimitsUpdated"
	case TypeWhitelistChangePending:
		return "WhitelistChangePending"
	case TypeWhitelistToggled:
		return "WhitelistToggled"
	case TypeUserWhitelisted:
		return "UserWhitelisted"
	case TypeUserRemovedFromWhitelist:
		return "UserRemovedFromWhitelist"
	case TypeCooldownsChangePending:
		return "CooldownsChangePending"
	case TypeCooldownsUpdated:
		return "CooldownsUpdated"
	case TypeVaultPaused:
		return "VaultPaused"
	case TypeVaultUnpaused:
		return "VaultUnpaused"
	case TypeEmergencyWithdrawPending:
		return "EmergencyWithdrawPending"
	case TypeEmergencyWithdrawExecuted:
		return "EmergencyWithdrawExecuted"
	case TypeUnexpectedDepositsWithdrawn:
		return "UnexpectedDepositsWithdrawn"
	case TypeAllowlistMintAccepted:
		return "AllowlistMintAccepted"
	case TypeAllowlistMintCancelled:
		return "AllowlistMintCancelled"
	case TypeAllowlistMinted:
		return "AllowlistMinted"
	case TypeSwapExecuted:
		return "SwapExecuted"
	case TypeTotalSharesWritten:
		return "TotalSharesWritten"
	default:
		return "Unknown"
	}
}

// Event is the interface all emitted payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() Type

	// Vault returns the id of the vault that emitted the event
	Vault() string

	// OccurredAt returns the engine timestamp (unix seconds)
	OccurredAt() uint64
}

// Meta carries the fields common to every event. Timestamps come from the
// engine's injected clock, never from the wall clock at publish time.
type Meta struct {
	VaultID   string `json:"vault_id"`
	Timestamp uint64 `json:"timestamp"`
}

func (m Meta) Vault() string { return m.VaultID }

func (m Meta) OccurredAt() uint64 { return m.Timestamp }

// Sink receives emitted events fire-and-forget; implementations must never
// block the engine and are never read back.
type Sink interface {
	Publish(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}
