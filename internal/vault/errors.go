package vault

// Closed per-area error enumerations. Every entrypoint returns values from
// exactly one area so integrators can branch on the business-rule cause.

// CoreError covers initialization, deposits, balances and whitelist
// membership.
type CoreError int

const (
	CoreErrInvalidAmount CoreError = iota + 1
	CoreErrInvalidPrice
	CoreErrVaultPaused
	CoreErrUnauthorized
	CoreErrAlreadyInitialized
	CoreErrInitializationFailed
	CoreErrUserNotWhitelisted
	CoreErrUserAlreadyWhitelisted
	CoreErrWhitelistNotEnabled
	CoreErrInsufficientShares
	CoreErrInsufficientBalance
	CoreErrMinimumSharesNotMet
	CoreErrWithdrawalAmountTooLow
	CoreErrSlippageNotMet
	CoreErrMaxTotalIdleExceeded
	CoreErrMaxTotalSharesExceeded
	CoreErrMaxSharesPerUserExceeded
	CoreErrMathOverflow
	CoreErrZeroAmountCalculated
	CoreErrInvalidTimestamp
	CoreErrInvalidWithdrawalMinimum
	CoreErrMinimumTooHigh
)

func (e CoreError) Error() string {
	switch e {
	case CoreErrInvalidAmount:
		return "invalid amount"
	case CoreErrInvalidPrice:
		return "invalid price"
	case CoreErrVaultPaused:
		return "vault is paused"
	case CoreErrUnauthorized:
		return "unauthorized"
	case CoreErrAlreadyInitialized:
		return "vault already initialized"
	case CoreErrInitializationFailed:
		return "initialization failed"
	case CoreErrUserNotWhitelisted:
		return "user not whitelisted"
	case CoreErrUserAlreadyWhitelisted:
		return "user already whitelisted"
	case CoreErrWhitelistNotEnabled:
		return "whitelist not enabled"
	case CoreErrInsufficientShares:
		return "insufficient shares"
	case CoreErrInsufficientBalance:
		return "insufficient balance"
	case CoreErrMinimumSharesNotMet:
		return "minimum shares requirement not met"
	case CoreErrWithdrawalAmountTooLow:
		return "withdrawal amount below minimum"
	case CoreErrSlippageNotMet:
		return "slippage tolerance not met"
	case CoreErrMaxTotalIdleExceeded:
		return "max total idle exceeded"
	case CoreErrMaxTotalSharesExceeded:
		return "max total shares exceeded"
	case CoreErrMaxSharesPerUserExceeded:
		return "max shares per user exceeded"
	case CoreErrMathOverflow:
		return "math overflow"
	case CoreErrZeroAmountCalculated:
		return "calculated amount rounds to zero"
	case CoreErrInvalidTimestamp:
		return "invalid timestamp"
	case CoreErrInvalidWithdrawalMinimum:
		return "withdrawal minimum exceeds amount due"
	case CoreErrMinimumTooHigh:
		return "withdrawal minimum too high"
	default:
		return "unknown core error"
	}
}

// OracleError covers the price propose/accept/reject protocol.
type OracleError int

const (
	OracleErrInvalidPrice OracleError = iota + 1
	OracleErrUpdateTooFrequent
	OracleErrNoPendingPrice
	OracleErrCooldownNotExpired
	OracleErrUnauthorized
	OracleErrInvalidData
)

func (e OracleError) Error() string {
	switch e {
	case OracleErrInvalidPrice:
		return "invalid price"
	case OracleErrUpdateTooFrequent:
		return "price update too frequent"
	case OracleErrNoPendingPrice:
		return "no pending price"
	case OracleErrCooldownNotExpired:
		return "price acceptance cooldown not expired"
	case OracleErrUnauthorized:
		return "unauthorized"
	case OracleErrInvalidData:
		return "invalid oracle data"
	default:
		return "unknown oracle error"
	}
}

// WithdrawalError covers the withdrawal request state machine.
type WithdrawalError int

const (
	WithdrawalErrNotFound WithdrawalError = iota + 1
	WithdrawalErrWrongStatus
	WithdrawalErrWrongUser
	WithdrawalErrVaultPaused
	WithdrawalErrTTLNotExpired
	WithdrawalErrMinimumCannotIncrease
	WithdrawalErrMinimumTooHigh
	WithdrawalErrInvalidMinimum
	WithdrawalErrInsufficientVaultFunds
	WithdrawalErrInsufficientIdle
	WithdrawalErrMathOverflow
	WithdrawalErrUnauthorized
)

func (e WithdrawalError) Error() string {
	switch e {
	case WithdrawalErrNotFound:
		return "withdrawal request not found"
	case WithdrawalErrWrongStatus:
		return "withdrawal request not pending"
	case WithdrawalErrWrongUser:
		return "withdrawal request belongs to another user"
	case WithdrawalErrVaultPaused:
		return "vault is paused"
	case WithdrawalErrTTLNotExpired:
		return "withdrawal ttl not expired"
	case WithdrawalErrMinimumCannotIncrease:
		return "withdrawal minimum cannot increase"
	case WithdrawalErrMinimumTooHigh:
		return "withdrawal minimum too high"
	case WithdrawalErrInvalidMinimum:
		return "withdrawal minimum exceeds amount due"
	case WithdrawalErrInsufficientVaultFunds:
		return "insufficient vault funds"
	case WithdrawalErrInsufficientIdle:
		return "insufficient idle funds"
	case WithdrawalErrMathOverflow:
		return "math overflow"
	case WithdrawalErrUnauthorized:
		return "unauthorized"
	default:
		return "unknown withdrawal error"
	}
}

// GovernanceError covers the five propose/accept categories.
type GovernanceError int

const (
	GovErrUnauthorized GovernanceError = iota + 1
	GovErrTimelockActive
	GovErrNoPendingChange
	GovErrNoChanges
	GovErrInvalidRole
	GovErrInvalidFee
	GovErrInvalidLimit
	GovErrLimitExceedsMaximum
	GovErrInvalidCooldown
)

func (e GovernanceError) Error() string {
	switch e {
	case GovErrUnauthorized:
		return "unauthorized"
	case GovErrTimelockActive:
		return "change timelock active"
	case GovErrNoPendingChange:
		return "no pending change"
	case GovErrNoChanges:
		return "proposal changes nothing"
	case GovErrInvalidRole:
		return "invalid role"
	case GovErrInvalidFee:
		return "invalid fee"
	case GovErrInvalidLimit:
		return "invalid limit"
	case GovErrLimitExceedsMaximum:
		return "limit exceeds maximum"
	case GovErrInvalidCooldown:
		return "invalid cooldown duration"
	default:
		return "unknown governance error"
	}
}

// SwapError covers cross-vault swap settlement.
type SwapError int

const (
	SwapErrSameVault SwapError = iota + 1
	SwapErrInvalidAmount
	SwapErrInvalidFee
	SwapErrUnderlyingMismatch
	SwapErrAssetManagerMismatch
	SwapErrDecimalMismatch
	SwapErrVaultPaused
	SwapErrNotWhitelisted
	SwapErrSlippageNotMet
	SwapErrMinimumSharesNotMet
	SwapErrMathOverflow
	SwapErrPeerUnavailable
	SwapErrUnauthorized
)

func (e SwapError) Error() string {
	switch e {
	case SwapErrSameVault:
		return "cannot swap with the same vault"
	case SwapErrInvalidAmount:
		return "invalid amount"
	case SwapErrInvalidFee:
		return "invalid swap fee"
	case SwapErrUnderlyingMismatch:
		return "underlying asset mismatch"
	case SwapErrAssetManagerMismatch:
		return "asset manager mismatch"
	case SwapErrDecimalMismatch:
		return "token decimal mismatch"
	case SwapErrVaultPaused:
		return "vault is paused"
	case SwapErrNotWhitelisted:
		return "user not whitelisted"
	case SwapErrSlippageNotMet:
		return "slippage tolerance not met"
	case SwapErrMinimumSharesNotMet:
		return "minimum shares requirement not met"
	case SwapErrMathOverflow:
		return "math overflow"
	case SwapErrPeerUnavailable:
		return "peer vault unavailable"
	case SwapErrUnauthorized:
		return "unauthorized"
	default:
		return "unknown swap error"
	}
}

// EmergencyError covers pause/unpause and the emergency withdrawal timelock.
type EmergencyError int

const (
	EmergencyErrInvalidAmount EmergencyError = iota + 1
	EmergencyErrVaultPaused
	EmergencyErrVaultNotPaused
	EmergencyErrTimelockActive
	EmergencyErrRequestMismatch
	EmergencyErrInsufficientBalance
	EmergencyErrUnauthorized
)

func (e EmergencyError) Error() string {
	switch e {
	case EmergencyErrInvalidAmount:
		return "invalid amount"
	case EmergencyErrVaultPaused:
		return "vault already paused"
	case EmergencyErrVaultNotPaused:
		return "vault not paused"
	case EmergencyErrTimelockActive:
		return "emergency withdrawal timelock active"
	case EmergencyErrRequestMismatch:
		return "emergency withdrawal request mismatch"
	case EmergencyErrInsufficientBalance:
		return "insufficient balance"
	case EmergencyErrUnauthorized:
		return "unauthorized"
	default:
		return "unknown emergency error"
	}
}

// AllowlistError covers peer-vault mint approval and the mint_core surface.
type AllowlistError int

const (
	AllowlistErrNotInAllowlist AllowlistError = iota + 1
	AllowlistErrVaultPaused
	AllowlistErrAssetManagerMismatch
	AllowlistErrUnauthorized
	AllowlistErrPeerUnavailable
)

func (e AllowlistError) Error() string {
	switch e {
	case AllowlistErrNotInAllowlist:
		return "address not in mint allowlist"
	case AllowlistErrVaultPaused:
		return "vault is paused"
	case AllowlistErrAssetManagerMismatch:
		return "asset manager mismatch"
	case AllowlistErrUnauthorized:
		return "unauthorized"
	case AllowlistErrPeerUnavailable:
		return "peer vault unavailable"
	default:
		return "unknown allowlist error"
	}
}
