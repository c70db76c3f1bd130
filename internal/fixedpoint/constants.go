package fixedpoint

import "math"

// Fixed-point and fee constants for the vault accounting engine.

const (
	// PricePrecision is the fixed-point scale for prices: a price of
	// PricePrecision means one share is worth exactly one unit of underlying.
	PricePrecision uint64 = 10_000_000

	// BpsPrecision is the basis-point scale (10,000 = 100%).
	BpsPrecision uint32 = 10_000

	// MaxFeeBps caps deposit/withdraw/swap-leg fees at 10%.
	MaxFeeBps uint32 = 1_000

	// MaxManagementFeeBpsPerYear caps the annual management fee at 5%.
	MaxManagementFeeBpsPerYear uint32 = 500

	// SecondsPerYear is used by the management fee accrual formula.
	SecondsPerYear uint64 = 365 * 24 * 60 * 60

	// MinCooldownSecs / MaxCooldownSecs bound every configurable cooldown.
	MinCooldownSecs uint64 = 1
	MaxCooldownSecs uint64 = SecondsPerYear

	// MinFeeThreshold is the floor applied when a nonzero fee rate rounds to
	// zero on a nonzero amount.
	MinFeeThreshold uint64 = 1

	// ManagerBypassDeviationBps is the largest deviation from the current
	// price for which the manager may accept a pending price before the
	// acceptance cooldown has elapsed.
	ManagerBypassDeviationBps uint32 = 2_000

	// MaxSwapFeeBps caps the cross-vault swap fee at 1%.
	MaxSwapFeeBps uint32 = 100

	// DefaultSwapFeeBps is 0.1%.
	DefaultSwapFeeBps uint32 = 10

	// Absolute ceilings for configurable limits.
	MaxAllowedTotalShares   uint64 = 10_000_000_000_000_000
	MaxAllowedSharesPerUser uint64 = 100_000_000_000_000
	MaxAllowedTotalIdle     uint64 = 100_000_000_000_000_000
	MaxAllowedMinShares     uint64 = 1_000_000_000_000_000

	// DefaultMaxDeviationBps is the 5% deviation gate applied when a vault
	// does not configure its own threshold.
	DefaultMaxDeviationBps uint32 = 500

	// Withdrawal-lifecycle defaults.
	DefaultDownsideCapBps    uint32 = 500
	DefaultWithdrawalTTLSecs uint64 = 86_400
	DefaultEarlyCancelFeeBps uint32 = 100
	DefaultSystemPenaltyBps  uint32 = 50
	MaxWithdrawalTTLSecs     uint64 = 7 * 24 * 60 * 60
)

// NoLimit is the sentinel for "no limit configured". Kept as the maximum
// representable value so limit checks can short-circuit without an extra
// optional type.
const NoLimit uint64 = math.MaxUint64
