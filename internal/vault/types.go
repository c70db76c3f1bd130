package vault

import "stokenvault/internal/fixedpoint"

// RequestStatus is the lifecycle state of a withdrawal request
type RequestStatus int32

const (
	StatusPending RequestStatus = iota + 1
	StatusFulfilled
	StatusCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusFulfilled:
		return "FULFILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// WithdrawalRequest is a single escrowed withdrawal. Shares holds the
// post-fee share count; FeeShares is tracked separately so custody always
// equals their sum while the request is pending. Requests are never deleted.
type WithdrawalRequest struct {
	ID             uint64        `json:"id"`
	User           string        `json:"user"`
	Shares         uint64        `json:"shares"`
	AmountDue      uint64        `json:"amount_due"`
	MinAmountOut   uint64        `json:"min_amount_out"`
	FeeShares      uint64        `json:"fee_shares"`
	PriceAtRequest uint64        `json:"price_at_request"`
	CreatedAt      uint64        `json:"created_at"`
	Status         RequestStatus `json:"status"`
	ProcessedAt    uint64        `json:"processed_at,omitempty"`
}

// PendingPrice is the single slot holding a deviation-exceeding price
// proposal awaiting approval. Each new proposal overwrites the slot.
type PendingPrice struct {
	Value      uint64 `json:"value"`
	ProposedAt uint64 `json:"proposed_at"`
}

// Roles holds the privileged addresses of the vault
type Roles struct {
	Authority    string `json:"authority"`
	Oracle       string `json:"oracle"`
	Manager      string `json:"manager"`
	Processor    string `json:"processor"`
	Accountant   string `json:"accountant"`
	AssetManager string `json:"asset_manager"`
}

// Limits holds the configurable caps; the NoLimit sentinel disables a check
type Limits struct {
	MaxTotalShares   uint64 `json:"max_total_shares"`
	MaxSharesPerUser uint64 `json:"max_shares_per_user"`
	MaxTotalIdle     uint64 `json:"max_total_idle"`
	MinSharesToMint  uint64 `json:"min_shares_to_mint"`
	MaxDeviationBps  uint32 `json:"max_deviation_bps"`
}

// Fees holds the active fee rates
type Fees struct {
	DepositBps           uint32 `json:"deposit_fee_bps"`
	WithdrawBps          uint32 `json:"withdraw_fee_bps"`
	ManagementBpsPerYear uint32 `json:"management_fee_bps_per_year"`
}

// Cooldowns holds every configurable wait interval
type Cooldowns struct {
	PriceUpdateSecs     uint64 `json:"price_update_secs"`
	PriceAcceptanceSecs uint64 `json:"price_acceptance_secs"`
	ConfigSecs          uint64 `json:"config_secs"`
	EmergencySecs       uint64 `json:"emergency_secs"`
	RoleChangeSecs      uint64 `json:"role_change_secs"`
	FeeChangeSecs       uint64 `json:"fee_change_secs"`
}

// Lifecycle holds the withdrawal lifecycle parameters
type Lifecycle struct {
	DownsideCapBps    uint32 `json:"downside_cap_bps"`
	WithdrawalTTLSecs uint64 `json:"withdrawal_ttl_secs"`
	EarlyCancelFeeBps uint32 `json:"early_cancel_fee_bps"`
	SystemPenaltyBps  uint32 `json:"system_penalty_bps"`
}

// EmergencyRequest pins the token and amount of an in-flight emergency
// withdrawal; TimelockEnd of zero means no request is pinned.
type EmergencyRequest struct {
	Token       string `json:"token,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	TimelockEnd uint64 `json:"timelock_end,omitempty"`
}

// RoleChanges is the diff proposed by a role-change proposal
type RoleChanges struct {
	Manager      *string `json:"manager,omitempty"`
	Processor    *string `json:"processor,omitempty"`
	Accountant   *string `json:"accountant,omitempty"`
	Oracle       *string `json:"oracle,omitempty"`
	AssetManager *string `json:"asset_manager,omitempty"`
}

// FeeChanges is the full fee set proposed by a fee-change proposal
type FeeChanges struct {
	DepositBps           uint32 `json:"deposit_fee_bps"`
	WithdrawBps          uint32 `json:"withdraw_fee_bps"`
	ManagementBpsPerYear uint32 `json:"management_fee_bps_per_year"`
}

// LimitChanges is the diff proposed by a limits proposal
type LimitChanges struct {
	MaxTotalShares   *uint64 `json:"max_total_shares,omitempty"`
	MaxSharesPerUser *uint64 `json:"max_shares_per_user,omitempty"`
	MaxTotalIdle     *uint64 `json:"max_total_idle,omitempty"`
	MaxDeviationBps  *uint32 `json:"max_deviation_bps,omitempty"`
	MinSharesToMint  *uint64 `json:"min_shares_to_mint,omitempty"`
}

// WhitelistChange is the proposed whitelist toggle
type WhitelistChange struct {
	Enabled bool `json:"enabled"`
}

// CooldownChanges is the diff proposed by a cooldowns proposal
type CooldownChanges struct {
	PriceUpdateSecs     *uint64 `json:"price_update_secs,omitempty"`
	PriceAcceptanceSecs *uint64 `json:"price_acceptance_secs,omitempty"`
	ConfigSecs          *uint64 `json:"config_secs,omitempty"`
	EmergencySecs       *uint64 `json:"emergency_secs,omitempty"`
	RoleChangeSecs      *uint64 `json:"role_change_secs,omitempty"`
	FeeChangeSecs       *uint64 `json:"fee_change_secs,omitempty"`
}

// State is the complete aggregate owned by one vault instance. Nothing in
// here is shared between vaults except through explicit peer calls.
type State struct {
	Price             uint64        `json:"price"`
	LastPriceUpdateTS uint64        `json:"last_price_update_ts"`
	Pending           *PendingPrice `json:"pending_price,omitempty"`

	TotalShares             uint64 `json:"total_shares"`
	TotalIdle               uint64 `json:"total_idle"`
	TotalWithdrawalsPending uint64 `json:"total_withdrawals_pending"`
	SharesInCustody         uint64 `json:"shares_in_custody"`

	CreatedAt        uint64 `json:"created_at"`
	LastMgmtFeeTS    uint64 `json:"last_mgmt_fee_ts"`
	NextWithdrawalID uint64 `json:"next_withdrawal_id"`

	Roles     Roles     `json:"roles"`
	Limits    Limits    `json:"limits"`
	Fees      Fees      `json:"fees"`
	Cooldowns Cooldowns `json:"cooldowns"`
	Lifecycle Lifecycle `json:"lifecycle"`

	WhitelistEnabled bool `json:"whitelist_enabled"`
	Paused           bool `json:"paused"`

	Emergency EmergencyRequest `json:"emergency"`

	Requests  map[uint64]*WithdrawalRequest `json:"requests"`
	Whitelist map[string]bool               `json:"whitelist"`
	Allowlist map[string]bool               `json:"allowlist"`

	PendingRoles     *PendingChange[RoleChanges]     `json:"pending_roles,omitempty"`
	PendingFees      *PendingChange[FeeChanges]      `json:"pending_fees,omitempty"`
	PendingLimits    *PendingChange[LimitChanges]    `json:"pending_limits,omitempty"`
	PendingWhitelist *PendingChange[WhitelistChange] `json:"pending_whitelist,omitempty"`
	PendingCooldowns *PendingChange[CooldownChanges] `json:"pending_cooldowns,omitempty"`
}

// Config carries the initialization parameters of a vault. Nil pointer
// fields take the documented defaults.
type Config struct {
	Authority    string
	Oracle       string
	Manager      string
	Processor    string
	Accountant   string
	AssetManager string

	DepositFeeBps        uint32
	WithdrawFeeBps       uint32
	ManagementBpsPerYear uint32

	InitialPrice     *uint64
	MaxTotalShares   *uint64
	MaxSharesPerUser *uint64
	MaxTotalIdle     *uint64
	MinSharesToMint  *uint64
	MaxDeviationBps  *uint32

	PriceUpdateCooldownSecs     *uint64
	PriceAcceptanceCooldownSecs *uint64
	ConfigCooldownSecs          *uint64
	EmergencyCooldownSecs       *uint64
	RoleChangeCooldownSecs      *uint64
	FeeChangeCooldownSecs       *uint64

	DownsideCapBps    *uint32
	WithdrawalTTLSecs *uint64
	EarlyCancelFeeBps *uint32
	SystemPenaltyBps  *uint32

	WhitelistEnabled bool
}

func orDefault64(v *uint64, def uint64) uint64 {
	if v != nil {
		return *v
	}
	return def
}

func orDefault32(v *uint32, def uint32) uint32 {
	if v != nil {
		return *v
	}
	return def
}

// newState builds the initial aggregate from a validated config.
func newState(cfg Config, now uint64) *State {
	return &State{
		Price:             orDefault64(cfg.InitialPrice, fixedpoint.PricePrecision),
		LastPriceUpdateTS: 0,
		CreatedAt:         now,
		LastMgmtFeeTS:     now,
		Roles: Roles{
			Authority:    cfg.Authority,
			Oracle:       cfg.Oracle,
			Manager:      cfg.Manager,
			Processor:    cfg.Processor,
			Accountant:   cfg.Accountant,
			AssetManager: cfg.AssetManager,
		},
		Limits: Limits{
			MaxTotalShares:   orDefault64(cfg.MaxTotalShares, fixedpoint.NoLimit),
			MaxSharesPerUser: orDefault64(cfg.MaxSharesPerUser, fixedpoint.NoLimit),
			MaxTotalIdle:     orDefault64(cfg.MaxTotalIdle, fixedpoint.NoLimit),
			MinSharesToMint:  orDefault64(cfg.MinSharesToMint, 0),
			MaxDeviationBps:  orDefault32(cfg.MaxDeviationBps, fixedpoint.DefaultMaxDeviationBps),
		},
		Fees: Fees{
			DepositBps:           cfg.DepositFeeBps,
			WithdrawBps:          cfg.WithdrawFeeBps,
			ManagementBpsPerYear: cfg.ManagementBpsPerYear,
		},
		Cooldowns: Cooldowns{
			PriceUpdateSecs:     orDefault64(cfg.PriceUpdateCooldownSecs, 300),
			PriceAcceptanceSecs: orDefault64(cfg.PriceAcceptanceCooldownSecs, 300),
			ConfigSecs:          orDefault64(cfg.ConfigCooldownSecs, 86_400),
			EmergencySecs:       orDefault64(cfg.EmergencyCooldownSecs, 86_400),
			RoleChangeSecs:      orDefault64(cfg.RoleChangeCooldownSecs, 172_800),
			FeeChangeSecs:       orDefault64(cfg.FeeChangeCooldownSecs, 86_400),
		},
		Lifecycle: Lifecycle{
			DownsideCapBps:    orDefault32(cfg.DownsideCapBps, fixedpoint.DefaultDownsideCapBps),
			WithdrawalTTLSecs: orDefault64(cfg.WithdrawalTTLSecs, fixedpoint.DefaultWithdrawalTTLSecs),
			EarlyCancelFeeBps: orDefault32(cfg.EarlyCancelFeeBps, fixedpoint.DefaultEarlyCancelFeeBps),
			SystemPenaltyBps:  orDefault32(cfg.SystemPenaltyBps, fixedpoint.DefaultSystemPenaltyBps),
		},
		WhitelistEnabled: cfg.WhitelistEnabled,
		Requests:         make(map[uint64]*WithdrawalRequest),
		Whitelist:        make(map[string]bool),
		Allowlist:        make(map[string]bool),
	}
}
