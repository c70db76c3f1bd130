package event

// RolesChangePending records a proposed role change; nil fields were not
// proposed and stay unchanged on acceptance
type RolesChangePending struct {
	Meta
	Manager         string  `json:"manager"`
	NewManager      *string `json:"new_manager,omitempty"`
	NewProcessor    *string `json:"new_processor,omitempty"`
	NewAccountant   *string `json:"new_accountant,omitempty"`
	NewOracle       *string `json:"new_oracle,omitempty"`
	NewAssetManager *string `json:"new_asset_manager,omitempty"`
	EffectiveAt     uint64  `json:"effective_at"`
}

func (*RolesChangePending) EventType() Type { return TypeRolesChangePending }

// RolesUpdated records an applied role change
type RolesUpdated struct {
	Meta
	OldManager      string `json:"old_manager"`
	NewManager      string `json:"new_manager"`
	OldProcessor    string `json:"old_processor"`
	NewProcessor    string `json:"new_processor"`
	OldAccountant   string `json:"old_accountant"`
	NewAccountant   string `json:"new_accountant"`
	OldOracle       string `json:"old_oracle"`
	NewOracle       string `json:"new_oracle"`
	OldAssetManager string `json:"old_asset_manager"`
	NewAssetManager string `json:"new_asset_manager"`
}

func (*RolesUpdated) EventType() Type { return TypeRolesUpdated }

// FeesChangePending records a proposed fee change
type FeesChangePending struct {
	Meta
	Manager          string `json:"manager"`
	NewDepositBps    uint32 `json:"new_deposit_fee_bps"`
	NewWithdrawBps   uint32 `json:"new_withdraw_fee_bps"`
	NewManagementBps uint32 `json:"new_management_fee_bps_per_year"`
	OldDepositBps    uint32 `json:"old_deposit_fee_bps"`
	OldWithdrawBps   uint32 `json:"old_withdraw_fee_bps"`
	OldManagementBps uint32 `json:"old_management_fee_bps_per_year"`
	EffectiveAt      uint64 `json:"effective_at"`
}

func (*FeesChangePending) EventType() Type { return TypeFeesChangePending }

// FeesUpdated records an applied fee change
type FeesUpdated struct {
	Meta
	OldDepositBps    uint32 `json:"old_deposit_fee_bps"`
	NewDepositBps    uint32 `json:"new_deposit_fee_bps"`
	OldWithdrawBps   uint32 `json:"old_withdraw_fee_bps"`
	NewWithdrawBps   uint32 `json:"new_withdraw_fee_bps"`
	OldManagementBps uint32 `json:"old_management_fee_bps_per_year"`
	NewManagementBps uint32 `json:"new_management_fee_bps_per_year"`
}

func (*FeesUpdated) EventType() Type { return TypeFeesUpdated }

// LimitsChangePending records a proposed limits change
type LimitsChangePending struct {
	Meta
	Manager            string  `json:"manager"`
	NewMaxTotalShares  *uint64 `json:"new_max_total_shares,omitempty"`
	NewMaxPerUser      *uint64 `json:"new_max_shares_per_user,omitempty"`
	NewMaxTotalIdle    *uint64 `json:"new_max_total_idle,omitempty"`
	NewMaxDeviationBps *uint32 `json:"new_max_deviation_bps,omitempty"`
	NewMinSharesToMint *uint64 `json:"new_min_shares_to_mint,omitempty"`
	EffectiveAt        uint64  `json:"effective_at"`
}

func (*LimitsChangePending) EventType() Type { return TypeLimitsChangePending }

// LimitsUpdated records an applied limits change
type LimitsUpdated struct {
	Meta
	MaxTotalShares   uint64 `json:"max_total_shares"`
	MaxSharesPerUser uint64 `json:"max_shares_per_user"`
	MaxTotalIdle     uint64 `json:"max_total_idle"`
	MaxDeviationBps  uint32 `json:"max_deviation_bps"`
	MinSharesToMint  uint64 `json:"min_shares_to_mint"`
}

func (*LimitsUpdated) EventType() Type { return TypeLimitsUpdated }

// WhitelistChangePending records a proposed whitelist toggle
type WhitelistChangePending struct {
	Meta
	Manager     string `json:"manager"`
	Enabled     bool   `json:"enabled"`
	EffectiveAt uint64 `json:"effective_at"`
}

func (*WhitelistChangePending) EventType() Type { return TypeWhitelistChangePending }

// WhitelistToggled records an applied whitelist toggle
type WhitelistToggled struct {
	Meta
	Manager string `json:"manager"`
	Enabled bool   `json:"enabled"`
}

func (*WhitelistToggled) EventType() Type { return TypeWhitelistToggled }

// UserWhitelisted records a user added to the whitelist
type UserWhitelisted struct {
	Meta
	Manager string `json:"manager"`
	User    string `json:"user"`
}

func (*UserWhitelisted) EventType() Type { return TypeUserWhitelisted }

// UserRemovedFromWhitelist records a user removed from the whitelist
type UserRemovedFromWhitelist struct {
	Meta
	Manager string `json:"manager"`
	User    string `json:"user"`
}

func (*UserRemovedFromWhitelist) EventType() Type { return TypeUserRemovedFromWhitelist }

// CooldownsChangePending records a proposed cooldown change; only the fields
// actually proposed appear in the payload
type CooldownsChangePending struct {
	Meta
	Manager                string  `json:"manager"`
	NewPriceUpdateSecs     *uint64 `json:"new_price_update_cooldown_secs,omitempty"`
	NewPriceAcceptanceSecs *uint64 `json:"new_price_acceptance_cooldown_secs,omitempty"`
	NewConfigSecs          *uint64 `json:"new_config_cooldown_secs,omitempty"`
	NewEmergencySecs       *uint64 `json:"new_emergency_withdrawal_cooldown_secs,omitempty"`
	NewRoleChangeSecs      *uint64 `json:"new_role_change_cooldown_secs,omitempty"`
	NewFeeChangeSecs       *uint64 `json:"new_fee_change_cooldown_secs,omitempty"`
	EffectiveAt            uint64  `json:"effective_at"`
}

func (*CooldownsChangePending) EventType() Type { return TypeCooldownsChangePending }

// CooldownsUpdated records the applied cooldown set
type CooldownsUpdated struct {
	Meta
	PriceUpdateSecs     uint64 `json:"price_update_cooldown_secs"`
	PriceAcceptanceSecs uint64 `json:"price_acceptance_cooldown_secs"`
	ConfigSecs          uint64 `json:"config_cooldown_secs"`
	EmergencySecs       uint64 `json:"emergency_withdrawal_cooldown_secs"`
	RoleChangeSecs      uint64 `json:"role_change_cooldown_secs"`
	FeeChangeSecs       uint64 `json:"fee_change_cooldown_secs"`
}

func (*CooldownsUpdated) EventType() Type { return TypeCooldownsUpdated }
