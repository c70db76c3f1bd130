package event

// VaultInitialized is emitted once when a vault's state is first created
type VaultInitialized struct {
	Meta
	UnderlyingAsset string `json:"underlying_asset"`
	Oracle          string `json:"oracle"`
	Manager         string `json:"manager"`
	Processor       string `json:"processor"`
	Accountant      string `json:"accountant"`
	AssetManager    string `json:"asset_manager"`
	DepositFeeBps   uint32 `json:"deposit_fee_bps"`
	WithdrawFeeBps  uint32 `json:"withdraw_fee_bps"`
	ManagementBps   uint32 `json:"management_fee_bps_per_year"`
}

func (*VaultInitialized) EventType() Type { return TypeVaultInitialized }

// Deposit records an underlying deposit and the shares minted for it
type Deposit struct {
	Meta
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
	Amount      uint64 `json:"amount"`
	UserShares  uint64 `json:"user_shares"`
	FeeShares   uint64 `json:"fee_shares"`
	Price       uint64 `json:"price"`
}

func (*Deposit) EventType() Type { return TypeDeposit }

// DepositsProcessed records idle funds moved to the asset manager
type DepositsProcessed struct {
	Meta
	Processor    string `json:"processor"`
	AssetManager string `json:"asset_manager"`
	Amount       uint64 `json:"amount"`
	IdleBefore   uint64 `json:"idle_before"`
	IdleAfter    uint64 `json:"idle_after"`
}

func (*DepositsProcessed) EventType() Type { return TypeDepositsProcessed }

// FundsReturned records funds returned by the asset manager
type FundsReturned struct {
	Meta
	AssetManager string `json:"asset_manager"`
	Amount       uint64 `json:"amount"`
}

func (*FundsReturned) EventType() Type { return TypeFundsReturned }

// ManagementFeeAccrued records fee shares minted to the accountant
type ManagementFeeAccrued struct {
	Meta
	Accountant  string `json:"accountant"`
	FeeShares   uint64 `json:"fee_shares"`
	ElapsedSecs uint64 `json:"elapsed_secs"`
}

func (*ManagementFeeAccrued) EventType() Type { return TypeManagementFeeAccrued }

// UnexpectedDepositsWithdrawn records a manager sweep of untracked balances
type UnexpectedDepositsWithdrawn struct {
	Meta
	Manager string `json:"manager"`
	Token   string `json:"token"`
	Amount  uint64 `json:"amount"`
}

func (*UnexpectedDepositsWithdrawn) EventType() Type { return TypeUnexpectedDepositsWithdrawn }
