package event

// WithdrawalRequested records a new pending withdrawal request
type WithdrawalRequested struct {
	Meta
	User           string `json:"user"`
	RequestID      uint64 `json:"request_id"`
	SharesAfterFee uint64 `json:"shares_after_fee"`
	FeeShares      uint64 `json:"fee_shares"`
	AmountDue      uint64 `json:"amount_due"`
	MinAmountOut   uint64 `json:"min_amount_out"`
	Price          uint64 `json:"price"`
}

func (*WithdrawalRequested) EventType() Type { return TypeWithdrawalRequested }

// WithdrawalMinimumUpdated records a tightened payout floor
type WithdrawalMinimumUpdated struct {
	Meta
	User       string `json:"user"`
	RequestID  uint64 `json:"request_id"`
	OldMinimum uint64 `json:"old_minimum"`
	NewMinimum uint64 `json:"new_minimum"`
}

func (*WithdrawalMinimumUpdated) EventType() Type { return TypeWithdrawalMinimumUpdated }

// WithdrawalFulfilled records a completed payout
type WithdrawalFulfilled struct {
	Meta
	User         string `json:"user"`
	RequestID    uint64 `json:"request_id"`
	Processor    string `json:"processor"`
	AmountPaid   uint64 `json:"amount_paid"`
	SharesBurned uint64 `json:"shares_burned"`
}

func (*WithdrawalFulfilled) EventType() Type { return TypeWithdrawalFulfilled }

// WithdrawalCancelled records a cancellation and where the escrowed shares went
type WithdrawalCancelled struct {
	Meta
	Caller         string `json:"caller"`
	RequestID      uint64 `json:"request_id"`
	SharesReturned uint64 `json:"shares_returned"`
	FeeShares      uint64 `json:"fee_shares_to_accountant"`
	EarlyCancel    bool   `json:"early_cancel"`
	PenaltyShares  uint64 `json:"penalty_shares"`
}

func (*WithdrawalCancelled) EventType() Type { return TypeWithdrawalCancelled }
