package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
	"stokenvault/internal/token"
)

func add64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

func sub64(a, b uint64) (uint64, bool) {
	return a - b, a >= b
}

func coreErrFromMath(err error) CoreError {
	switch err {
	case fixedpoint.ErrInvalidPrice:
		return CoreErrInvalidPrice
	case fixedpoint.ErrInvalidAmount:
		return CoreErrInvalidAmount
	case fixedpoint.ErrZeroAmountCalculated:
		return CoreErrZeroAmountCalculated
	default:
		return CoreErrMathOverflow
	}
}

// Deposit converts an underlying amount to shares at the current price,
// applies the deposit fee and mints to beneficiary (caller when empty).
// minShares of nil accepts any mint amount.
func (e *Engine) Deposit(caller string, amount uint64, minShares *uint64, beneficiary string) (err error) {
	defer func() { e.record("deposit", err) }()

	if amount == 0 {
		return CoreErrInvalidAmount
	}
	if authErr := e.auth.RequireAuth(caller); authErr != nil {
		return CoreErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if s.Paused {
		return CoreErrVaultPaused
	}
	if s.WhitelistEnabled && !s.Whitelist[caller] {
		return CoreErrUserNotWhitelisted
	}
	if beneficiary == "" {
		beneficiary = caller
	}

	if s.Limits.MaxTotalIdle != fixedpoint.NoLimit {
		newIdle, ok := add64(s.TotalIdle, amount)
		if !ok {
			return CoreErrMathOverflow
		}
		if newIdle > s.Limits.MaxTotalIdle {
			return CoreErrMaxTotalIdleExceeded
		}
	}

	mintedShares, mathErr := fixedpoint.AmountToShares(amount, s.Price, e.underlying.Decimals(), e.shares.Decimals())
	if mathErr != nil {
		return coreErrFromMath(mathErr)
	}

	userShares, feeShares, feeErr := fixedpoint.ApplyFee(mintedShares, s.Fees.DepositBps)
	if feeErr != nil {
		return coreErrFromMath(feeErr)
	}
	totalNewShares := userShares + feeShares

	if s.Limits.MaxTotalShares != fixedpoint.NoLimit {
		newTotal, ok := add64(s.TotalShares, totalNewShares)
		if !ok {
			return CoreErrMathOverflow
		}
		if newTotal > s.Limits.MaxTotalShares {
			return CoreErrMaxTotalSharesExceeded
		}
	}

	recipientShares := e.shares.Balance(beneficiary)
	if s.Limits.MaxSharesPerUser != fixedpoint.NoLimit {
		newUserTotal, ok := add64(recipientShares, userShares)
		if !ok {
			return CoreErrMathOverflow
		}
		if newUserTotal > s.Limits.MaxSharesPerUser {
			return CoreErrMaxSharesPerUserExceeded
		}
	}

	if s.Limits.MinSharesToMint > 0 {
		finalShares, ok := add64(recipientShares, userShares)
		if !ok {
			return CoreErrMathOverflow
		}
		if finalShares > 0 && finalShares < s.Limits.MinSharesToMint {
			return CoreErrMinimumSharesNotMet
		}
	}

	if minShares != nil && userShares < *minShares {
		return CoreErrSlippageNotMet
	}

	if transferErr := e.underlying.Transfer(caller, e.id, amount); transferErr != nil {
		return CoreErrInsufficientBalance
	}

	newIdle, ok := add64(s.TotalIdle, amount)
	if !ok {
		return CoreErrMathOverflow
	}
	newTotal, ok := add64(s.TotalShares, totalNewShares)
	if !ok {
		return CoreErrMathOverflow
	}
	s.TotalIdle = newIdle
	s.TotalShares = newTotal

	if userShares > 0 {
		if mintErr := e.shares.Mint(beneficiary, userShares); mintErr != nil {
			return CoreErrMathOverflow
		}
	}
	if feeShares > 0 {
		if mintErr := e.shares.Mint(s.Roles.Accountant, feeShares); mintErr != nil {
			return CoreErrMathOverflow
		}
	}

	now := e.clock()
	e.emit(&event.Deposit{
		Meta:        e.meta(now),
		Caller:      caller,
		Beneficiary: beneficiary,
		Amount:      amount,
		UserShares:  userShares,
		FeeShares:   feeShares,
		Price:       s.Price,
	})
	e.observeLedger()
	return nil
}

// ProcessDeposits moves idle funds to the asset manager (processor only).
func (e *Engine) ProcessDeposits(amount uint64) (err error) {
	defer func() { e.record("process_deposits", err) }()

	if amount == 0 {
		return CoreErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Processor); authErr != nil {
		return CoreErrUnauthorized
	}
	if amount > s.TotalIdle {
		return CoreErrInsufficientBalance
	}

	idleBefore := s.TotalIdle
	if transferErr := e.underlying.Transfer(e.id, s.Roles.AssetManager, amount); transferErr != nil {
		return CoreErrInsufficientBalance
	}
	s.TotalIdle = idleBefore - amount

	now := e.clock()
	e.emit(&event.DepositsProcessed{
		Meta:         e.meta(now),
		Processor:    s.Roles.Processor,
		AssetManager: s.Roles.AssetManager,
		Amount:       amount,
		IdleBefore:   idleBefore,
		IdleAfter:    s.TotalIdle,
	})
	e.observeLedger()
	return nil
}

// ReturnFunds moves funds back from the asset manager. The max idle limit
// does not apply here: returns must always be possible.
func (e *Engine) ReturnFunds(amount uint64) (err error) {
	defer func() { e.record("return_funds", err) }()

	if amount == 0 {
		return CoreErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.AssetManager); authErr != nil {
		return CoreErrUnauthorized
	}
	if transferErr := e.underlying.Transfer(s.Roles.AssetManager, e.id, amount); transferErr != nil {
		return CoreErrInsufficientBalance
	}

	newIdle, ok := add64(s.TotalIdle, amount)
	if !ok {
		return CoreErrMathOverflow
	}
	s.TotalIdle = newIdle

	now := e.clock()
	e.emit(&event.FundsReturned{
		Meta:         e.meta(now),
		AssetManager: s.Roles.AssetManager,
		Amount:       amount,
	})
	e.observeLedger()
	return nil
}

// AccrueManagementFee mints the accrued management fee to the accountant.
// Callable by anyone; a zero accrual still advances the fee timestamp.
func (e *Engine) AccrueManagementFee() (err error) {
	defer func() { e.record("accrue_management_fee", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	now := e.clock()
	if now < s.LastMgmtFeeTS {
		return CoreErrInvalidTimestamp
	}
	elapsed := now - s.LastMgmtFeeTS
	if elapsed == 0 {
		return nil
	}

	feeShares, mathErr := fixedpoint.ManagementFee(e.shares.TotalSupply(), s.Fees.ManagementBpsPerYear, elapsed)
	if mathErr != nil {
		return coreErrFromMath(mathErr)
	}

	if feeShares == 0 {
		s.LastMgmtFeeTS = now
		return nil
	}

	if mintErr := e.shares.Mint(s.Roles.Accountant, feeShares); mintErr != nil {
		return CoreErrMathOverflow
	}
	newTotal, ok := add64(s.TotalShares, feeShares)
	if !ok {
		return CoreErrMathOverflow
	}
	s.TotalShares = newTotal
	s.LastMgmtFeeTS = now

	e.emit(&event.ManagementFeeAccrued{
		Meta:        e.meta(now),
		Accountant:  s.Roles.Accountant,
		FeeShares:   feeShares,
		ElapsedSecs: elapsed,
	})
	e.observeLedger()
	return nil
}

// WithdrawUnexpectedDeposits sweeps token balances the counters do not
// account for to the manager. For the underlying asset that is anything
// above total idle, for the share token anything above custody, and for any
// other token the full balance.
func (e *Engine) WithdrawUnexpectedDeposits(tok token.Token, amount uint64) (err error) {
	defer func() { e.record("withdraw_unexpected_deposits", err) }()

	if amount == 0 {
		return CoreErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return CoreErrUnauthorized
	}

	var available uint64
	switch tok.Symbol() {
	case e.underlying.Symbol():
		balance := e.underlying.Balance(e.id)
		if balance > s.TotalIdle {
			available = balance - s.TotalIdle
		}
	case e.shares.Symbol():
		balance := e.shares.Balance(e.id)
		if balance > s.SharesInCustody {
			available = balance - s.SharesInCustody
		}
	default:
		available = tok.Balance(e.id)
	}

	if available < amount {
		return CoreErrInsufficientBalance
	}
	if transferErr := tok.Transfer(e.id, s.Roles.Manager, amount); transferErr != nil {
		return CoreErrInsufficientBalance
	}

	now := e.clock()
	e.emit(&event.UnexpectedDepositsWithdrawn{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		Token:   tok.Symbol(),
		Amount:  amount,
	})
	return nil
}
