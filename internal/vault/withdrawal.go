package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
)

// WithdrawRequest escrows the caller's shares under a new monotonic request
// id. The withdraw fee is taken in shares up front; the escrowed amount is
// the caller's full pre-fee share count, so custody always carries
// shares + fee shares for the request. Nothing is burned until fulfillment
// so the share price is unaffected while the request is pending.
func (e *Engine) WithdrawRequest(caller string, shares, minAmountOut uint64) (id uint64, err error) {
	defer func() { e.record("withdraw_request", err) }()

	if shares == 0 {
		return 0, CoreErrInvalidAmount
	}
	if authErr := e.auth.RequireAuth(caller); authErr != nil {
		return 0, CoreErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	userShares := e.shares.Balance(caller)
	if shares > userShares {
		return 0, CoreErrInsufficientShares
	}
	remaining := userShares - shares

	if s.Limits.MinSharesToMint > 0 {
		if shares < s.Limits.MinSharesToMint {
			return 0, CoreErrWithdrawalAmountTooLow
		}
		if remaining > 0 && remaining < s.Limits.MinSharesToMint {
			return 0, CoreErrMinimumSharesNotMet
		}
	}

	if s.Paused {
		return 0, CoreErrVaultPaused
	}
	if s.WhitelistEnabled && !s.Whitelist[caller] {
		return 0, CoreErrUserNotWhitelisted
	}

	sharesAfterFee, feeShares, feeErr := fixedpoint.ApplyFee(shares, s.Fees.WithdrawBps)
	if feeErr != nil {
		return 0, coreErrFromMath(feeErr)
	}

	amountDue, mathErr := fixedpoint.SharesToAmount(sharesAfterFee, s.Price, e.underlying.Decimals(), e.shares.Decimals())
	if mathErr != nil {
		return 0, coreErrFromMath(mathErr)
	}

	if minAmountOut > amountDue {
		return 0, CoreErrInvalidWithdrawalMinimum
	}
	if minAmountOut > 0 {
		// The caller's payout floor may be no tighter than the vault's own
		// downside protection, or normal price movement could make the
		// request unfulfillable.
		keepBps := fixedpoint.BpsPrecision - s.Lifecycle.DownsideCapBps
		maxAllowedMin, capErr := fixedpoint.ApplyBasisPoints(amountDue, keepBps)
		if capErr != nil {
			return 0, CoreErrMathOverflow
		}
		if minAmountOut > maxAllowedMin {
			return 0, CoreErrMinimumTooHigh
		}
	}

	now := e.clock()
	id = s.NextWithdrawalID

	if transferErr := e.shares.Transfer(caller, e.id, shares); transferErr != nil {
		return 0, CoreErrInsufficientShares
	}

	newPending, ok := add64(s.TotalWithdrawalsPending, amountDue)
	if !ok {
		return 0, CoreErrMathOverflow
	}
	newCustody, ok := add64(s.SharesInCustody, shares)
	if !ok {
		return 0, CoreErrMathOverflow
	}
	s.TotalWithdrawalsPending = newPending
	s.SharesInCustody = newCustody
	s.NextWithdrawalID = id + 1

	s.Requests[id] = &WithdrawalRequest{
		ID:             id,
		User:           caller,
		Shares:         sharesAfterFee,
		AmountDue:      amountDue,
		MinAmountOut:   minAmountOut,
		FeeShares:      feeShares,
		PriceAtRequest: s.Price,
		CreatedAt:      now,
		Status:         StatusPending,
	}

	e.emit(&event.WithdrawalRequested{
		Meta:           e.meta(now),
		User:           caller,
		RequestID:      id,
		SharesAfterFee: sharesAfterFee,
		FeeShares:      feeShares,
		AmountDue:      amountDue,
		MinAmountOut:   minAmountOut,
		Price:          s.Price,
	})
	e.observeLedger()
	return id, nil
}

// UpdateWithdrawalMinimum tightens a pending request's payout floor. The
// floor only ever moves down.
func (e *Engine) UpdateWithdrawalMinimum(caller string, requestID, newMinimum uint64) (err error) {
	defer func() { e.record("update_withdrawal_minimum", err) }()

	if authErr := e.auth.RequireAuth(caller); authErr != nil {
		return WithdrawalErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if s.Paused {
		return WithdrawalErrVaultPaused
	}
	req, ok := s.Requests[requestID]
	if !ok {
		return WithdrawalErrNotFound
	}
	if req.Status != StatusPending {
		return WithdrawalErrWrongStatus
	}
	if caller != req.User {
		return WithdrawalErrWrongUser
	}
	if newMinimum > req.MinAmountOut {
		return WithdrawalErrMinimumCannotIncrease
	}

	oldMinimum := req.MinAmountOut
	req.MinAmountOut = newMinimum

	now := e.clock()
	e.emit(&event.WithdrawalMinimumUpdated{
		Meta:       e.meta(now),
		User:       caller,
		RequestID:  requestID,
		OldMinimum: oldMinimum,
		NewMinimum: newMinimum,
	})
	return nil
}

// FulfillWithdrawal pays out a pending request (processor only). The payout
// is the stored minimum when the price fell below it, the originally
// computed amount when the price rose, and the marked-to-market value
// otherwise. Fee shares move to the accountant and the escrowed shares are
// burned, which is the first time total supply reflects the exit.
func (e *Engine) FulfillWithdrawal(user string, requestID uint64) (err error) {
	defer func() { e.record("fulfill_withdrawal", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Processor); authErr != nil {
		return WithdrawalErrUnauthorized
	}

	req, ok := s.Requests[requestID]
	if !ok {
		return WithdrawalErrNotFound
	}
	if req.Status != StatusPending {
		return WithdrawalErrWrongStatus
	}
	if user != req.User {
		return WithdrawalErrWrongUser
	}
	if s.Paused {
		return WithdrawalErrVaultPaused
	}

	vaultBalance := e.underlying.Balance(e.id)

	theoreticalOut, mathErr := fixedpoint.SharesToAmount(req.Shares, s.Price, e.underlying.Decimals(), e.shares.Decimals())
	if mathErr != nil {
		return WithdrawalErrMathOverflow
	}

	var amountToPay uint64
	switch {
	case theoreticalOut < req.MinAmountOut:
		amountToPay = req.MinAmountOut
	case s.Price > req.PriceAtRequest:
		amountToPay = req.AmountDue
	default:
		amountToPay = theoreticalOut
	}

	if amountToPay > vaultBalance {
		return WithdrawalErrInsufficientVaultFunds
	}
	if amountToPay > s.TotalIdle {
		return WithdrawalErrInsufficientIdle
	}

	// Every fallible step is checked before the request or any counter
	// mutates: a failed fulfillment leaves the request PENDING and the
	// ledger untouched.
	newPending, ok := sub64(s.TotalWithdrawalsPending, req.AmountDue)
	if !ok {
		return WithdrawalErrMathOverflow
	}
	custodyHeld := req.Shares + req.FeeShares
	newCustody, ok := sub64(s.SharesInCustody, custodyHeld)
	if !ok {
		return WithdrawalErrMathOverflow
	}
	newIdle, ok := sub64(s.TotalIdle, amountToPay)
	if !ok {
		return WithdrawalErrMathOverflow
	}
	newTotal := s.TotalShares
	if req.Shares > 0 {
		newTotal, ok = sub64(s.TotalShares, req.Shares)
		if !ok {
			return WithdrawalErrMathOverflow
		}
	}
	if custodyHeld > e.shares.Balance(e.id) {
		return WithdrawalErrInsufficientVaultFunds
	}

	if transferErr := e.underlying.Transfer(e.id, req.User, amountToPay); transferErr != nil {
		return WithdrawalErrInsufficientVaultFunds
	}
	if req.FeeShares > 0 {
		if transferErr := e.shares.Transfer(e.id, s.Roles.Accountant, req.FeeShares); transferErr != nil {
			return WithdrawalErrInsufficientVaultFunds
		}
	}
	if req.Shares > 0 {
		if burnErr := e.shares.Burn(e.id, req.Shares); burnErr != nil {
			return WithdrawalErrInsufficientVaultFunds
		}
	}

	now := e.clock()
	req.Status = StatusFulfilled
	req.ProcessedAt = now
	s.TotalWithdrawalsPending = newPending
	s.SharesInCustody = newCustody
	s.TotalIdle = newIdle
	s.TotalShares = newTotal

	e.emit(&event.WithdrawalFulfilled{
		Meta:         e.meta(now),
		User:         user,
		RequestID:    requestID,
		Processor:    s.Roles.Processor,
		AmountPaid:   amountToPay,
		SharesBurned: req.Shares,
	})
	e.observeLedger()
	return nil
}

// CancelWithdrawal returns escrowed shares. The request owner may cancel at
// any time: before the TTL the fee shares stay with the accountant, at or
// after it the user gets a full refund plus penalty shares minted for the
// delay. The processor may only cancel once the TTL has elapsed.
func (e *Engine) CancelWithdrawal(caller string, requestID uint64) (err error) {
	defer func() { e.record("cancel_withdrawal", err) }()

	if authErr := e.auth.RequireAuth(caller); authErr != nil {
		return WithdrawalErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if s.Paused {
		return WithdrawalErrVaultPaused
	}
	req, ok := s.Requests[requestID]
	if !ok {
		return WithdrawalErrNotFound
	}
	if req.Status != StatusPending {
		return WithdrawalErrWrongStatus
	}

	now := e.clock()
	ttlExpired := now >= req.CreatedAt+s.Lifecycle.WithdrawalTTLSecs

	if caller == s.Roles.Processor {
		if !ttlExpired {
			return WithdrawalErrTTLNotExpired
		}
	} else if caller != req.User {
		return WithdrawalErrWrongUser
	}

	var (
		sharesToUser    uint64
		feeToAccountant uint64
		penaltyShares   uint64
	)
	earlyCancel := !ttlExpired
	if earlyCancel {
		sharesToUser = req.Shares
		feeToAccountant = req.FeeShares
	} else {
		sharesToUser = req.Shares + req.FeeShares
		penalty, capErr := fixedpoint.ApplyBasisPoints(req.Shares, s.Lifecycle.SystemPenaltyBps)
		if capErr != nil {
			return WithdrawalErrMathOverflow
		}
		penaltyShares = penalty
	}
	if sharesToUser == 0 {
		return WithdrawalErrNotFound
	}

	// Same all-or-nothing ordering as fulfillment: check every fallible
	// step, then move shares, then flip the request and the counters.
	newPending, ok := sub64(s.TotalWithdrawalsPending, req.AmountDue)
	if !ok {
		return WithdrawalErrMathOverflow
	}
	newCustody, ok := sub64(s.SharesInCustody, req.Shares+req.FeeShares)
	if !ok {
		return WithdrawalErrMathOverflow
	}
	newTotal := s.TotalShares
	if penaltyShares > 0 {
		newTotal, ok = add64(s.TotalShares, penaltyShares)
		if !ok {
			return WithdrawalErrMathOverflow
		}
		if _, supplyOK := add64(e.shares.TotalSupply(), penaltyShares); !supplyOK {
			return WithdrawalErrMathOverflow
		}
	}
	if sharesToUser+feeToAccountant > e.shares.Balance(e.id) {
		return WithdrawalErrInsufficientVaultFunds
	}

	if transferErr := e.shares.Transfer(e.id, req.User, sharesToUser); transferErr != nil {
		return WithdrawalErrInsufficientVaultFunds
	}
	if penaltyShares > 0 {
		if mintErr := e.shares.Mint(req.User, penaltyShares); mintErr != nil {
			return WithdrawalErrMathOverflow
		}
	}
	if feeToAccountant > 0 {
		if transferErr := e.shares.Transfer(e.id, s.Roles.Accountant, feeToAccountant); transferErr != nil {
			return WithdrawalErrInsufficientVaultFunds
		}
	}

	req.Status = StatusCancelled
	req.ProcessedAt = now
	s.TotalWithdrawalsPending = newPending
	s.SharesInCustody = newCustody
	s.TotalShares = newTotal

	e.emit(&event.WithdrawalCancelled{
		Meta:           e.meta(now),
		Caller:         caller,
		RequestID:      requestID,
		SharesReturned: sharesToUser + penaltyShares,
		FeeShares:      feeToAccountant,
		EarlyCancel:    earlyCancel,
		PenaltyShares:  penaltyShares,
	})
	e.observeLedger()
	return nil
}
