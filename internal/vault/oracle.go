package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
)

// UpdatePrice applies an oracle price immediately when it stays within the
// deviation gate, otherwise parks it in the single pending slot. Each
// deviation-exceeding call overwrites the slot; proposals never queue.
func (e *Engine) UpdatePrice(newPrice uint64) (err error) {
	defer func() { e.record("update_price", err) }()

	if newPrice == 0 {
		return OracleErrInvalidPrice
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Oracle); authErr != nil {
		return OracleErrUnauthorized
	}

	now := e.clock()
	if now < s.LastPriceUpdateTS {
		return OracleErrInvalidData
	}
	if now-s.LastPriceUpdateTS < s.Cooldowns.PriceUpdateSecs {
		return OracleErrUpdateTooFrequent
	}

	oldPrice := s.Price

	// Deviation gating is active only when both a threshold and an
	// acceptance cooldown are configured.
	if s.Limits.MaxDeviationBps > 0 && s.Cooldowns.PriceAcceptanceSecs > 0 {
		deviationBps, devErr := fixedpoint.PriceDeviationBps(oldPrice, newPrice)
		if devErr != nil {
			return OracleErrInvalidData
		}
		if deviationBps > s.Limits.MaxDeviationBps {
			s.Pending = &PendingPrice{Value: newPrice, ProposedAt: now}
			e.emit(&event.PricePending{
				Meta:         e.meta(now),
				Oracle:       s.Roles.Oracle,
				OldPrice:     oldPrice,
				NewPrice:     newPrice,
				DeviationBps: deviationBps,
			})
			return nil
		}
	}

	s.Price = newPrice
	s.LastPriceUpdateTS = now
	s.Pending = nil

	e.emit(&event.PriceUpdated{
		Meta:     e.meta(now),
		Oracle:   s.Roles.Oracle,
		OldPrice: oldPrice,
		NewPrice: newPrice,
	})
	e.observeLedger()
	return nil
}

// AcceptPrice applies the pending price. Exactly one identity claim must be
// supplied and it must match its role. Acceptance normally waits out the
// acceptance cooldown; the manager may bypass it only when the pending value
// deviates from the current price by at most the bypass threshold.
func (e *Engine) AcceptPrice(managerAuth, processorAuth, oracleAuth *string) (err error) {
	defer func() { e.record("accept_price", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	var acceptedBy string
	isManager := false
	switch {
	case managerAuth != nil:
		if *managerAuth != s.Roles.Manager {
			return OracleErrUnauthorized
		}
		if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
			return OracleErrUnauthorized
		}
		acceptedBy = *managerAuth
		isManager = true
	case processorAuth != nil:
		if *processorAuth != s.Roles.Processor {
			return OracleErrUnauthorized
		}
		if authErr := e.auth.RequireAuth(s.Roles.Processor); authErr != nil {
			return OracleErrUnauthorized
		}
		acceptedBy = *processorAuth
	case oracleAuth != nil:
		if *oracleAuth != s.Roles.Oracle {
			return OracleErrUnauthorized
		}
		if authErr := e.auth.RequireAuth(s.Roles.Oracle); authErr != nil {
			return OracleErrUnauthorized
		}
		acceptedBy = *oracleAuth
	default:
		return OracleErrUnauthorized
	}

	if s.Pending == nil {
		return OracleErrNoPendingPrice
	}

	now := e.clock()
	cooldownExpired := now >= s.Pending.ProposedAt+s.Cooldowns.PriceAcceptanceSecs

	managerBypass := false
	if isManager {
		deviationBps, devErr := fixedpoint.PriceDeviationBps(s.Price, s.Pending.Value)
		if devErr != nil {
			return OracleErrInvalidData
		}
		managerBypass = deviationBps <= fixedpoint.ManagerBypassDeviationBps
	}

	if !managerBypass && !cooldownExpired {
		return OracleErrCooldownNotExpired
	}

	oldPrice := s.Price
	s.Price = s.Pending.Value
	s.LastPriceUpdateTS = now
	s.Pending = nil

	e.emit(&event.PriceAccepted{
		Meta:       e.meta(now),
		AcceptedBy: acceptedBy,
		OldPrice:   oldPrice,
		NewPrice:   s.Price,
	})
	e.observeLedger()
	return nil
}

// RejectPrice discards the pending price without touching the applied one
// (manager only).
func (e *Engine) RejectPrice() (err error) {
	defer func() { e.record("reject_price", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if s.Pending == nil {
		return OracleErrNoPendingPrice
	}
	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return OracleErrUnauthorized
	}

	rejected := s.Pending.Value
	s.Pending = nil

	now := e.clock()
	e.emit(&event.PriceRejected{
		Meta:          e.meta(now),
		Manager:       s.Roles.Manager,
		RejectedPrice: rejected,
		CurrentPrice:  s.Price,
	})
	return nil
}

// PendingPriceValue exposes the pending slot for the query surface.
func (e *Engine) PendingPriceValue() (PendingPrice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Pending == nil {
		return PendingPrice{}, false
	}
	return *e.state.Pending, true
}
