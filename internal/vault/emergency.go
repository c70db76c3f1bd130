package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/token"
)

// PauseVault halts all user-facing activity (manager only).
func (e *Engine) PauseVault() (err error) {
	defer func() { e.record("pause_vault", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return EmergencyErrUnauthorized
	}
	if s.Paused {
		return EmergencyErrVaultPaused
	}
	s.Paused = true

	now := e.clock()
	e.emit(&event.VaultPaused{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
	})
	return nil
}

// UnpauseVault resumes activity and discards any in-flight emergency
// withdrawal, pins included (manager only).
func (e *Engine) UnpauseVault() (err error) {
	defer func() { e.record("unpause_vault", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return EmergencyErrUnauthorized
	}
	if !s.Paused {
		return EmergencyErrVaultNotPaused
	}
	s.Paused = false
	s.Emergency = EmergencyRequest{}

	now := e.clock()
	e.emit(&event.VaultUnpaused{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
	})
	return nil
}

// EmergencyWithdraw is a two-phase escape hatch usable only while paused
// (manager only). The first call pins the token and amount and starts the
// emergency timelock. A second call after the timelock, with the identical
// token and amount, executes the transfer to the manager and clears the pin.
// A mismatched second call is rejected without disturbing the pin.
func (e *Engine) EmergencyWithdraw(tok token.Token, amount uint64) (err error) {
	defer func() { e.record("emergency_withdraw", err) }()

	if amount == 0 {
		return EmergencyErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return EmergencyErrUnauthorized
	}
	if !s.Paused {
		return EmergencyErrVaultNotPaused
	}

	now := e.clock()

	if s.Emergency.TimelockEnd == 0 {
		s.Emergency = EmergencyRequest{
			Token:       tok.Symbol(),
			Amount:      amount,
			TimelockEnd: now + s.Cooldowns.EmergencySecs,
		}
		e.emit(&event.EmergencyWithdrawPending{
			Meta:         e.meta(now),
			Manager:      s.Roles.Manager,
			Token:        s.Emergency.Token,
			Amount:       amount,
			TimelockEnd:  s.Emergency.TimelockEnd,
			CooldownSecs: s.Cooldowns.EmergencySecs,
		})
		return nil
	}

	if now < s.Emergency.TimelockEnd {
		return EmergencyErrTimelockActive
	}
	if tok.Symbol() != s.Emergency.Token || amount != s.Emergency.Amount {
		return EmergencyErrRequestMismatch
	}
	if tok.Balance(e.id) < amount {
		return EmergencyErrInsufficientBalance
	}
	if transferErr := tok.Transfer(e.id, s.Roles.Manager, amount); transferErr != nil {
		return EmergencyErrInsufficientBalance
	}
	s.Emergency = EmergencyRequest{}

	e.emit(&event.EmergencyWithdrawExecuted{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		Token:   tok.Symbol(),
		Amount:  amount,
	})
	return nil
}

// EmergencyStatus exposes the pinned request for the query surface.
func (e *Engine) EmergencyStatus() (EmergencyRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Emergency.TimelockEnd == 0 {
		return EmergencyRequest{}, false
	}
	return e.state.Emergency, true
}
