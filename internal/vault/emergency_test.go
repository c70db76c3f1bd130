package vault_test

import (
	"testing"

	"stokenvault/internal/event"
	"stokenvault/internal/vault"
)

// ============================================================================
// Pause / unpause
// ============================================================================

func TestPauseAndUnpause(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if !f.eng.IsPaused() {
		t.Error("IsPaused() = false, want true")
	}
	if err := f.eng.PauseVault(); err != vault.EmergencyErrVaultPaused {
		t.Errorf("double pause error = %v, want %v", err, vault.EmergencyErrVaultPaused)
	}

	if err := f.eng.UnpauseVault(); err != nil {
		t.Fatalf("UnpauseVault() error = %v", err)
	}
	if f.eng.IsPaused() {
		t.Error("IsPaused() = true, want false")
	}
	if err := f.eng.UnpauseVault(); err != vault.EmergencyErrVaultNotPaused {
		t.Errorf("double unpause error = %v, want %v", err, vault.EmergencyErrVaultNotPaused)
	}
}

func TestPauseRequiresManager(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.become(alice)
	defer f.auth.reset()

	if err := f.eng.PauseVault(); err != vault.EmergencyErrUnauthorized {
		t.Errorf("PauseVault() error = %v, want %v", err, vault.EmergencyErrUnauthorized)
	}
}

// ============================================================================
// Emergency withdrawal
// ============================================================================

func TestEmergencyWithdrawTwoPhase(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}

	// phase one pins the request and starts the timelock
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Fatalf("pin error = %v", err)
	}
	pin, ok := f.eng.EmergencyStatus()
	if !ok {
		t.Fatal("EmergencyStatus() empty, want pinned request")
	}
	if pin.Token != "USDC" || pin.Amount != 250_000 {
		t.Errorf("pin = (%q %d), want (USDC 250000)", pin.Token, pin.Amount)
	}
	if pin.TimelockEnd != startTime+86_400 {
		t.Errorf("timelock end = %d, want %d", pin.TimelockEnd, startTime+86_400)
	}
	if got := f.usdc.Balance(manager); got != 0 {
		t.Errorf("manager balance after pin = %d, want 0", got)
	}

	// phase two is gated by the timelock
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != vault.EmergencyErrTimelockActive {
		t.Errorf("early execute error = %v, want %v", err, vault.EmergencyErrTimelockActive)
	}

	f.clock.Advance(86_400)
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Fatalf("execute error = %v", err)
	}
	if got := f.usdc.Balance(manager); got != 250_000 {
		t.Errorf("manager balance = %d, want 250000", got)
	}
	if _, ok := f.eng.EmergencyStatus(); ok {
		t.Error("pin still set after execution")
	}

	if len(f.sink.ofType(event.TypeEmergencyWithdrawExecuted)) != 1 {
		t.Error("EmergencyWithdrawExecuted event missing")
	}
}

func TestEmergencyWithdrawMismatchedExecutionRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Fatalf("pin error = %v", err)
	}
	f.clock.Advance(86_400)

	if err := f.eng.EmergencyWithdraw(f.usdc, 100_000); err != vault.EmergencyErrRequestMismatch {
		t.Errorf("amount mismatch error = %v, want %v", err, vault.EmergencyErrRequestMismatch)
	}
	if err := f.eng.EmergencyWithdraw(f.shares, 250_000); err != vault.EmergencyErrRequestMismatch {
		t.Errorf("token mismatch error = %v, want %v", err, vault.EmergencyErrRequestMismatch)
	}

	// the pin survives mismatched attempts
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Errorf("matching execute error = %v, want nil", err)
	}
}

func TestEmergencyWithdrawRequiresPause(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)

	if err := f.eng.EmergencyWithdraw(f.usdc, 1_000); err != vault.EmergencyErrVaultNotPaused {
		t.Errorf("EmergencyWithdraw() error = %v, want %v", err, vault.EmergencyErrVaultNotPaused)
	}
}

func TestUnpauseClearsEmergencyPin(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Fatalf("pin error = %v", err)
	}

	if err := f.eng.UnpauseVault(); err != nil {
		t.Fatalf("UnpauseVault() error = %v", err)
	}
	if _, ok := f.eng.EmergencyStatus(); ok {
		t.Error("pin survived unpause")
	}

	// a fresh pause starts the whole procedure over
	f.clock.Advance(86_400)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if err := f.eng.EmergencyWithdraw(f.usdc, 250_000); err != nil {
		t.Fatalf("re-pin error = %v", err)
	}
	if got := f.usdc.Balance(manager); got != 0 {
		t.Errorf("manager balance = %d, want 0 (new pin, not execution)", got)
	}
}

func TestEmergencyWithdrawInsufficientBalance(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if err := f.eng.EmergencyWithdraw(f.usdc, 5_000); err != nil {
		t.Fatalf("pin error = %v", err)
	}
	f.clock.Advance(86_400)

	if err := f.eng.EmergencyWithdraw(f.usdc, 5_000); err != vault.EmergencyErrInsufficientBalance {
		t.Errorf("EmergencyWithdraw() error = %v, want %v", err, vault.EmergencyErrInsufficientBalance)
	}
}
