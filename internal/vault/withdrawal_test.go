package vault_test

import (
	"encoding/json"
	"testing"

	"stokenvault/internal/event"
	"stokenvault/internal/vault"
)

// withdrawFixture funds alice with one million shares at price 1.0 under a
// 1% withdraw fee and no price deviation gating.
func withdrawFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.WithdrawFeeBps = 100
		cfg.MaxDeviationBps = u32Ptr(0)
	})
	f.deposit(alice, 1_000_000)
	return f
}

// ============================================================================
// Request
// ============================================================================

func TestWithdrawRequestEscrowsShares(t *testing.T) {
	f := withdrawFixture(t)

	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if got := f.shares.Balance(alice); got != 900_000 {
		t.Errorf("alice shares = %d, want 900000", got)
	}
	if got := f.shares.Balance(vaultA); got != 100_000 {
		t.Errorf("escrowed shares = %d, want 100000", got)
	}

	_, totalShares, _, pending, custody := f.eng.Ledger()
	if totalShares != 1_000_000 {
		t.Errorf("total shares = %d, want 1000000 (unchanged until fulfillment)", totalShares)
	}
	if custody != 100_000 {
		t.Errorf("shares in custody = %d, want 100000", custody)
	}
	if pending != 99_000 {
		t.Errorf("withdrawals pending = %d, want 99000", pending)
	}

	req, ok := f.eng.Request(id)
	if !ok {
		t.Fatalf("Request(%d) not found", id)
	}
	if req.Shares != 99_000 {
		t.Errorf("request shares = %d, want 99000", req.Shares)
	}
	if req.FeeShares != 1_000 {
		t.Errorf("request fee shares = %d, want 1000", req.FeeShares)
	}
	if req.AmountDue != 99_000 {
		t.Errorf("request amount due = %d, want 99000", req.AmountDue)
	}
	if req.Status != vault.StatusPending {
		t.Errorf("request status = %v, want %v", req.Status, vault.StatusPending)
	}
}

func TestWithdrawRequestIDsAreMonotonic(t *testing.T) {
	f := withdrawFixture(t)

	first, err := f.eng.WithdrawRequest(alice, 10_000, 0)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := f.eng.WithdrawRequest(alice, 10_000, 0)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second != first+1 {
		t.Errorf("second id = %d, want %d", second, first+1)
	}
}

func TestWithdrawRequestRejections(t *testing.T) {
	tests := []struct {
		name    string
		shares  uint64
		min     uint64
		wantErr error
	}{
		{"zero shares", 0, 0, vault.CoreErrInvalidAmount},
		{"more than balance", 2_000_000, 0, vault.CoreErrInsufficientShares},
		{"minimum above amount due", 100_000, 99_001, vault.CoreErrInvalidWithdrawalMinimum},
		{"minimum above downside cap", 100_000, 95_000, vault.CoreErrMinimumTooHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := withdrawFixture(t)
			_, err := f.eng.WithdrawRequest(alice, tt.shares, tt.min)
			if err != tt.wantErr {
				t.Errorf("WithdrawRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWithdrawRequestMinimumAtDownsideCapPasses(t *testing.T) {
	f := withdrawFixture(t)

	// amount due 99_000, 5% downside cap keeps minimums at or below 94_050
	if _, err := f.eng.WithdrawRequest(alice, 100_000, 94_050); err != nil {
		t.Errorf("WithdrawRequest() error = %v, want nil", err)
	}
}

func TestWithdrawRequestMinimumSharesRules(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.MinSharesToMint = u64Ptr(50_000)
	})
	f.deposit(alice, 1_000_000)

	if _, err := f.eng.WithdrawRequest(alice, 30_000, 0); err != vault.CoreErrWithdrawalAmountTooLow {
		t.Errorf("small request error = %v, want %v", err, vault.CoreErrWithdrawalAmountTooLow)
	}
	if _, err := f.eng.WithdrawRequest(alice, 970_000, 0); err != vault.CoreErrMinimumSharesNotMet {
		t.Errorf("dust remainder error = %v, want %v", err, vault.CoreErrMinimumSharesNotMet)
	}
	if _, err := f.eng.WithdrawRequest(alice, 1_000_000, 0); err != nil {
		t.Errorf("full exit error = %v, want nil", err)
	}
}

func TestWithdrawRequestWhilePaused(t *testing.T) {
	f := withdrawFixture(t)
	if err := f.eng.PauseVault(); err != nil {
		t.Fatalf("PauseVault() error = %v", err)
	}
	if _, err := f.eng.WithdrawRequest(alice, 10_000, 0); err != vault.CoreErrVaultPaused {
		t.Errorf("WithdrawRequest() error = %v, want %v", err, vault.CoreErrVaultPaused)
	}
}

// ============================================================================
// Update minimum
// ============================================================================

func TestUpdateWithdrawalMinimumOnlyDecreases(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 90_000)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.UpdateWithdrawalMinimum(alice, id, 80_000); err != nil {
		t.Errorf("decrease error = %v, want nil", err)
	}
	if err := f.eng.UpdateWithdrawalMinimum(alice, id, 85_000); err != vault.WithdrawalErrMinimumCannotIncrease {
		t.Errorf("increase error = %v, want %v", err, vault.WithdrawalErrMinimumCannotIncrease)
	}
	if err := f.eng.UpdateWithdrawalMinimum(bob, id, 70_000); err != vault.WithdrawalErrWrongUser {
		t.Errorf("wrong user error = %v, want %v", err, vault.WithdrawalErrWrongUser)
	}
	if err := f.eng.UpdateWithdrawalMinimum(alice, 999, 0); err != vault.WithdrawalErrNotFound {
		t.Errorf("missing request error = %v, want %v", err, vault.WithdrawalErrNotFound)
	}
}

// ============================================================================
// Fulfill
// ============================================================================

func TestFulfillWithdrawalAtStablePrice(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.FulfillWithdrawal(alice, id); err != nil {
		t.Fatalf("FulfillWithdrawal() error = %v", err)
	}

	if got := f.usdc.Balance(alice); got != 99_000 {
		t.Errorf("alice underlying = %d, want 99000", got)
	}
	if got := f.shares.Balance(accountant); got != 1_000 {
		t.Errorf("accountant shares = %d, want 1000", got)
	}

	_, totalShares, totalIdle, pending, custody := f.eng.Ledger()
	if totalShares != 901_000 {
		t.Errorf("total shares = %d, want 901000", totalShares)
	}
	if totalIdle != 901_000 {
		t.Errorf("total idle = %d, want 901000", totalIdle)
	}
	if pending != 0 || custody != 0 {
		t.Errorf("pending/custody = %d/%d, want 0/0", pending, custody)
	}

	req, _ := f.eng.Request(id)
	if req.Status != vault.StatusFulfilled {
		t.Errorf("request status = %v, want %v", req.Status, vault.StatusFulfilled)
	}
}

func TestFulfillWithdrawalPaysMinimumWhenPriceFell(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 94_050)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	f.clock.Advance(300)
	if err := f.eng.UpdatePrice(9_000_000); err != nil {
		t.Fatalf("UpdatePrice() error = %v", err)
	}

	if err := f.eng.FulfillWithdrawal(alice, id); err != nil {
		t.Fatalf("FulfillWithdrawal() error = %v", err)
	}
	// marked to market 89_100 fell below the floor, so the floor is paid
	if got := f.usdc.Balance(alice); got != 94_050 {
		t.Errorf("alice underlying = %d, want 94050", got)
	}
}

func TestFulfillWithdrawalCapsPayoutWhenPriceRose(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	f.clock.Advance(300)
	if err := f.eng.UpdatePrice(11_000_000); err != nil {
		t.Fatalf("UpdatePrice() error = %v", err)
	}

	if err := f.eng.FulfillWithdrawal(alice, id); err != nil {
		t.Fatalf("FulfillWithdrawal() error = %v", err)
	}
	// payout stays at the amount locked in at request time
	if got := f.usdc.Balance(alice); got != 99_000 {
		t.Errorf("alice underlying = %d, want 99000", got)
	}
}

func TestFulfillWithdrawalLiquidityGuards(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 500_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.ProcessDeposits(900_000); err != nil {
		t.Fatalf("ProcessDeposits() error = %v", err)
	}
	if err := f.eng.FulfillWithdrawal(alice, id); err != vault.WithdrawalErrInsufficientVaultFunds {
		t.Errorf("drained vault error = %v, want %v", err, vault.WithdrawalErrInsufficientVaultFunds)
	}

	// A raw balance top-up is not idle, so the idle guard still trips.
	f.fund(vaultA, 1_000_000)
	if err := f.eng.FulfillWithdrawal(alice, id); err != vault.WithdrawalErrInsufficientIdle {
		t.Errorf("low idle error = %v, want %v", err, vault.WithdrawalErrInsufficientIdle)
	}
}

// restoreWithState round-trips the fixture's engine through a snapshot so a
// test can perturb the persisted counters before restoring.
func (f *fixture) restoreWithState(mutate func(*vault.State)) *vault.Engine {
	f.t.Helper()

	raw, err := f.eng.Snapshot()
	if err != nil {
		f.t.Fatalf("Snapshot() error = %v", err)
	}
	var state vault.State
	if err := json.Unmarshal(raw, &state); err != nil {
		f.t.Fatalf("Unmarshal snapshot: %v", err)
	}
	mutate(&state)

	restored, err := vault.NewEngineFromState(vaultA, &state, vault.Deps{
		Underlying: f.usdc,
		Shares:     f.shares,
		Sink:       f.sink,
		Auth:       f.auth,
		Clock:      f.clock.Now,
	})
	if err != nil {
		f.t.Fatalf("NewEngineFromState() error = %v", err)
	}
	return restored
}

func TestFulfillWithdrawalFailureLeavesRequestPending(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	// A pending counter below the amount due makes the counter update
	// impossible; the fulfillment must fail without paying or burning.
	eng := f.restoreWithState(func(s *vault.State) {
		s.TotalWithdrawalsPending = 98_999
	})

	if err := eng.FulfillWithdrawal(alice, id); err != vault.WithdrawalErrMathOverflow {
		t.Fatalf("FulfillWithdrawal() error = %v, want %v", err, vault.WithdrawalErrMathOverflow)
	}

	req, ok := eng.Request(id)
	if !ok {
		t.Fatalf("Request(%d) not found", id)
	}
	if req.Status != vault.StatusPending {
		t.Errorf("request status = %v, want %v", req.Status, vault.StatusPending)
	}
	if got := f.usdc.Balance(alice); got != 0 {
		t.Errorf("alice underlying = %d, want 0", got)
	}
	if got := f.shares.Balance(vaultA); got != 100_000 {
		t.Errorf("escrowed shares = %d, want 100000", got)
	}
	if got := f.shares.Balance(accountant); got != 0 {
		t.Errorf("accountant shares = %d, want 0", got)
	}
	_, totalShares, totalIdle, pending, custody := eng.Ledger()
	if totalShares != 1_000_000 || totalIdle != 1_000_000 {
		t.Errorf("totals = %d/%d, want 1000000/1000000", totalShares, totalIdle)
	}
	if pending != 98_999 || custody != 100_000 {
		t.Errorf("pending/custody = %d/%d, want 98999/100000", pending, custody)
	}
}

func TestFulfillWithdrawalAuthorization(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	f.auth.become(alice)
	defer f.auth.reset()
	if err := f.eng.FulfillWithdrawal(alice, id); err != vault.WithdrawalErrUnauthorized {
		t.Errorf("FulfillWithdrawal() error = %v, want %v", err, vault.WithdrawalErrUnauthorized)
	}
}

// ============================================================================
// Cancel
// ============================================================================

func TestCancelWithdrawalEarlyKeepsFee(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.CancelWithdrawal(alice, id); err != nil {
		t.Fatalf("CancelWithdrawal() error = %v", err)
	}

	if got := f.shares.Balance(alice); got != 999_000 {
		t.Errorf("alice shares = %d, want 999000", got)
	}
	if got := f.shares.Balance(accountant); got != 1_000 {
		t.Errorf("accountant shares = %d, want 1000", got)
	}

	_, totalShares, _, pending, custody := f.eng.Ledger()
	if totalShares != 1_000_000 {
		t.Errorf("total shares = %d, want 1000000", totalShares)
	}
	if pending != 0 || custody != 0 {
		t.Errorf("pending/custody = %d/%d, want 0/0", pending, custody)
	}

	evs := f.sink.ofType(event.TypeWithdrawalCancelled)
	if len(evs) != 1 {
		t.Fatalf("WithdrawalCancelled events = %d, want 1", len(evs))
	}
	ev := evs[0].(*event.WithdrawalCancelled)
	if !ev.EarlyCancel {
		t.Error("EarlyCancel = false, want true")
	}
	if ev.PenaltyShares != 0 {
		t.Errorf("PenaltyShares = %d, want 0", ev.PenaltyShares)
	}
}

func TestCancelWithdrawalLateRefundsFeeAndMintsPenalty(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	f.clock.Advance(86_400)
	if err := f.eng.CancelWithdrawal(alice, id); err != nil {
		t.Fatalf("CancelWithdrawal() error = %v", err)
	}

	// full refund plus 50 bps of the post-fee shares as delay compensation
	if got := f.shares.Balance(alice); got != 1_000_495 {
		t.Errorf("alice shares = %d, want 1000495", got)
	}
	if got := f.shares.Balance(accountant); got != 0 {
		t.Errorf("accountant shares = %d, want 0", got)
	}

	_, totalShares, _, _, _ := f.eng.Ledger()
	if totalShares != 1_000_495 {
		t.Errorf("total shares = %d, want 1000495", totalShares)
	}
}

func TestCancelWithdrawalProcessorNeedsExpiredTTL(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.CancelWithdrawal(processor, id); err != vault.WithdrawalErrTTLNotExpired {
		t.Errorf("early processor cancel error = %v, want %v", err, vault.WithdrawalErrTTLNotExpired)
	}

	f.clock.Advance(86_400)
	if err := f.eng.CancelWithdrawal(processor, id); err != nil {
		t.Errorf("late processor cancel error = %v, want nil", err)
	}
	if got := f.shares.Balance(alice); got != 1_000_495 {
		t.Errorf("alice shares = %d, want 1000495", got)
	}
}

func TestCancelWithdrawalStrangerRejected(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.CancelWithdrawal(bob, id); err != vault.WithdrawalErrWrongUser {
		t.Errorf("CancelWithdrawal() error = %v, want %v", err, vault.WithdrawalErrWrongUser)
	}
}

func TestCancelWithdrawalFailureLeavesRequestPending(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	// A custody counter below the escrowed total makes the counter update
	// impossible; the cancel must fail without moving any shares.
	eng := f.restoreWithState(func(s *vault.State) {
		s.SharesInCustody = 99_999
	})

	if err := eng.CancelWithdrawal(alice, id); err != vault.WithdrawalErrMathOverflow {
		t.Fatalf("CancelWithdrawal() error = %v, want %v", err, vault.WithdrawalErrMathOverflow)
	}

	req, ok := eng.Request(id)
	if !ok {
		t.Fatalf("Request(%d) not found", id)
	}
	if req.Status != vault.StatusPending {
		t.Errorf("request status = %v, want %v", req.Status, vault.StatusPending)
	}
	if got := f.shares.Balance(alice); got != 900_000 {
		t.Errorf("alice shares = %d, want 900000", got)
	}
	if got := f.shares.Balance(vaultA); got != 100_000 {
		t.Errorf("escrowed shares = %d, want 100000", got)
	}
	if got := f.shares.Balance(accountant); got != 0 {
		t.Errorf("accountant shares = %d, want 0", got)
	}
	_, totalShares, _, pending, custody := eng.Ledger()
	if totalShares != 1_000_000 {
		t.Errorf("total shares = %d, want 1000000", totalShares)
	}
	if pending != 99_000 || custody != 99_999 {
		t.Errorf("pending/custody = %d/%d, want 99000/99999", pending, custody)
	}
}

func TestCancelWithdrawalTwiceRejected(t *testing.T) {
	f := withdrawFixture(t)
	id, err := f.eng.WithdrawRequest(alice, 100_000, 0)
	if err != nil {
		t.Fatalf("WithdrawRequest() error = %v", err)
	}

	if err := f.eng.CancelWithdrawal(alice, id); err != nil {
		t.Fatalf("first cancel error = %v", err)
	}
	if err := f.eng.CancelWithdrawal(alice, id); err != vault.WithdrawalErrWrongStatus {
		t.Errorf("second cancel error = %v, want %v", err, vault.WithdrawalErrWrongStatus)
	}
}
