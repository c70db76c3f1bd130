package vault_test

import (
	"testing"

	"stokenvault/internal/fixedpoint"
	"stokenvault/internal/token"
	"stokenvault/internal/vault"
)

// ============================================================================
// Deposit
// ============================================================================

func TestDepositMintsSharesAndFee(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.DepositFeeBps = 100
	})
	f.fund(alice, 1_000_000)

	if err := f.eng.Deposit(alice, 1_000_000, nil, ""); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	// 1_000_000 underlying at price 1.0 mints 1_000_000 shares, 1% of which
	// goes to the accountant.
	if got := f.shares.Balance(alice); got != 990_000 {
		t.Errorf("alice shares = %d, want 990000", got)
	}
	if got := f.shares.Balance(accountant); got != 10_000 {
		t.Errorf("accountant shares = %d, want 10000", got)
	}
	if got := f.usdc.Balance(vaultA); got != 1_000_000 {
		t.Errorf("vault balance = %d, want 1000000", got)
	}

	_, totalShares, totalIdle, _, _ := f.eng.Ledger()
	if totalShares != 1_000_000 {
		t.Errorf("total shares = %d, want 1000000", totalShares)
	}
	if totalIdle != 1_000_000 {
		t.Errorf("total idle = %d, want 1000000", totalIdle)
	}
}

func TestDepositToBeneficiary(t *testing.T) {
	f := newFixture(t, nil)
	f.fund(alice, 500_000)

	if err := f.eng.Deposit(alice, 500_000, nil, bob); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if got := f.shares.Balance(bob); got != 500_000 {
		t.Errorf("bob shares = %d, want 500000", got)
	}
	if got := f.shares.Balance(alice); got != 0 {
		t.Errorf("alice shares = %d, want 0", got)
	}
}

func TestDepositAtElevatedPrice(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.InitialPrice = u64Ptr(12_500_000) // 1.25
	})
	f.fund(alice, 1_000_000)

	if err := f.eng.Deposit(alice, 1_000_000, nil, ""); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}
	if got := f.shares.Balance(alice); got != 800_000 {
		t.Errorf("alice shares = %d, want 800000", got)
	}
}

func TestDepositRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*vault.Config)
		prepare func(*fixture)
		amount  uint64
		min     *uint64
		wantErr error
	}{
		{
			name:    "zero amount",
			amount:  0,
			wantErr: vault.CoreErrInvalidAmount,
		},
		{
			name: "paused",
			prepare: func(f *fixture) {
				if err := f.eng.PauseVault(); err != nil {
					t.Fatalf("PauseVault() error = %v", err)
				}
			},
			amount:  1_000,
			wantErr: vault.CoreErrVaultPaused,
		},
		{
			name: "not whitelisted",
			mutate: func(cfg *vault.Config) {
				cfg.WhitelistEnabled = true
			},
			amount:  1_000,
			wantErr: vault.CoreErrUserNotWhitelisted,
		},
		{
			name: "max total idle",
			mutate: func(cfg *vault.Config) {
				cfg.MaxTotalIdle = u64Ptr(500)
			},
			amount:  1_000,
			wantErr: vault.CoreErrMaxTotalIdleExceeded,
		},
		{
			name: "max total shares",
			mutate: func(cfg *vault.Config) {
				cfg.MaxTotalShares = u64Ptr(500)
			},
			amount:  1_000,
			wantErr: vault.CoreErrMaxTotalSharesExceeded,
		},
		{
			name: "max shares per user",
			mutate: func(cfg *vault.Config) {
				cfg.MaxTotalShares = u64Ptr(10_000)
				cfg.MaxSharesPerUser = u64Ptr(500)
			},
			amount:  1_000,
			wantErr: vault.CoreErrMaxSharesPerUserExceeded,
		},
		{
			name: "below minimum shares",
			mutate: func(cfg *vault.Config) {
				cfg.MinSharesToMint = u64Ptr(5_000)
			},
			amount:  1_000,
			wantErr: vault.CoreErrMinimumSharesNotMet,
		},
		{
			name:    "slippage",
			amount:  1_000,
			min:     u64Ptr(2_000),
			wantErr: vault.CoreErrSlippageNotMet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mutate)
			if tt.prepare != nil {
				tt.prepare(f)
			}
			f.fund(alice, 1_000_000)

			err := f.eng.Deposit(alice, tt.amount, tt.min, "")
			if err != tt.wantErr {
				t.Errorf("Deposit() error = %v, want %v", err, tt.wantErr)
			}
			if got := f.shares.Balance(alice); got != 0 {
				t.Errorf("alice shares after rejection = %d, want 0", got)
			}
		})
	}
}

func TestDepositWhitelistedUserPasses(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.WhitelistEnabled = true
	})
	if err := f.eng.AddUserToWhitelist(alice); err != nil {
		t.Fatalf("AddUserToWhitelist() error = %v", err)
	}
	f.fund(alice, 1_000)

	if err := f.eng.Deposit(alice, 1_000, nil, ""); err != nil {
		t.Errorf("Deposit() error = %v, want nil", err)
	}
}

// ============================================================================
// Idle fund movement
// ============================================================================

func TestProcessDepositsMovesIdleToAssetManager(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)

	if err := f.eng.ProcessDeposits(600_000); err != nil {
		t.Fatalf("ProcessDeposits() error = %v", err)
	}
	if got := f.usdc.Balance(assetManager); got != 600_000 {
		t.Errorf("asset manager balance = %d, want 600000", got)
	}
	_, _, totalIdle, _, _ := f.eng.Ledger()
	if totalIdle != 400_000 {
		t.Errorf("total idle = %d, want 400000", totalIdle)
	}
}

func TestProcessDepositsRejectsMoreThanIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000)

	if err := f.eng.ProcessDeposits(2_000); err != vault.CoreErrInsufficientBalance {
		t.Errorf("ProcessDeposits() error = %v, want %v", err, vault.CoreErrInsufficientBalance)
	}
}

func TestReturnFundsIncreasesIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)
	if err := f.eng.ProcessDeposits(600_000); err != nil {
		t.Fatalf("ProcessDeposits() error = %v", err)
	}

	if err := f.eng.ReturnFunds(600_000); err != nil {
		t.Fatalf("ReturnFunds() error = %v", err)
	}
	_, _, totalIdle, _, _ := f.eng.Ledger()
	if totalIdle != 1_000_000 {
		t.Errorf("total idle = %d, want 1000000", totalIdle)
	}
	if got := f.usdc.Balance(vaultA); got != 1_000_000 {
		t.Errorf("vault balance = %d, want 1000000", got)
	}
}

// ============================================================================
// Management fee
// ============================================================================

func TestAccrueManagementFeeDilutesSupply(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.ManagementBpsPerYear = 100
	})
	f.deposit(alice, 1_010_000)

	f.clock.Advance(fixedpoint.SecondsPerYear)
	if err := f.eng.AccrueManagementFee(); err != nil {
		t.Fatalf("AccrueManagementFee() error = %v", err)
	}

	// supply * bps * elapsed / (BpsPrecision * year + bps * elapsed)
	// = 1_010_000 * 100 / 10_100 = 10_000
	if got := f.shares.Balance(accountant); got != 10_000 {
		t.Errorf("accountant shares = %d, want 10000", got)
	}
	_, totalShares, _, _, _ := f.eng.Ledger()
	if totalShares != 1_020_000 {
		t.Errorf("total shares = %d, want 1020000", totalShares)
	}
}

func TestAccrueManagementFeeZeroElapsedIsNoOp(t *testing.T) {
	f := newFixture(t, func(cfg *vault.Config) {
		cfg.ManagementBpsPerYear = 100
	})
	f.deposit(alice, 1_000_000)

	if err := f.eng.AccrueManagementFee(); err != nil {
		t.Fatalf("AccrueManagementFee() error = %v", err)
	}
	if got := f.shares.Balance(accountant); got != 0 {
		t.Errorf("accountant shares = %d, want 0", got)
	}
}

func TestAccrueManagementFeeZeroRate(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)

	f.clock.Advance(fixedpoint.SecondsPerYear)
	if err := f.eng.AccrueManagementFee(); err != nil {
		t.Fatalf("AccrueManagementFee() error = %v", err)
	}
	if got := f.shares.Balance(accountant); got != 0 {
		t.Errorf("accountant shares = %d, want 0", got)
	}
}

// ============================================================================
// Unexpected deposits
// ============================================================================

func TestWithdrawUnexpectedDepositsUnderlying(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)

	// Tokens sent straight to the vault address bypass the counters.
	f.fund(vaultA, 5_000)

	if err := f.eng.WithdrawUnexpectedDeposits(f.usdc, 5_000); err != nil {
		t.Fatalf("WithdrawUnexpectedDeposits() error = %v", err)
	}
	if got := f.usdc.Balance(manager); got != 5_000 {
		t.Errorf("manager balance = %d, want 5000", got)
	}
	_, _, totalIdle, _, _ := f.eng.Ledger()
	if totalIdle != 1_000_000 {
		t.Errorf("total idle = %d, want 1000000", totalIdle)
	}
}

func TestWithdrawUnexpectedDepositsCannotTouchIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, 1_000_000)

	err := f.eng.WithdrawUnexpectedDeposits(f.usdc, 1)
	if err != vault.CoreErrInsufficientBalance {
		t.Errorf("WithdrawUnexpectedDeposits() error = %v, want %v", err, vault.CoreErrInsufficientBalance)
	}
}

func TestWithdrawUnexpectedDepositsOtherToken(t *testing.T) {
	f := newFixture(t, nil)
	weth := token.NewLedger("WETH", 18)
	if err := weth.Mint(vaultA, 777); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := f.eng.WithdrawUnexpectedDeposits(weth, 777); err != nil {
		t.Fatalf("WithdrawUnexpectedDeposits() error = %v", err)
	}
	if got := weth.Balance(manager); got != 777 {
		t.Errorf("manager WETH = %d, want 777", got)
	}
}
