package fixedpoint_test

import (
	"math"
	"math/big"
	"testing"

	"stokenvault/internal/fixedpoint"
)

// ============================================================================
// Test: ApplyFee
// ============================================================================

func TestApplyFee_SumIdentity(t *testing.T) {
	amounts := []uint64{1, 2, 999, 10_000, 33_333, 1_000_000_000}
	rates := []uint32{1, 10, 50, 100, 999, 1_000}

	for _, amount := range amounts {
		for _, bps := range rates {
			afterFee, fee, err := fixedpoint.ApplyFee(amount, bps)
			if err != nil {
				t.Fatalf("amount=%d bps=%d: unexpected error: %v", amount, bps, err)
			}
			if afterFee+fee != amount {
				t.Errorf("amount=%d bps=%d: afterFee(%d)+fee(%d) != amount", amount, bps, afterFee, fee)
			}
			if fee == 0 {
				t.Errorf("amount=%d bps=%d: nonzero rate produced zero fee", amount, bps)
			}
		}
	}
}

func TestApplyFee_ZeroRate(t *testing.T) {
	afterFee, fee, err := fixedpoint.ApplyFee(1_000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if afterFee != 1_000 || fee != 0 {
		t.Errorf("got (%d, %d), want (1000, 0)", afterFee, fee)
	}
}

func TestApplyFee_MinFeeFloor(t *testing.T) {
	// 1 bps of 100 is 0.01, rounds to 0, floored to 1
	afterFee, fee, err := fixedpoint.ApplyFee(100, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 1 {
		t.Errorf("fee: got %d, want 1", fee)
	}
	if afterFee != 99 {
		t.Errorf("afterFee: got %d, want 99", afterFee)
	}
}

func TestApplyFee_BankersRounding(t *testing.T) {
	// 50 bps of 500 = 2.5 exactly; half rounds to the even quotient 2
	_, fee, err := fixedpoint.ApplyFee(500, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 2 {
		t.Errorf("fee: got %d, want 2 (half to even)", fee)
	}

	// 50 bps of 700 = 3.5 exactly; half rounds up to the even quotient 4
	_, fee, err = fixedpoint.ApplyFee(700, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 4 {
		t.Errorf("fee: got %d, want 4 (half to even)", fee)
	}
}

func TestApplyFee_RateAboveCap(t *testing.T) {
	_, _, err := fixedpoint.ApplyFee(1_000, fixedpoint.MaxFeeBps+1)
	if err != fixedpoint.ErrInvalidFee {
		t.Errorf("got %v, want ErrInvalidFee", err)
	}
}

// ============================================================================
// Test: ManagementFee
// ============================================================================

func TestManagementFee_ZeroCases(t *testing.T) {
	cases := []struct {
		name    string
		supply  uint64
		bps     uint32
		elapsed uint64
	}{
		{"zero supply", 0, 100, 86_400},
		{"zero rate", 1_000_000, 0, 86_400},
		{"zero elapsed", 1_000_000, 100, 0},
	}
	for _, tc := range cases {
		fee, err := fixedpoint.ManagementFee(tc.supply, tc.bps, tc.elapsed)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if fee != 0 {
			t.Errorf("%s: got %d, want 0", tc.name, fee)
		}
	}
}

func TestManagementFee_FullYear(t *testing.T) {
	// 100 bps over a full year: fee = supply * 100 / 10_100
	fee, err := fixedpoint.ManagementFee(10_100_000, 100, fixedpoint.SecondsPerYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 100_000 {
		t.Errorf("got %d, want 100_000", fee)
	}
}

func TestManagementFee_DilutionTarget(t *testing.T) {
	// After minting, the accountant owns fee/(supply+fee); that share must not
	// exceed the pro-rata rate r = bps*elapsed/(BpsPrecision*SecondsPerYear)
	// scaled against the grown supply, and must be within one unit of it.
	supply := uint64(1_000_000_000_000)
	bps := uint32(200)
	elapsed := uint64(30 * 86_400)

	fee, err := fixedpoint.ManagementFee(supply, bps, elapsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// exact target in wide arithmetic: fee_exact = supply*bps*elapsed / (BpsPrecision*SecondsPerYear + bps*elapsed)
	num := new(big.Int).SetUint64(supply)
	num.Mul(num, new(big.Int).SetUint64(uint64(bps)*elapsed))
	den := new(big.Int).SetUint64(uint64(fixedpoint.BpsPrecision) * fixedpoint.SecondsPerYear)
	den.Add(den, new(big.Int).SetUint64(uint64(bps)*elapsed))
	want := new(big.Int).Quo(num, den).Uint64()

	if fee != want {
		t.Errorf("got %d, want %d", fee, want)
	}
}

func TestManagementFee_RateAboveCap(t *testing.T) {
	_, err := fixedpoint.ManagementFee(1_000, fixedpoint.MaxManagementFeeBpsPerYear+1, 1)
	if err != fixedpoint.ErrInvalidFee {
		t.Errorf("got %v, want ErrInvalidFee", err)
	}
}

// ============================================================================
// Test: PriceDeviationBps
// ============================================================================

func TestPriceDeviationBps(t *testing.T) {
	cases := []struct {
		name     string
		oldPrice uint64
		newPrice uint64
		want     uint32
	}{
		{"no change", 10_000_000, 10_000_000, 0},
		{"up 5 percent", 10_000_000, 10_500_000, 500},
		{"down 5 percent", 10_000_000, 9_500_000, 500},
		{"double", 10_000_000, 20_000_000, 10_000},
		{"sub-bps truncates", 10_000_000, 10_000_999, 0},
	}
	for _, tc := range cases {
		got, err := fixedpoint.PriceDeviationBps(tc.oldPrice, tc.newPrice)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestPriceDeviationBps_Saturates(t *testing.T) {
	got, err := fixedpoint.PriceDeviationBps(1, math.MaxUint64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != math.MaxUint32 {
		t.Errorf("got %d, want MaxUint32", got)
	}
}

func TestPriceDeviationBps_ZeroOld(t *testing.T) {
	_, err := fixedpoint.PriceDeviationBps(0, 1)
	if err != fixedpoint.ErrInvalidPrice {
		t.Errorf("got %v, want ErrInvalidPrice", err)
	}
}

// ============================================================================
// Test: SplitFeeTokens
// ============================================================================

func TestSplitFeeTokens_EqualPrices(t *testing.T) {
	// both vaults at price 1.0: token halves equal the value halves
	src, dst, err := fixedpoint.SplitFeeTokens(1_001, fixedpoint.PricePrecision, fixedpoint.PricePrecision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src != 500 || dst != 501 {
		t.Errorf("got (%d, %d), want (500, 501)", src, dst)
	}
}

func TestSplitFeeTokens_ValueConservation(t *testing.T) {
	// converting each leg back to underlying loses at most one unit per leg
	fees := []uint64{2, 100, 999, 123_457}
	prices := []uint64{fixedpoint.PricePrecision, 15_000_000, 9_999_999}

	for _, fee := range fees {
		for _, srcPrice := range prices {
			for _, dstPrice := range prices {
				srcTok, dstTok, err := fixedpoint.SplitFeeTokens(fee, srcPrice, dstPrice)
				if err != nil {
					t.Fatalf("fee=%d: unexpected error: %v", fee, err)
				}
				srcVal, err := fixedpoint.MulDiv(srcTok, srcPrice, fixedpoint.PricePrecision)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				dstVal, err := fixedpoint.MulDiv(dstTok, dstPrice, fixedpoint.PricePrecision)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				total := srcVal + dstVal
				if total > fee || fee-total > 2 {
					t.Errorf("fee=%d src=%d dst=%d: reconverted value %d out of bounds",
						fee, srcPrice, dstPrice, total)
				}
			}
		}
	}
}

func TestSplitFeeTokens_ZeroFee(t *testing.T) {
	src, dst, err := fixedpoint.SplitFeeTokens(0, fixedpoint.PricePrecision, fixedpoint.PricePrecision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src != 0 || dst != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", src, dst)
	}
}
