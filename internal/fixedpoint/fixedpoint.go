package fixedpoint

import (
	"math/big"
	"sync"
)

// Error is the closed error set of the fixed-point module.
type Error int

const (
	ErrInvalidPrice Error = iota + 1
	ErrInvalidAmount
	ErrInvalidFee
	ErrMathOverflow
	ErrZeroAmountCalculated
)

func (e Error) Error() string {
	switch e {
	case ErrInvalidPrice:
		return "invalid price"
	case ErrInvalidAmount:
		return "invalid amount"
	case ErrInvalidFee:
		return "invalid fee"
	case ErrMathOverflow:
		return "math overflow"
	case ErrZeroAmountCalculated:
		return "calculated amount rounds to zero"
	default:
		return "unknown fixed-point error"
	}
}

// Intermediate products of two uint64 operands need up to 128 bits; all wide
// arithmetic goes through pooled big.Ints.
var widePool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getWide() *big.Int {
	return widePool.Get().(*big.Int)
}

func putWide(v *big.Int) {
	v.SetInt64(0)
	widePool.Put(v)
}

func pow10(exp uint32) *big.Int {
	p := getWide()
	return p.Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// toUint64 narrows a wide result back to uint64, rejecting values that do not
// fit.
func toUint64(v *big.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrMathOverflow
	}
	return v.Uint64(), nil
}

// AmountToShares converts an underlying-asset amount to share tokens at the
// given fixed-point price, normalizing for differing token decimal counts.
// Multiplication precedes division so no precision is lost before the final
// truncation.
func AmountToShares(amount, price uint64, underlyingDecimals, sharesDecimals uint32) (uint64, error) {
	if price == 0 {
		return 0, ErrInvalidPrice
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	normalized := getWide()
	defer putWide(normalized)
	normalized.SetUint64(amount)

	if sharesDecimals >= underlyingDecimals {
		scale := pow10(sharesDecimals - underlyingDecimals)
		normalized.Mul(normalized, scale)
		putWide(scale)
	} else {
		scale := pow10(underlyingDecimals - sharesDecimals)
		normalized.Quo(normalized, scale)
		putWide(scale)
	}

	// shares = normalized * PricePrecision / price
	normalized.Mul(normalized, new(big.Int).SetUint64(PricePrecision))
	normalized.Quo(normalized, new(big.Int).SetUint64(price))

	shares, err := toUint64(normalized)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, ErrZeroAmountCalculated
	}
	return shares, nil
}

// SharesToAmount is the algebraic inverse of AmountToShares with the same
// error policy.
func SharesToAmount(shares, price uint64, underlyingDecimals, sharesDecimals uint32) (uint64, error) {
	if price == 0 {
		return 0, ErrInvalidPrice
	}
	if shares == 0 {
		return 0, ErrInvalidAmount
	}

	// amount = shares * price / PricePrecision, then decimal adjustment
	wide := getWide()
	defer putWide(wide)
	wide.SetUint64(shares)
	wide.Mul(wide, new(big.Int).SetUint64(price))
	wide.Quo(wide, new(big.Int).SetUint64(PricePrecision))

	if underlyingDecimals >= sharesDecimals {
		scale := pow10(underlyingDecimals - sharesDecimals)
		wide.Mul(wide, scale)
		putWide(scale)
	} else {
		scale := pow10(sharesDecimals - underlyingDecimals)
		wide.Quo(wide, scale)
		putWide(scale)
	}

	amount, err := toUint64(wide)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrZeroAmountCalculated
	}
	return amount, nil
}

// MulDiv computes a * b / denom in wide precision.
func MulDiv(a, b, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrInvalidPrice
	}

	wide := getWide()
	defer putWide(wide)
	wide.SetUint64(a)
	wide.Mul(wide, new(big.Int).SetUint64(b))
	wide.Quo(wide, new(big.Int).SetUint64(denom))

	return toUint64(wide)
}
