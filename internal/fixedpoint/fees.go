package fixedpoint

import "math/big"

// divRoundHalfEven divides num by denom rounding half to even. num must be
// non-negative and denom positive.
func divRoundHalfEven(num, denom *big.Int) *big.Int {
	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(num, denom, rem)

	rem.Lsh(rem, 1)
	switch rem.Cmp(denom) {
	case 1:
		quo.Add(quo, big.NewInt(1))
	case 0:
		if quo.Bit(0) == 1 {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return quo
}

// ApplyFee splits amount into (afterFee, fee) for the given basis-point rate.
// The fee rounds half to even; a nonzero rate on a nonzero amount never
// produces a zero fee (MinFeeThreshold floor).
func ApplyFee(amount uint64, feeBps uint32) (afterFee, fee uint64, err error) {
	if feeBps > MaxFeeBps {
		return 0, 0, ErrInvalidFee
	}
	if feeBps == 0 || amount == 0 {
		return amount, 0, nil
	}

	num := getWide()
	defer putWide(num)
	num.SetUint64(amount)
	num.Mul(num, new(big.Int).SetUint64(uint64(feeBps)))

	feeWide := divRoundHalfEven(num, new(big.Int).SetUint64(uint64(BpsPrecision)))
	fee, err = toUint64(feeWide)
	if err != nil {
		return 0, 0, err
	}
	if fee < MinFeeThreshold {
		fee = MinFeeThreshold
	}
	if fee > amount {
		return 0, 0, ErrMathOverflow
	}
	return amount - fee, fee, nil
}

// ManagementFee returns the shares to mint so the accountant ends up owning
// the pro-rata annualized fee of the grown supply:
//
//	fee = supply * r / (1 + r), r = bps * elapsed / (BpsPrecision * SecondsPerYear)
//
// expressed in integers as supply*bps*elapsed / (BpsPrecision*SecondsPerYear + bps*elapsed).
func ManagementFee(totalSupply uint64, annualBps uint32, elapsedSecs uint64) (uint64, error) {
	if annualBps > MaxManagementFeeBpsPerYear {
		return 0, ErrInvalidFee
	}
	if totalSupply == 0 || annualBps == 0 || elapsedSecs == 0 {
		return 0, nil
	}

	rateNum := getWide()
	defer putWide(rateNum)
	rateNum.SetUint64(uint64(annualBps))
	rateNum.Mul(rateNum, new(big.Int).SetUint64(elapsedSecs))

	denom := getWide()
	defer putWide(denom)
	denom.SetUint64(uint64(BpsPrecision))
	denom.Mul(denom, new(big.Int).SetUint64(SecondsPerYear))
	denom.Add(denom, rateNum)

	num := getWide()
	defer putWide(num)
	num.SetUint64(totalSupply)
	num.Mul(num, rateNum)
	num.Quo(num, denom)

	return toUint64(num)
}

// PriceDeviationBps measures |newPrice - oldPrice| relative to oldPrice in
// basis points, saturating at the maximum uint32 instead of overflowing.
func PriceDeviationBps(oldPrice, newPrice uint64) (uint32, error) {
	if oldPrice == 0 {
		return 0, ErrInvalidPrice
	}

	var diff uint64
	if newPrice >= oldPrice {
		diff = newPrice - oldPrice
	} else {
		diff = oldPrice - newPrice
	}
	if diff == 0 {
		return 0, nil
	}

	wide := getWide()
	defer putWide(wide)
	wide.SetUint64(diff)
	wide.Mul(wide, new(big.Int).SetUint64(uint64(BpsPrecision)))
	wide.Quo(wide, new(big.Int).SetUint64(oldPrice))

	const maxUint32 = 1<<32 - 1
	if !wide.IsUint64() || wide.Uint64() > maxUint32 {
		return maxUint32, nil
	}
	return uint32(wide.Uint64()), nil
}

// ApplyBasisPoints computes amount * bps / BpsPrecision, truncating.
func ApplyBasisPoints(amount uint64, bps uint32) (uint64, error) {
	return MulDiv(amount, uint64(bps), uint64(BpsPrecision))
}

// SplitFeeTokens halves a swap fee denominated in underlying value and
// converts each half into share tokens at the respective vault's price. The
// destination side absorbs the odd unit so the halves always sum to the fee.
func SplitFeeTokens(feeAmount, sourcePrice, destPrice uint64) (sourceFeeTokens, destFeeTokens uint64, err error) {
	if feeAmount == 0 {
		return 0, 0, nil
	}

	sourceHalf := feeAmount / 2
	destHalf := feeAmount - sourceHalf

	sourceFeeTokens, err = MulDiv(sourceHalf, PricePrecision, sourcePrice)
	if err != nil {
		return 0, 0, err
	}
	destFeeTokens, err = MulDiv(destHalf, PricePrecision, destPrice)
	if err != nil {
		return 0, 0, err
	}
	return sourceFeeTokens, destFeeTokens, nil
}
