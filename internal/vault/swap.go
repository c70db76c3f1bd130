package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
)

// SwapTokens atomically exchanges the caller's shares in this vault for
// shares of a peer vault with the same underlying and asset manager. The
// exchange is valued through the underlying: source shares at the source
// price, destination shares at the destination price. The fee is taken in
// underlying value and split between both accountants, each half converted
// at that vault's own price. Destination supply accounting goes through the
// peer's total-shares write because mints on its behalf never touch it.
//
// Swaps are serialized process-wide via the registry so two engines never
// take each other's state locks in opposite orders.
func (e *Engine) SwapTokens(caller, destVaultID string, amount uint64, feeBps uint32, minAmountOut uint64) (err error) {
	defer func() { e.record("swap_tokens", err) }()

	if amount == 0 {
		return SwapErrInvalidAmount
	}
	if feeBps > fixedpoint.MaxSwapFeeBps {
		return SwapErrInvalidFee
	}
	if destVaultID == e.id {
		return SwapErrSameVault
	}
	if authErr := e.auth.RequireAuth(caller); authErr != nil {
		return SwapErrUnauthorized
	}
	if e.peers == nil {
		return SwapErrPeerUnavailable
	}
	dest, ok := e.peers.Lookup(destVaultID)
	if !ok {
		return SwapErrPeerUnavailable
	}

	unlock := e.peers.lockSwaps()
	defer unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if e.underlying.Symbol() != dest.UnderlyingAsset() {
		return SwapErrUnderlyingMismatch
	}
	if s.Roles.AssetManager != dest.AssetManager() {
		return SwapErrAssetManagerMismatch
	}
	if e.shares.Decimals() != dest.Decimals() {
		return SwapErrDecimalMismatch
	}
	if s.Paused || dest.IsPaused() {
		return SwapErrVaultPaused
	}
	if s.WhitelistEnabled && !s.Whitelist[caller] {
		return SwapErrNotWhitelisted
	}
	if dest.WhitelistEnabled() && !dest.IsWhitelisted(caller) {
		return SwapErrNotWhitelisted
	}

	callerShares := e.shares.Balance(caller)
	if amount > callerShares {
		return SwapErrInvalidAmount
	}
	remaining := callerShares - amount
	if s.Limits.MinSharesToMint > 0 && remaining > 0 && remaining < s.Limits.MinSharesToMint {
		return SwapErrMinimumSharesNotMet
	}

	srcPrice := s.Price
	destPrice := dest.Price()
	if destPrice == 0 {
		return SwapErrMathOverflow
	}

	underlyingValue, mathErr := fixedpoint.MulDiv(amount, srcPrice, fixedpoint.PricePrecision)
	if mathErr != nil {
		return SwapErrMathOverflow
	}
	feeAmount, mathErr := fixedpoint.ApplyBasisPoints(underlyingValue, feeBps)
	if mathErr != nil {
		return SwapErrMathOverflow
	}
	valueAfterFee := underlyingValue - feeAmount

	destAmount, mathErr := fixedpoint.MulDiv(valueAfterFee, fixedpoint.PricePrecision, destPrice)
	if mathErr != nil {
		return SwapErrMathOverflow
	}
	srcFeeTokens, destFeeTokens, mathErr := fixedpoint.SplitFeeTokens(feeAmount, srcPrice, destPrice)
	if mathErr != nil {
		return SwapErrMathOverflow
	}

	if destAmount < minAmountOut {
		return SwapErrSlippageNotMet
	}
	if destMin := dest.MinSharesToMint(); destMin > 0 {
		destFinal, ok := add64(dest.Balance(caller), destAmount)
		if !ok {
			return SwapErrMathOverflow
		}
		if destFinal > 0 && destFinal < destMin {
			return SwapErrMinimumSharesNotMet
		}
	}

	destTotalBefore := dest.TotalShares()

	if burnErr := e.shares.Burn(caller, amount); burnErr != nil {
		return SwapErrInvalidAmount
	}
	if mintErr := dest.MintCore(e.id, caller, destAmount); mintErr != nil {
		// Nothing settled on the peer yet, so the burn can be undone.
		if compErr := e.shares.Mint(caller, amount); compErr != nil {
			e.log.Error().Str("vault", e.id).Str("caller", caller).
				Uint64("amount", amount).Err(compErr).
				Msg("swap compensation mint failed")
		}
		return SwapErrPeerUnavailable
	}
	if srcFeeTokens > 0 {
		if mintErr := e.shares.Mint(s.Roles.Accountant, srcFeeTokens); mintErr != nil {
			return SwapErrMathOverflow
		}
	}
	if destFeeTokens > 0 {
		if mintErr := dest.MintCore(e.id, dest.Accountant(), destFeeTokens); mintErr != nil {
			return SwapErrPeerUnavailable
		}
	}

	newTotal, ok := sub64(s.TotalShares, amount)
	if !ok {
		return SwapErrMathOverflow
	}
	newTotal, ok = add64(newTotal, srcFeeTokens)
	if !ok {
		return SwapErrMathOverflow
	}
	s.TotalShares = newTotal

	destTotal, ok := add64(destTotalBefore, destAmount)
	if !ok {
		return SwapErrMathOverflow
	}
	destTotal, ok = add64(destTotal, destFeeTokens)
	if !ok {
		return SwapErrMathOverflow
	}
	if writeErr := dest.WriteVaultTotalShares(e.id, destTotal); writeErr != nil {
		return SwapErrPeerUnavailable
	}

	now := e.clock()
	e.emit(&event.SwapExecuted{
		Meta:             e.meta(now),
		Caller:           caller,
		DestinationVault: destVaultID,
		SourceAmount:     amount,
		DestAmount:       destAmount,
		SourcePrice:      srcPrice,
		DestPrice:        destPrice,
		ValueAfterFee:    valueAfterFee,
		FeeBps:           feeBps,
		FeeAmount:        feeAmount,
		TotalFeeShares:   srcFeeTokens + destFeeTokens,
	})
	e.observeLedger()
	return nil
}

// MintCore mints shares on behalf of an allow-listed peer vault. Total
// shares is left untouched; the peer reconciles supply afterwards through
// WriteVaultTotalShares so one swap settles the counter exactly once.
func (e *Engine) MintCore(mint, to string, amount uint64) (err error) {
	defer func() { e.record("mint_core", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if !s.Allowlist[mint] {
		return AllowlistErrNotInAllowlist
	}
	if s.Paused {
		return AllowlistErrVaultPaused
	}
	if mintErr := e.shares.Mint(to, amount); mintErr != nil {
		return AllowlistErrPeerUnavailable
	}

	now := e.clock()
	e.emit(&event.AllowlistMinted{
		Meta:   e.meta(now),
		Mint:   mint,
		To:     to,
		Amount: amount,
	})
	return nil
}

// WriteVaultTotalShares overwrites the supply counter on behalf of an
// allow-listed peer settling a swap.
func (e *Engine) WriteVaultTotalShares(mint string, shares uint64) (err error) {
	defer func() { e.record("write_vault_total_shares", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if !s.Allowlist[mint] {
		return AllowlistErrNotInAllowlist
	}
	if s.Paused {
		return AllowlistErrVaultPaused
	}
	s.TotalShares = shares

	now := e.clock()
	e.emit(&event.TotalSharesWritten{
		Meta:   e.meta(now),
		Mint:   mint,
		Shares: shares,
	})
	e.observeLedger()
	return nil
}

// AcceptAllowlistMint approves a peer vault as a minter (manager only). The
// peer must share this vault's asset manager.
func (e *Engine) AcceptAllowlistMint(peerID string) (err error) {
	defer func() { e.record("accept_allowlist_mint", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return AllowlistErrUnauthorized
	}
	if e.peers == nil {
		return AllowlistErrPeerUnavailable
	}
	peer, ok := e.peers.Lookup(peerID)
	if !ok {
		return AllowlistErrPeerUnavailable
	}
	if peer.AssetManager() != s.Roles.AssetManager {
		return AllowlistErrAssetManagerMismatch
	}
	s.Allowlist[peerID] = true

	now := e.clock()
	e.emit(&event.AllowlistMintAccepted{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		Mint:    peerID,
	})
	return nil
}

// CancelAllowlistMint revokes a peer vault's mint approval (manager only).
func (e *Engine) CancelAllowlistMint(peerID string) (err error) {
	defer func() { e.record("cancel_allowlist_mint", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return AllowlistErrUnauthorized
	}
	if !s.Allowlist[peerID] {
		return AllowlistErrNotInAllowlist
	}
	delete(s.Allowlist, peerID)

	now := e.clock()
	e.emit(&event.AllowlistMintCancelled{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		Mint:    peerID,
	})
	return nil
}
