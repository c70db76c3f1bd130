package vault

import (
	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
)

// ============================================================================
// Roles
// ============================================================================

// ProposeRoles parks a role change behind the role-change timelock
// (manager only). Nil fields stay unchanged on acceptance.
func (e *Engine) ProposeRoles(changes RoleChanges) (err error) {
	defer func() { e.record("propose_roles", err) }()

	if changes.Manager == nil && changes.Processor == nil && changes.Accountant == nil &&
		changes.Oracle == nil && changes.AssetManager == nil {
		return GovErrInvalidRole
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingRoles != nil {
		return GovErrTimelockActive
	}

	now := e.clock()
	s.PendingRoles = newPending(changes, now)

	e.emit(&event.RolesChangePending{
		Meta:            e.meta(now),
		Manager:         s.Roles.Manager,
		NewManager:      changes.Manager,
		NewProcessor:    changes.Processor,
		NewAccountant:   changes.Accountant,
		NewOracle:       changes.Oracle,
		NewAssetManager: changes.AssetManager,
		EffectiveAt:     now + s.Cooldowns.RoleChangeSecs,
	})
	return nil
}

// AcceptRoles applies a pending role change after its cooldown.
func (e *Engine) AcceptRoles() (err error) {
	defer func() { e.record("accept_roles", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingRoles == nil {
		return GovErrNoPendingChange
	}
	now := e.clock()
	if !s.PendingRoles.ready(now, s.Cooldowns.RoleChangeSecs) {
		return GovErrTimelockActive
	}

	old := s.Roles
	changes := s.PendingRoles.Change
	if changes.Manager != nil {
		s.Roles.Manager = *changes.Manager
	}
	if changes.Processor != nil {
		s.Roles.Processor = *changes.Processor
	}
	if changes.Accountant != nil {
		s.Roles.Accountant = *changes.Accountant
	}
	if changes.Oracle != nil {
		s.Roles.Oracle = *changes.Oracle
	}
	if changes.AssetManager != nil {
		s.Roles.AssetManager = *changes.AssetManager
	}
	s.PendingRoles = nil

	e.emit(&event.RolesUpdated{
		Meta:            e.meta(now),
		OldManager:      old.Manager,
		NewManager:      s.Roles.Manager,
		OldProcessor:    old.Processor,
		NewProcessor:    s.Roles.Processor,
		OldAccountant:   old.Accountant,
		NewAccountant:   s.Roles.Accountant,
		OldOracle:       old.Oracle,
		NewOracle:       s.Roles.Oracle,
		OldAssetManager: old.AssetManager,
		NewAssetManager: s.Roles.AssetManager,
	})
	return nil
}

// ============================================================================
// Fees
// ============================================================================

// ProposeFees parks a complete fee set behind the fee-change timelock
// (manager only).
func (e *Engine) ProposeFees(changes FeeChanges) (err error) {
	defer func() { e.record("propose_fees", err) }()

	if feeErr := validateFees(changes.DepositBps, changes.WithdrawBps, changes.ManagementBpsPerYear); feeErr != nil {
		return GovErrInvalidFee
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingFees != nil {
		return GovErrTimelockActive
	}
	if changes.DepositBps == s.Fees.DepositBps &&
		changes.WithdrawBps == s.Fees.WithdrawBps &&
		changes.ManagementBpsPerYear == s.Fees.ManagementBpsPerYear {
		return GovErrNoChanges
	}

	now := e.clock()
	s.PendingFees = newPending(changes, now)

	e.emit(&event.FeesChangePending{
		Meta:             e.meta(now),
		Manager:          s.Roles.Manager,
		NewDepositBps:    changes.DepositBps,
		NewWithdrawBps:   changes.WithdrawBps,
		NewManagementBps: changes.ManagementBpsPerYear,
		OldDepositBps:    s.Fees.DepositBps,
		OldWithdrawBps:   s.Fees.WithdrawBps,
		OldManagementBps: s.Fees.ManagementBpsPerYear,
		EffectiveAt:      now + s.Cooldowns.FeeChangeSecs,
	})
	return nil
}

// AcceptFees applies a pending fee change after its cooldown.
func (e *Engine) AcceptFees() (err error) {
	defer func() { e.record("accept_fees", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingFees == nil {
		return GovErrNoPendingChange
	}
	now := e.clock()
	if !s.PendingFees.ready(now, s.Cooldowns.FeeChangeSecs) {
		return GovErrTimelockActive
	}

	old := s.Fees
	changes := s.PendingFees.Change
	s.Fees = Fees{
		DepositBps:           changes.DepositBps,
		WithdrawBps:          changes.WithdrawBps,
		ManagementBpsPerYear: changes.ManagementBpsPerYear,
	}
	s.PendingFees = nil

	e.emit(&event.FeesUpdated{
		Meta:             e.meta(now),
		OldDepositBps:    old.DepositBps,
		NewDepositBps:    s.Fees.DepositBps,
		OldWithdrawBps:   old.WithdrawBps,
		NewWithdrawBps:   s.Fees.WithdrawBps,
		OldManagementBps: old.ManagementBpsPerYear,
		NewManagementBps: s.Fees.ManagementBpsPerYear,
	})
	return nil
}

// ============================================================================
// Limits
// ============================================================================

// ProposeLimits parks a limits diff behind the config timelock (manager
// only). Provided fields must pass their absolute ceilings and stay mutually
// consistent with whatever current values they are combined with.
func (e *Engine) ProposeLimits(changes LimitChanges) (err error) {
	defer func() { e.record("propose_limits", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if limitErr := validateNewLimits(changes.MaxTotalShares, changes.MaxSharesPerUser, changes.MaxTotalIdle, changes.MinSharesToMint); limitErr != nil {
		return limitErr
	}

	effectiveTotal := s.Limits.MaxTotalShares
	if changes.MaxTotalShares != nil {
		effectiveTotal = *changes.MaxTotalShares
	}
	effectivePerUser := s.Limits.MaxSharesPerUser
	if changes.MaxSharesPerUser != nil {
		effectivePerUser = *changes.MaxSharesPerUser
	}
	if effectivePerUser > effectiveTotal {
		return GovErrInvalidLimit
	}

	if changes.MaxDeviationBps != nil && *changes.MaxDeviationBps > fixedpoint.BpsPrecision {
		return GovErrInvalidLimit
	}

	if s.PendingLimits != nil {
		return GovErrTimelockActive
	}

	provided := false
	unchanged := true
	if changes.MaxTotalShares != nil {
		provided = true
		unchanged = unchanged && *changes.MaxTotalShares == s.Limits.MaxTotalShares
	}
	if changes.MaxSharesPerUser != nil {
		provided = true
		unchanged = unchanged && *changes.MaxSharesPerUser == s.Limits.MaxSharesPerUser
	}
	if changes.MaxTotalIdle != nil {
		provided = true
		unchanged = unchanged && *changes.MaxTotalIdle == s.Limits.MaxTotalIdle
	}
	if changes.MaxDeviationBps != nil {
		provided = true
		unchanged = unchanged && *changes.MaxDeviationBps == s.Limits.MaxDeviationBps
	}
	if changes.MinSharesToMint != nil {
		provided = true
		unchanged = unchanged && *changes.MinSharesToMint == s.Limits.MinSharesToMint
	}
	if !provided || unchanged {
		return GovErrNoChanges
	}

	now := e.clock()
	s.PendingLimits = newPending(changes, now)

	e.emit(&event.LimitsChangePending{
		Meta:               e.meta(now),
		Manager:            s.Roles.Manager,
		NewMaxTotalShares:  changes.MaxTotalShares,
		NewMaxPerUser:      changes.MaxSharesPerUser,
		NewMaxTotalIdle:    changes.MaxTotalIdle,
		NewMaxDeviationBps: changes.MaxDeviationBps,
		NewMinSharesToMint: changes.MinSharesToMint,
		EffectiveAt:        now + s.Cooldowns.ConfigSecs,
	})
	return nil
}

// AcceptLimits applies a pending limits change after the config cooldown.
func (e *Engine) AcceptLimits() (err error) {
	defer func() { e.record("accept_limits", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingLimits == nil {
		return GovErrNoPendingChange
	}
	now := e.clock()
	if !s.PendingLimits.ready(now, s.Cooldowns.ConfigSecs) {
		return GovErrTimelockActive
	}

	changes := s.PendingLimits.Change
	if changes.MaxTotalShares != nil {
		s.Limits.MaxTotalShares = *changes.MaxTotalShares
	}
	if changes.MaxSharesPerUser != nil {
		s.Limits.MaxSharesPerUser = *changes.MaxSharesPerUser
	}
	if changes.MaxTotalIdle != nil {
		s.Limits.MaxTotalIdle = *changes.MaxTotalIdle
	}
	if changes.MaxDeviationBps != nil {
		s.Limits.MaxDeviationBps = *changes.MaxDeviationBps
	}
	if changes.MinSharesToMint != nil {
		s.Limits.MinSharesToMint = *changes.MinSharesToMint
	}
	s.PendingLimits = nil

	e.emit(&event.LimitsUpdated{
		Meta:             e.meta(now),
		MaxTotalShares:   s.Limits.MaxTotalShares,
		MaxSharesPerUser: s.Limits.MaxSharesPerUser,
		MaxTotalIdle:     s.Limits.MaxTotalIdle,
		MaxDeviationBps:  s.Limits.MaxDeviationBps,
		MinSharesToMint:  s.Limits.MinSharesToMint,
	})
	return nil
}

// ============================================================================
// Whitelist toggle and membership
// ============================================================================

// ProposeWhitelist parks a whitelist toggle behind the config timelock
// (manager only).
func (e *Engine) ProposeWhitelist(enabled bool) (err error) {
	defer func() { e.record("propose_whitelist", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingWhitelist != nil {
		return GovErrTimelockActive
	}
	if s.WhitelistEnabled == enabled {
		return GovErrNoChanges
	}

	now := e.clock()
	s.PendingWhitelist = newPending(WhitelistChange{Enabled: enabled}, now)

	e.emit(&event.WhitelistChangePending{
		Meta:        e.meta(now),
		Manager:     s.Roles.Manager,
		Enabled:     enabled,
		EffectiveAt: now + s.Cooldowns.ConfigSecs,
	})
	return nil
}

// AcceptWhitelist applies a pending whitelist toggle after the config
// cooldown.
func (e *Engine) AcceptWhitelist() (err error) {
	defer func() { e.record("accept_whitelist", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingWhitelist == nil {
		return GovErrNoPendingChange
	}
	now := e.clock()
	if !s.PendingWhitelist.ready(now, s.Cooldowns.ConfigSecs) {
		return GovErrTimelockActive
	}

	s.WhitelistEnabled = s.PendingWhitelist.Change.Enabled
	s.PendingWhitelist = nil

	e.emit(&event.WhitelistToggled{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		Enabled: s.WhitelistEnabled,
	})
	return nil
}

// AddUserToWhitelist adds a membership entry (manager only, whitelist must
// be enabled).
func (e *Engine) AddUserToWhitelist(user string) (err error) {
	defer func() { e.record("add_user_to_whitelist", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return CoreErrUnauthorized
	}
	if !s.WhitelistEnabled {
		return CoreErrWhitelistNotEnabled
	}
	if s.Whitelist[user] {
		return CoreErrUserAlreadyWhitelisted
	}
	s.Whitelist[user] = true

	now := e.clock()
	e.emit(&event.UserWhitelisted{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		User:    user,
	})
	return nil
}

// RemoveUserFromWhitelist removes a membership entry (manager only,
// whitelist must be enabled).
func (e *Engine) RemoveUserFromWhitelist(user string) (err error) {
	defer func() { e.record("remove_user_from_whitelist", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return CoreErrUnauthorized
	}
	if !s.WhitelistEnabled {
		return CoreErrWhitelistNotEnabled
	}
	if !s.Whitelist[user] {
		return CoreErrUserNotWhitelisted
	}
	s.Whitelist[user] = false

	now := e.clock()
	e.emit(&event.UserRemovedFromWhitelist{
		Meta:    e.meta(now),
		Manager: s.Roles.Manager,
		User:    user,
	})
	return nil
}

// ============================================================================
// Cooldowns
// ============================================================================

// ProposeCooldowns parks a cooldown diff behind the config timelock
// (manager only). A cooldown proposal is blocked while any other category
// has a change in flight so it cannot shorten a running timelock.
func (e *Engine) ProposeCooldowns(changes CooldownChanges) (err error) {
	defer func() { e.record("propose_cooldowns", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.anyGovernancePending() {
		return GovErrTimelockActive
	}
	if s.PendingCooldowns != nil {
		return GovErrTimelockActive
	}

	valid := func(v *uint64) bool {
		return v == nil || (*v >= fixedpoint.MinCooldownSecs && *v <= fixedpoint.MaxCooldownSecs)
	}
	if !valid(changes.PriceUpdateSecs) || !valid(changes.PriceAcceptanceSecs) ||
		!valid(changes.ConfigSecs) || !valid(changes.EmergencySecs) ||
		!valid(changes.RoleChangeSecs) || !valid(changes.FeeChangeSecs) {
		return GovErrInvalidCooldown
	}

	provided := false
	unchanged := true
	check64 := func(v *uint64, current uint64) {
		if v != nil {
			provided = true
			unchanged = unchanged && *v == current
		}
	}
	check64(changes.PriceUpdateSecs, s.Cooldowns.PriceUpdateSecs)
	check64(changes.PriceAcceptanceSecs, s.Cooldowns.PriceAcceptanceSecs)
	check64(changes.ConfigSecs, s.Cooldowns.ConfigSecs)
	check64(changes.EmergencySecs, s.Cooldowns.EmergencySecs)
	check64(changes.RoleChangeSecs, s.Cooldowns.RoleChangeSecs)
	check64(changes.FeeChangeSecs, s.Cooldowns.FeeChangeSecs)
	if !provided || unchanged {
		return GovErrNoChanges
	}

	now := e.clock()
	s.PendingCooldowns = newPending(changes, now)

	e.emit(&event.CooldownsChangePending{
		Meta:                   e.meta(now),
		Manager:                s.Roles.Manager,
		NewPriceUpdateSecs:     changes.PriceUpdateSecs,
		NewPriceAcceptanceSecs: changes.PriceAcceptanceSecs,
		NewConfigSecs:          changes.ConfigSecs,
		NewEmergencySecs:       changes.EmergencySecs,
		NewRoleChangeSecs:      changes.RoleChangeSecs,
		NewFeeChangeSecs:       changes.FeeChangeSecs,
		EffectiveAt:            now + s.Cooldowns.ConfigSecs,
	})
	return nil
}

// AcceptCooldowns applies a pending cooldown change after the config
// cooldown that was active at proposal time.
func (e *Engine) AcceptCooldowns() (err error) {
	defer func() { e.record("accept_cooldowns", err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state

	if authErr := e.auth.RequireAuth(s.Roles.Manager); authErr != nil {
		return GovErrUnauthorized
	}
	if s.PendingCooldowns == nil {
		return GovErrNoPendingChange
	}
	now := e.clock()
	if !s.PendingCooldowns.ready(now, s.Cooldowns.ConfigSecs) {
		return GovErrTimelockActive
	}

	changes := s.PendingCooldowns.Change
	if changes.PriceUpdateSecs != nil {
		s.Cooldowns.PriceUpdateSecs = *changes.PriceUpdateSecs
	}
	if changes.PriceAcceptanceSecs != nil {
		s.Cooldowns.PriceAcceptanceSecs = *changes.PriceAcceptanceSecs
	}
	if changes.ConfigSecs != nil {
		s.Cooldowns.ConfigSecs = *changes.ConfigSecs
	}
	if changes.EmergencySecs != nil {
		s.Cooldowns.EmergencySecs = *changes.EmergencySecs
	}
	if changes.RoleChangeSecs != nil {
		s.Cooldowns.RoleChangeSecs = *changes.RoleChangeSecs
	}
	if changes.FeeChangeSecs != nil {
		s.Cooldowns.FeeChangeSecs = *changes.FeeChangeSecs
	}
	s.PendingCooldowns = nil

	e.emit(&event.CooldownsUpdated{
		Meta:                e.meta(now),
		PriceUpdateSecs:     s.Cooldowns.PriceUpdateSecs,
		PriceAcceptanceSecs: s.Cooldowns.PriceAcceptanceSecs,
		ConfigSecs:          s.Cooldowns.ConfigSecs,
		EmergencySecs:       s.Cooldowns.EmergencySecs,
		RoleChangeSecs:      s.Cooldowns.RoleChangeSecs,
		FeeChangeSecs:       s.Cooldowns.FeeChangeSecs,
	})
	return nil
}
