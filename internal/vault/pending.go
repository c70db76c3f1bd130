package vault

// PendingChange is one proposed governance change of any category, parked
// until its category cooldown elapses. At most one instance per category
// exists at a time.
type PendingChange[T any] struct {
	Change     T      `json:"change"`
	ProposedAt uint64 `json:"proposed_at"`
}

func newPending[T any](change T, now uint64) *PendingChange[T] {
	return &PendingChange[T]{Change: change, ProposedAt: now}
}

// ready reports whether the category cooldown has elapsed for p.
func (p *PendingChange[T]) ready(now, cooldownSecs uint64) bool {
	return now >= p.ProposedAt+cooldownSecs
}

// anyGovernancePending reports whether any non-cooldown category has a change
// in flight. Cooldown proposals are blocked while one exists so a proposal
// cannot shorten a timelock that is already running.
func (s *State) anyGovernancePending() bool {
	return s.PendingRoles != nil ||
		s.PendingFees != nil ||
		s.PendingLimits != nil ||
		s.PendingWhitelist != nil
}
