package vault

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stokenvault/internal/event"
	"stokenvault/internal/fixedpoint"
	"stokenvault/internal/observability"
	"stokenvault/internal/token"
)

// Engine owns one vault's state and exposes every entrypoint. All public
// methods take the state lock; cooldowns and timelocks are wall-clock gates
// evaluated against the injected clock, never blocking waits. The engine
// itself never reads the wall clock.
type Engine struct {
	mu    sync.Mutex
	id    string
	state *State

	underlying token.Token
	shares     token.Minter

	sink    event.Sink
	auth    Authorizer
	clock   func() uint64
	peers   *Registry
	log     zerolog.Logger
	metrics *observability.Metrics
}

// Deps carries the external collaborators of an engine. Nil Sink, Auth,
// Clock and Metrics fall back to safe defaults.
type Deps struct {
	Underlying token.Token
	Shares     token.Minter
	Sink       event.Sink
	Auth       Authorizer
	Clock      func() uint64
	Peers      *Registry
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
}

func (d *Deps) fillDefaults() {
	if d.Sink == nil {
		d.Sink = event.NopSink{}
	}
	if d.Auth == nil {
		d.Auth = AllowAll{}
	}
	if d.Clock == nil {
		d.Clock = func() uint64 { return uint64(time.Now().Unix()) }
	}
}

// NewEngine validates cfg and builds a freshly initialized vault. The
// authorizer gates command entrypoints only; construction is operator-driven
// and does not consult it.
func NewEngine(id string, cfg Config, deps Deps) (*Engine, error) {
	deps.fillDefaults()

	if deps.Underlying == nil || deps.Shares == nil {
		return nil, CoreErrInitializationFailed
	}
	if cfg.Authority == "" || cfg.Oracle == "" || cfg.Manager == "" ||
		cfg.Processor == "" || cfg.Accountant == "" || cfg.AssetManager == "" {
		return nil, CoreErrInitializationFailed
	}
	if err := validateFees(cfg.DepositFeeBps, cfg.WithdrawFeeBps, cfg.ManagementBpsPerYear); err != nil {
		return nil, CoreErrInitializationFailed
	}
	if err := validateNewLimits(cfg.MaxTotalShares, cfg.MaxSharesPerUser, cfg.MaxTotalIdle, cfg.MinSharesToMint); err != nil {
		return nil, CoreErrInitializationFailed
	}
	if cfg.InitialPrice != nil && *cfg.InitialPrice == 0 {
		return nil, CoreErrInvalidPrice
	}

	now := deps.Clock()
	e := &Engine{
		id:         id,
		state:      newState(cfg, now),
		underlying: deps.Underlying,
		shares:     deps.Shares,
		sink:       deps.Sink,
		auth:       deps.Auth,
		clock:      deps.Clock,
		peers:      deps.Peers,
		log:        deps.Logger,
		metrics:    deps.Metrics,
	}

	e.emit(&event.VaultInitialized{
		Meta:            e.meta(now),
		UnderlyingAsset: deps.Underlying.Symbol(),
		Oracle:          cfg.Oracle,
		Manager:         cfg.Manager,
		Processor:       cfg.Processor,
		Accountant:      cfg.Accountant,
		AssetManager:    cfg.AssetManager,
		DepositFeeBps:   cfg.DepositFeeBps,
		WithdrawFeeBps:  cfg.WithdrawFeeBps,
		ManagementBps:   cfg.ManagementBpsPerYear,
	})
	e.observeLedger()
	return e, nil
}

// NewEngineFromState restores an engine from a persisted snapshot.
func NewEngineFromState(id string, state *State, deps Deps) (*Engine, error) {
	deps.fillDefaults()
	if deps.Underlying == nil || deps.Shares == nil || state == nil {
		return nil, CoreErrInitializationFailed
	}
	if state.Requests == nil {
		state.Requests = make(map[uint64]*WithdrawalRequest)
	}
	if state.Whitelist == nil {
		state.Whitelist = make(map[string]bool)
	}
	if state.Allowlist == nil {
		state.Allowlist = make(map[string]bool)
	}
	e := &Engine{
		id:         id,
		state:      state,
		underlying: deps.Underlying,
		shares:     deps.Shares,
		sink:       deps.Sink,
		auth:       deps.Auth,
		clock:      deps.Clock,
		peers:      deps.Peers,
		log:        deps.Logger,
		metrics:    deps.Metrics,
	}
	e.observeLedger()
	return e, nil
}

// Snapshot serializes the current state for persistence.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

func (e *Engine) meta(now uint64) event.Meta {
	return event.Meta{VaultID: e.id, Timestamp: now}
}

func (e *Engine) emit(ev event.Event) {
	e.sink.Publish(ev)
	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(e.id, ev.EventType().String()).Inc()
	}
}

// record logs the outcome of an entrypoint and bumps the op counters.
func (e *Engine) record(op string, err error) {
	if err != nil {
		if e.metrics != nil {
			e.metrics.OpsRejected.WithLabelValues(e.id, op, err.Error()).Inc()
		}
		e.log.Warn().Str("vault", e.id).Str("op", op).Err(err).Msg("operation rejected")
		return
	}
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(e.id, op).Inc()
	}
	e.log.Debug().Str("vault", e.id).Str("op", op).Msg("operation applied")
}

// observeLedger pushes the aggregate counters to the gauges. Callers hold
// the state lock or are still single-threaded in a constructor.
func (e *Engine) observeLedger() {
	if e.metrics == nil {
		return
	}
	s := e.state
	e.metrics.TotalShares.WithLabelValues(e.id).Set(float64(s.TotalShares))
	e.metrics.TotalIdle.WithLabelValues(e.id).Set(float64(s.TotalIdle))
	e.metrics.WithdrawalsPending.WithLabelValues(e.id).Set(float64(s.TotalWithdrawalsPending))
	e.metrics.SharesInCustody.WithLabelValues(e.id).Set(float64(s.SharesInCustody))
	e.metrics.Price.WithLabelValues(e.id).Set(float64(s.Price))
}

func validateFees(depositBps, withdrawBps, managementBps uint32) error {
	if depositBps > fixedpoint.MaxFeeBps || withdrawBps > fixedpoint.MaxFeeBps {
		return GovErrInvalidFee
	}
	if managementBps > fixedpoint.MaxManagementFeeBpsPerYear {
		return GovErrInvalidFee
	}
	return nil
}

func validateNewLimits(maxTotalShares, maxSharesPerUser, maxTotalIdle, minSharesToMint *uint64) error {
	if maxTotalShares != nil && *maxTotalShares > fixedpoint.MaxAllowedTotalShares {
		return GovErrLimitExceedsMaximum
	}
	if maxSharesPerUser != nil && *maxSharesPerUser > fixedpoint.MaxAllowedSharesPerUser {
		return GovErrLimitExceedsMaximum
	}
	if maxTotalIdle != nil && *maxTotalIdle > fixedpoint.MaxAllowedTotalIdle {
		return GovErrLimitExceedsMaximum
	}
	if minSharesToMint != nil && *minSharesToMint > fixedpoint.MaxAllowedMinShares {
		return GovErrLimitExceedsMaximum
	}
	if maxTotalShares != nil && maxSharesPerUser != nil && *maxSharesPerUser > *maxTotalShares {
		return GovErrInvalidLimit
	}
	if maxSharesPerUser != nil && minSharesToMint != nil && *minSharesToMint > *maxSharesPerUser {
		return GovErrInvalidLimit
	}
	return nil
}

// ============================================================================
// Read-only views (PeerVault surface)
// ============================================================================

func (e *Engine) ID() string { return e.id }

func (e *Engine) UnderlyingAsset() string { return e.underlying.Symbol() }

func (e *Engine) Price() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Price
}

func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Paused
}

func (e *Engine) Decimals() uint32 { return e.shares.Decimals() }

func (e *Engine) WhitelistEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.WhitelistEnabled
}

func (e *Engine) IsWhitelisted(addr string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Whitelist[addr]
}

func (e *Engine) MinSharesToMint() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Limits.MinSharesToMint
}

func (e *Engine) Balance(addr string) uint64 { return e.shares.Balance(addr) }

func (e *Engine) AssetManager() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Roles.AssetManager
}

func (e *Engine) Accountant() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Roles.Accountant
}

func (e *Engine) TotalShares() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TotalShares
}

// Request returns a copy of a withdrawal request for the query surface.
func (e *Engine) Request(id uint64) (WithdrawalRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.state.Requests[id]
	if !ok {
		return WithdrawalRequest{}, false
	}
	return *req, true
}

// Ledger returns a copy of the aggregate counters for the query surface.
func (e *Engine) Ledger() (price, totalShares, totalIdle, withdrawalsPending, sharesInCustody uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	return s.Price, s.TotalShares, s.TotalIdle, s.TotalWithdrawalsPending, s.SharesInCustody
}
