package ingestion

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"stokenvault/internal/event"
	"stokenvault/internal/observability"
	"stokenvault/internal/token"
	"stokenvault/internal/vault"
)

// Envelope is the durable wrapper around one emitted event: its position in
// the global log, the command that produced it, and the hash chain links.
type Envelope struct {
	Sequence  int64
	CommandID string
	EventType string
	VaultID   string
	Timestamp uint64
	StateHash []byte
	PrevHash  []byte
}

// Output pairs an envelope with the event it wraps. The persistence worker,
// outbound publisher and projection worker all consume Outputs.
type Output struct {
	Envelope Envelope
	Event    event.Event
}

// CollectorSink buffers events emitted during one engine call so the
// dispatcher can envelope them afterwards. Implements event.Sink.
// Not thread-safe; only the dispatcher goroutine touches it.
type CollectorSink struct {
	events []event.Event
}

func NewCollectorSink() *CollectorSink { return &CollectorSink{} }

func (s *CollectorSink) Publish(ev event.Event) {
	s.events = append(s.events, ev)
}

// Drain returns buffered events and resets the sink.
func (s *CollectorSink) Drain() []event.Event {
	out := s.events
	s.events = nil
	return out
}

// Dispatcher runs the single-threaded command pipeline: authenticate,
// deduplicate, validate ordering, execute against the vault engine, then
// envelope the emitted events into the hash-chained log and fan them out.
type Dispatcher struct {
	engines   map[string]*vault.Engine
	tokens    map[string]token.Token
	gate      *SignerGate
	auth      *Authenticator
	dedup     *CommandDeduper
	seq       *SequenceValidator
	hasher    *StateHasher
	collector *CollectorSink

	// sequence is the last assigned log position.
	sequence int64

	persistChan    chan<- Output
	publishChan    chan<- Output
	projectionChan chan<- Output

	metrics *observability.Metrics
	log     zerolog.Logger
}

// DispatcherConfig wires a Dispatcher. Gate and Collector must be the same
// instances the engines were constructed with.
type DispatcherConfig struct {
	Gate       *SignerGate
	Auth       *Authenticator
	Collector  *CollectorSink
	DedupStore StoredCommandChecker
	DedupSize  int

	PersistChan    chan<- Output
	PublishChan    chan<- Output
	ProjectionChan chan<- Output

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = 100_000
	}
	return &Dispatcher{
		engines:        make(map[string]*vault.Engine),
		tokens:         make(map[string]token.Token),
		gate:           cfg.Gate,
		auth:           cfg.Auth,
		dedup:          NewCommandDeduper(cfg.DedupSize, cfg.DedupStore),
		seq:            NewSequenceValidator(),
		hasher:         NewStateHasher(),
		collector:      cfg.Collector,
		persistChan:    cfg.PersistChan,
		publishChan:    cfg.PublishChan,
		projectionChan: cfg.ProjectionChan,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
	}
}

// RegisterVault makes an engine addressable by vault id.
func (d *Dispatcher) RegisterVault(eng *vault.Engine) {
	d.engines[eng.ID()] = eng
}

// RegisterToken makes a token ledger resolvable by symbol, for commands that
// name a token (emergency withdrawals, unexpected deposit sweeps).
func (d *Dispatcher) RegisterToken(tok token.Token) {
	d.tokens[tok.Symbol()] = tok
}

// Engines returns every registered engine, for snapshotting.
func (d *Dispatcher) Engines() []*vault.Engine {
	engines := make([]*vault.Engine, 0, len(d.engines))
	for _, eng := range d.engines {
		engines = append(engines, eng)
	}
	return engines
}

// Sequence returns the last assigned log position.
func (d *Dispatcher) Sequence() int64 { return d.sequence }

// ChainTip returns the current hash chain tip.
func (d *Dispatcher) ChainTip() [32]byte { return d.hasher.PrevHash() }

// PartitionCursors returns the current producer cursors for checkpointing.
func (d *Dispatcher) PartitionCursors() map[string]int64 { return d.seq.Cursors() }

// Restore re-seats the pipeline cursors after a restart: the log position,
// the hash chain tip, per-partition producer cursors, and recent dedup keys.
func (d *Dispatcher) Restore(sequence int64, chainTip [32]byte, partitions map[string]int64, dedupKeys []string) {
	d.sequence = sequence
	d.hasher.SetPrevHash(chainTip)
	for partition, next := range partitions {
		d.seq.SetExpectedSequence(partition, next)
	}
	d.dedup.Warm(dedupKeys)
}

// Execute runs one command through the full pipeline. A nil return means the
// command was consumed (applied, deduplicated, or rejected by a business
// rule); the caller should ack. A non-nil return is an infrastructure
// failure and the message should be redelivered.
func (d *Dispatcher) Execute(ctx context.Context, cmd *Command) error {
	start := time.Now()
	d.metrics.CommandsReceived.WithLabelValues(cmd.Name).Inc()

	if err := d.auth.Verify(cmd); err != nil {
		d.metrics.CommandsRejected.WithLabelValues("auth").Inc()
		d.log.Warn().Str("command", cmd.Name).Str("caller", cmd.Caller).Err(err).
			Msg("command signature rejected")
		return nil
	}

	isDup := d.dedup.IsDuplicate(cmd.Name, cmd.ID.String())
	if isDup {
		d.metrics.CommandsRejected.WithLabelValues("duplicate").Inc()
		return nil
	}

	if cmd.Name == "update_price" {
		if stale := d.seq.ValidatePriceSequence(cmd.VaultID, cmd.Sequence); stale {
			d.metrics.CommandsRejected.WithLabelValues("stale_price").Inc()
			return nil
		}
	} else {
		if err := d.seq.ValidateCommandSequence(cmd.VaultID, cmd.Sequence, isDup); err != nil {
			d.metrics.CommandsRejected.WithLabelValues("sequence").Inc()
			d.log.Warn().Str("command", cmd.Name).Str("vault", cmd.VaultID).Err(err).
				Msg("command sequence rejected")
			return nil
		}
	}

	eng, ok := d.engines[cmd.VaultID]
	if !ok {
		d.metrics.CommandsRejected.WithLabelValues("unknown_vault").Inc()
		d.log.Warn().Str("vault", cmd.VaultID).Msg("command for unknown vault")
		return nil
	}

	d.gate.Assume(cmd.Caller)
	applyErr := d.apply(eng, cmd)
	d.gate.Clear()

	events := d.collector.Drain()

	if applyErr != nil {
		d.metrics.OpsRejected.WithLabelValues(cmd.VaultID, cmd.Name, applyErr.Error()).Inc()
		d.log.Info().Str("command", cmd.Name).Str("vault", cmd.VaultID).
			Str("caller", cmd.Caller).Err(applyErr).Msg("command rejected")
		// Rejected commands still consume their dedup slot so a redelivery
		// cannot retry a command the engine already refused.
		d.dedup.MarkApplied(cmd.Name, cmd.ID.String())
		return nil
	}

	for _, ev := range events {
		d.sequence++
		prev := d.hasher.PrevHash()
		hash := d.hasher.ComputeHash(d.sequence, d.ledgerDigest())

		out := Output{
			Envelope: Envelope{
				Sequence:  d.sequence,
				CommandID: cmd.ID.String(),
				EventType: ev.EventType().String(),
				VaultID:   ev.Vault(),
				Timestamp: ev.OccurredAt(),
				StateHash: hash[:],
				PrevHash:  prev[:],
			},
			Event: ev,
		}

		// Persistence is the durability boundary; block until accepted.
		select {
		case d.persistChan <- out:
		case <-ctx.Done():
			return ctx.Err()
		}

		if d.publishChan != nil {
			select {
			case d.publishChan <- out:
			default:
				d.metrics.PublishErrors.Inc()
				d.log.Warn().Int64("sequence", out.Envelope.Sequence).
					Msg("publish channel full, event dropped from outbound stream")
			}
		}

		if d.projectionChan != nil {
			select {
			case d.projectionChan <- out:
			default:
				d.log.Warn().Int64("sequence", out.Envelope.Sequence).
					Msg("projection channel full, event dropped from projections")
			}
		}

		d.metrics.EventsEmitted.WithLabelValues(ev.Vault(), ev.EventType().String()).Inc()
	}

	d.dedup.MarkApplied(cmd.Name, cmd.ID.String())
	d.metrics.OpsApplied.WithLabelValues(cmd.VaultID, cmd.Name).Inc()
	d.updateGauges(eng)
	d.metrics.CommandLatency.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())
	return nil
}

func (d *Dispatcher) apply(eng *vault.Engine, cmd *Command) error {
	switch p := cmd.Payload.(type) {
	case *DepositCommand:
		return eng.Deposit(cmd.Caller, p.Amount, p.MinShares, p.Beneficiary)
	case *ProcessDepositsCommand:
		return eng.ProcessDeposits(p.Amount)
	case *ReturnFundsCommand:
		return eng.ReturnFunds(p.Amount)
	case *AccrueManagementFeeCommand:
		return eng.AccrueManagementFee()
	case *WithdrawUnexpectedCommand:
		tok, err := d.resolveToken(p.Token)
		if err != nil {
			return err
		}
		return eng.WithdrawUnexpectedDeposits(tok, p.Amount)
	case *WithdrawRequestCommand:
		_, err := eng.WithdrawRequest(cmd.Caller, p.Shares, p.MinAmountOut)
		return err
	case *UpdateWithdrawalMinimumCommand:
		return eng.UpdateWithdrawalMinimum(cmd.Caller, p.RequestID, p.NewMinimum)
	case *FulfillWithdrawalCommand:
		return eng.FulfillWithdrawal(p.User, p.RequestID)
	case *CancelWithdrawalCommand:
		return eng.CancelWithdrawal(cmd.Caller, p.RequestID)
	case *UpdatePriceCommand:
		return eng.UpdatePrice(p.Price)
	case *AcceptPriceCommand:
		return eng.AcceptPrice(p.ManagerAuth, p.ProcessorAuth, p.OracleAuth)
	case *RejectPriceCommand:
		return eng.RejectPrice()
	case *vault.RoleChanges:
		return eng.ProposeRoles(*p)
	case *AcceptRolesCommand:
		return eng.AcceptRoles()
	case *vault.FeeChanges:
		return eng.ProposeFees(*p)
	case *AcceptFeesCommand:
		return eng.AcceptFees()
	case *vault.LimitChanges:
		return eng.ProposeLimits(*p)
	case *AcceptLimitsCommand:
		return eng.AcceptLimits()
	case *ProposeWhitelistCommand:
		return eng.ProposeWhitelist(p.Enabled)
	case *AcceptWhitelistCommand:
		return eng.AcceptWhitelist()
	case *AddWhitelistUserCommand:
		return eng.AddUserToWhitelist(p.User)
	case *RemoveWhitelistUserCommand:
		return eng.RemoveUserFromWhitelist(p.User)
	case *vault.CooldownChanges:
		return eng.ProposeCooldowns(*p)
	case *AcceptCooldownsCommand:
		return eng.AcceptCooldowns()
	case *PauseVaultCommand:
		return eng.PauseVault()
	case *UnpauseVaultCommand:
		return eng.UnpauseVault()
	case *EmergencyWithdrawCommand:
		tok, err := d.resolveToken(p.Token)
		if err != nil {
			return err
		}
		return eng.EmergencyWithdraw(tok, p.Amount)
	case *SwapTokensCommand:
		return eng.SwapTokens(cmd.Caller, p.DestVault, p.Amount, p.FeeBps, p.MinAmountOut)
	case *AcceptAllowlistMintCommand:
		return eng.AcceptAllowlistMint(p.Peer)
	case *CancelAllowlistMintCommand:
		return eng.CancelAllowlistMint(p.Peer)
	default:
		return fmt.Errorf("unhandled command payload %T", cmd.Payload)
	}
}

func (d *Dispatcher) resolveToken(symbol string) (token.Token, error) {
	tok, ok := d.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown token: %s", symbol)
	}
	return tok, nil
}

// ledgerDigest serializes every registered vault's ledger tuple in vault id
// order. Two replicas that applied the same command log produce identical
// digests, which is what the hash chain certifies.
func (d *Dispatcher) ledgerDigest() []byte {
	ids := make([]string, 0, len(d.engines))
	for id := range d.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf []byte
	var scratch [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(id)))
		buf = append(buf, scratch[:4]...)
		buf = append(buf, id...)

		price, totalShares, totalIdle, pending, custody := d.engines[id].Ledger()
		for _, v := range [5]uint64{price, totalShares, totalIdle, pending, custody} {
			binary.LittleEndian.PutUint64(scratch[:], v)
			buf = append(buf, scratch[:]...)
		}
	}
	return buf
}

func (d *Dispatcher) updateGauges(eng *vault.Engine) {
	price, totalShares, totalIdle, pending, custody := eng.Ledger()
	id := eng.ID()
	d.metrics.Price.WithLabelValues(id).Set(float64(price))
	d.metrics.TotalShares.WithLabelValues(id).Set(float64(totalShares))
	d.metrics.TotalIdle.WithLabelValues(id).Set(float64(totalIdle))
	d.metrics.WithdrawalsPending.WithLabelValues(id).Set(float64(pending))
	d.metrics.SharesInCustody.WithLabelValues(id).Set(float64(custody))
}
