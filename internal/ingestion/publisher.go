package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"stokenvault/internal/observability"
)

// OutboundPublisher publishes enveloped events to NATS for downstream
// consumers. Events reach this loop only after the persistence worker has
// accepted them. Subjects follow stoken.vault.events.{event_type}.{vault_id}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan Output
	metrics   *observability.Metrics
}

// outboundEventJSON is the published wire format.
type outboundEventJSON struct {
	Sequence  int64       `json:"sequence"`
	CommandID string      `json:"command_id"`
	EventType string      `json:"event_type"`
	VaultID   string      `json:"vault_id"`
	Payload   interface{} `json:"payload"`
	StateHash []byte      `json:"state_hash"`
	PrevHash  []byte      `json:"prev_hash"`
	Timestamp uint64      `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan Output, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				op.metrics.PublishErrors.Inc()
				log.Printf("WARN: outbound publish failed seq=%d: %v", out.Envelope.Sequence, err)
				// Non-fatal: downstream consumers can replay from the event log
				continue
			}
			op.metrics.EventsPublished.Inc()
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out Output) error {
	env := out.Envelope
	data, err := json.Marshal(outboundEventJSON{
		Sequence:  env.Sequence,
		CommandID: env.CommandID,
		EventType: env.EventType,
		VaultID:   env.VaultID,
		Payload:   out.Event,
		StateHash: env.StateHash,
		PrevHash:  env.PrevHash,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("stoken.vault.events.%s.%s", env.EventType, env.VaultID)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "STOKEN_VAULT_EVENTS",
		Subjects:  []string{"stoken.vault.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream STOKEN_VAULT_EVENTS")
	return nil
}
