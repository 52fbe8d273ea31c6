// Package publisher mirrors committed audit events to Kafka for the
// downstream compliance pipeline. The durable store remains the gate for
// transitions; this mirror is fire-and-forget.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"resolute/internal/audit"
)

// payload is the JSON shape produced to the audit topic.
type payload struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Actor           string `json:"actor"`
	SubjectID       string `json:"subject_id,omitempty"`
	EntityID        string `json:"entity_id,omitempty"`
	Decision        string `json:"decision,omitempty"`
	Rationale       string `json:"rationale,omitempty"`
	RegulatoryBasis string `json:"regulatory_basis,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// Kafka publishes audit events to a single topic, keyed by subject id so
// per-subject history stays ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka builds a publisher from broker seeds and a topic name.
func NewKafka(seeds []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish produces the event asynchronously. Delivery failures are logged,
// never propagated: the durable store already holds the event.
func (k *Kafka) Publish(ctx context.Context, event audit.Event) {
	body, err := json.Marshal(payload{
		ID:              event.ID.String(),
		Type:            string(event.Type),
		Actor:           event.Actor,
		SubjectID:       event.SubjectID,
		EntityID:        event.EntityID,
		Decision:        event.Decision,
		Rationale:       event.Rationale,
		RegulatoryBasis: event.RegulatoryBasis,
		Timestamp:       event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		k.logger.ErrorContext(ctx, "marshal audit payload", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.SubjectID),
		Value: body,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("publish audit event",
				"event_id", event.ID.String(),
				"event_type", string(event.Type),
				"error", err,
			)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return err
	}
	k.client.Close()
	return nil
}
