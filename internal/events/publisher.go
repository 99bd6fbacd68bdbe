// Package events publishes completed encounter notes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mediscribe/scribe-gateway/internal/observability"
)

// NoteEvent is the record published once per completed encounter, for both
// the streaming and the one-shot paths.
type NoteEvent struct {
	EncounterID string    `json:"encounterId"`
	Source      string    `json:"source"` // "stream" or "batch"
	Transcript  string    `json:"transcript"`
	Summary     any       `json:"summary"`
	CompletedAt time.Time `json:"completedAt"`
}

// Publisher writes note events to a Kafka topic. When no brokers are
// configured it runs in log-only mode and every publish is a no-op.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	logger  zerolog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// New creates a note-event publisher.
func New(cfg Config, logger zerolog.Logger) *Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, note events will be logged only")
		return &Publisher{topic: cfg.Topic, enabled: false, logger: logger}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka note publisher initialized")

	return &Publisher{writer: writer, topic: cfg.Topic, enabled: true, logger: logger}
}

// Publish writes one note event, keyed by encounter ID. Publish failures
// are reported but must never fail the client-facing response.
func (p *Publisher) Publish(ctx context.Context, event NoteEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Msg("failed to marshal note event")
		return err
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("encounter_id", event.EncounterID).
		RawJSON("payload", payload).
		Msg("publishing note event")

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.EncounterID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Str("encounter_id", event.EncounterID).Msg("failed to write note event")
		observability.RecordError("kafka_publish", "events")
		return err
	}
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
