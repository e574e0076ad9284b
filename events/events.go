// Package events publishes the outcome of royalty distributions to Kafka
// so downstream services (statements, accounting) can react to payouts.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/bitfsorg/royalty-go/royalty"
)

// Event types.
const (
	TypeDistributionCompleted = "royalty.distribution.completed"
	TypeDistributionFailed    = "royalty.distribution.failed"
)

// DefaultSource names this service in event envelopes.
const DefaultSource = "royalty-go"

// ErrNoBrokers indicates a Kafka publisher was configured without brokers.
var ErrNoBrokers = errors.New("events: no kafka brokers configured")

// Envelope wraps every published event.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Source       string          `json:"source"`
	PartitionKey string          `json:"partition_key"`
	Data         json.RawMessage `json:"data"`
}

// DistributionEvent is the payload of distribution events.
type DistributionEvent struct {
	DistributionID string                `json:"distribution_id"`
	AssetID        string                `json:"asset_id"`
	Period         string                `json:"period"`
	Currency       string                `json:"currency"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	Status         royalty.Status        `json:"status"`
	Success        bool                  `json:"success"`
	Transactions   []royalty.Transaction `json:"transactions"`
	Errors         []royalty.SplitError  `json:"errors"`
}

// Publisher publishes distribution outcomes.
type Publisher interface {
	PublishDistribution(ctx context.Context, d *royalty.RoyaltyDistribution, res *royalty.DistributionResult) error
	Close() error
}

// NewEnvelope builds the envelope for the outcome of one distribution run.
func NewEnvelope(d *royalty.RoyaltyDistribution, res *royalty.DistributionResult, source string, now time.Time) (*Envelope, error) {
	if d == nil || res == nil {
		return nil, errors.New("events: nil distribution or result")
	}
	eventType := TypeDistributionFailed
	if res.Success {
		eventType = TypeDistributionCompleted
	}
	data, err := json.Marshal(DistributionEvent{
		DistributionID: d.ID,
		AssetID:        d.AssetID,
		Period:         d.Period,
		Currency:       d.Currency,
		TotalAmount:    d.TotalAmount,
		Status:         d.Status,
		Success:        res.Success,
		Transactions:   res.Transactions,
		Errors:         res.Errors,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal distribution event: %w", err)
	}
	return &Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		OccurredAt:   now.UTC(),
		Source:       source,
		PartitionKey: d.AssetID,
		Data:         data,
	}, nil
}

// NopPublisher discards every event.
type NopPublisher struct{}

// PublishDistribution does nothing.
func (NopPublisher) PublishDistribution(context.Context, *royalty.RoyaltyDistribution, *royalty.DistributionResult) error {
	return nil
}

// Close does nothing.
func (NopPublisher) Close() error { return nil }

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes JSON envelopes keyed by asset ID, so all events
// for one asset land on the same partition in order.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	source string
	now    func() time.Time
}

// Compile-time interface check.
var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, topic), nil
}

// NewKafkaPublisherWithWriter creates a publisher on an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, source: DefaultSource, now: time.Now}
}

// Message builds the Kafka message for an envelope.
func Message(env *Envelope) (kafka.Message, error) {
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return kafka.Message{
		Key:   []byte(env.PartitionKey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}, nil
}

// PublishDistribution publishes the outcome of a distribution run.
func (p *KafkaPublisher) PublishDistribution(ctx context.Context, d *royalty.RoyaltyDistribution, res *royalty.DistributionResult) error {
	env, err := NewEnvelope(d, res, p.source, p.now())
	if err != nil {
		return err
	}
	msg, err := Message(env)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
