// Package events publishes ledger record lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeRecordCreated = "ledger.record_created"
	TypeRecordUpdated = "ledger.record_updated"
	TypeRecordDeleted = "ledger.record_deleted"
)

// Event describes a change to one ledger record.
type Event struct {
	Type     string    `json:"type"`
	Office   string    `json:"office"`
	RecordID int64     `json:"record_id"`
	Actor    string    `json:"actor,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	Amount   string    `json:"amount,omitempty"`
	Currency string    `json:"currency,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher delivers events. Implementations must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher writes events to one topic, keyed by office so that events
// of an office stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds an asynchronous writer; delivery errors are logged.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Warn("publish ledger events", slog.Int("messages", len(messages)), slog.Any("error", err))
				}
			},
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes an event as a Kafka message.
func Message(event Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(event.Office),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "record_id", Value: []byte(strconv.FormatInt(event.RecordID, 10))},
		},
		Time: event.At,
	}, nil
}
