// Package outbox persists and delivers growth events to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/growth/internal/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type schemaResolver interface {
	SchemaID(ctx context.Context, contract events.Contract) (int, error)
}

// batchStore claims pending outbox rows and records their fate.
type batchStore interface {
	Claim(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []int64) error
	WriteDLQ(ctx context.Context, msg Message, reason string) error
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka in the Schema Registry wire format.
type Dispatcher struct {
	store            batchStore
	writer           messageWriter
	registry         schemaResolver
	pollInterval     time.Duration
	batchSize        int
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewKafkaWriter returns a writer that routes each message by its own Topic and keeps a
// user's events on one partition.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store batchStore, writer messageWriter, registry schemaResolver, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:            store,
		writer:           writer,
		registry:         registry,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.store.Claim(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	if err := d.deliver(ctx, messages); err != nil {
		d.logger.Printf("delivery failure: %v", err)
		if dlqErr := d.moveToDLQ(ctx, messages, err.Error()); dlqErr != nil {
			return dlqErr
		}
		return d.store.MarkPublished(ctx, eventIDs(messages))
	}

	recordPublished(messages)
	return d.store.MarkPublished(ctx, eventIDs(messages))
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	schemaIDs := make(map[string]int)
	records := make([]kafka.Message, 0, len(messages))
	now := time.Now().UTC()

	for _, msg := range messages {
		contract, ok := events.ContractFor(msg.EventType)
		if !ok {
			return fmt.Errorf("no contract for event_type=%s", msg.EventType)
		}
		if msg.Topic != contract.Topic {
			return fmt.Errorf("event_type=%s queued for topic %s, contract topic is %s", msg.EventType, msg.Topic, contract.Topic)
		}

		schemaID, seen := schemaIDs[msg.EventType]
		if !seen {
			id, err := d.registry.SchemaID(ctx, contract)
			if err != nil {
				return err
			}
			schemaID = id
			schemaIDs[msg.EventType] = id
		}

		records = append(records, kafka.Message{
			Topic: contract.Topic,
			Key:   []byte(msg.PartitionKey),
			Value: events.Frame(schemaID, msg.Payload),
			Time:  now,
			Headers: []kafka.Header{
				{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
				{Key: events.HeaderSchemaSubject, Value: []byte(contract.Subject())},
				{Key: events.HeaderAggregateID, Value: []byte(msg.AggregateID)},
			},
		})
	}

	return d.writer.WriteMessages(ctx, records...)
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, messages []Message, reason string) error {
	for _, msg := range messages {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.store.WriteDLQ(ctx, msg, entryReason); err != nil {
			return err
		}
		recordDeadLettered(msg)
	}
	return nil
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	return ids
}
