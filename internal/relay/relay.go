// Package relay forwards broadcast events to a Kafka topic so other services
// can follow status changes without holding an SSE connection.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"netpulse/internal/domain"
)

// DefaultTopic receives events when no topic is configured
const DefaultTopic = "netpulse.events"

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseBrokers splits a comma-separated broker string
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// MessageWriter is the subset of *kafka.Writer the relay uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer for cfg. Messages are keyed by node id so
// every event for a node lands on the same partition.
func NewWriter(cfg Config) *kafka.Writer {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Relay copies events from a subscription to Kafka
type Relay struct {
	writer       MessageWriter
	writeTimeout time.Duration
	logger       *zap.Logger
}

// New creates a relay around writer
func New(writer MessageWriter, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		writer:       writer,
		writeTimeout: 5 * time.Second,
		logger:       logger.Named("relay"),
	}
}

// Run forwards events until ctx is cancelled or the channel is closed.
// Failed writes are logged and the event is dropped.
func (r *Relay) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := r.forward(ctx, event); err != nil {
				r.logger.Warn("failed to relay event",
					zap.String("type", string(event.Type)),
					zap.String("node_id", event.NodeID),
					zap.Error(err))
			}
		}
	}
}

func (r *Relay) forward(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.NodeID),
		Value: value,
		Time:  event.Time,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer
func (r *Relay) Close() error {
	return r.writer.Close()
}
