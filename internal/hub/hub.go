package hub

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"netpulse/internal/domain"
	"netpulse/internal/metrics"
)

// DefaultBuffer is the per-subscriber buffer size
const DefaultBuffer = 64

// Subscription is one subscriber's view of the event stream
type Subscription struct {
	id     string
	events chan domain.Event
	hub    *Broadcaster
}

// ID returns the subscription id
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the receive side of the subscription. The channel is
// closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// Broadcaster delivers events to every live subscription
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *zap.Logger
}

// New creates a broadcaster. A non-positive buffer uses DefaultBuffer.
func New(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.Named("hub"),
	}
}

// Subscribe registers a new subscription
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		events: make(chan domain.Event, b.buffer),
		hub:    b,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	metrics.Subscribers.Inc()
	b.logger.Debug("subscriber added", zap.String("subscription", sub.id), zap.Int("total", count))
	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already removed
// subscriptions are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if _, ok := b.subs[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, sub)
	close(sub.events)
	count := len(b.subs)
	b.mu.Unlock()

	metrics.Subscribers.Dec()
	b.logger.Debug("subscriber removed", zap.String("subscription", sub.id), zap.Int("total", count))
}

// Publish delivers event to every subscription without blocking
func (b *Broadcaster) Publish(event domain.Event) {
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.events <- event:
			continue
		default:
		}

		// full: evict the oldest, then retry once
		select {
		case <-sub.events:
			metrics.EventsDropped.Inc()
			b.logger.Debug("subscriber lagging, dropped oldest event", zap.String("subscription", sub.id))
		default:
		}
		select {
		case sub.events <- event:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// PublishStatus announces a node's new liveness status
func (b *Broadcaster) PublishStatus(nodeID, address string, status domain.Status) {
	b.Publish(domain.NewStatusEvent(nodeID, address, status))
}

// SubscriberCount returns the number of live subscriptions
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.Unsubscribe(sub)
	}
}
