package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/civicdesk/civicdesk/internal/metrics"
)

// HandlerFunc receives one event. Returned errors are logged by the bus and
// never reach the publisher.
type HandlerFunc func(ctx context.Context, ev Event) error

// Bus is the in-process publish/subscribe registry. One Bus is built at
// startup and handed to every publisher and subscriber.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64
	log    *slog.Logger
}

type Subscription struct {
	bus   *Bus
	id    uint64
	name  string
	types map[EventType]struct{}
	fn    HandlerFunc
}

func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log.With("component", "eventbus")}
}

// Subscribe registers fn for the given types, or for every type when none
// are given. Handlers run in subscription order.
func (b *Bus) Subscribe(name string, fn HandlerFunc, types ...EventType) *Subscription {
	s := &Subscription{bus: b, name: name, fn: fn}
	if len(types) > 0 {
		s.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

// Close removes the subscription. Closing twice is a no-op.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur.id == s.id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (s *Subscription) Name() string { return s.name }

func (s *Subscription) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Publish wraps p in an Event and dispatches it synchronously.
func (b *Bus) Publish(ctx context.Context, p Payload) Event {
	ev := NewEvent(p)
	b.Dispatch(ctx, ev)
	return ev
}

func (b *Bus) Dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	matching := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(ev.Type) {
			matching = append(matching, s)
		}
	}
	b.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	for _, s := range matching {
		if err := b.call(ctx, s, ev); err != nil {
			b.log.Warn("handler_failed", "subscriber", s.name, "type", ev.Type, "error", err)
		}
	}
}

func (b *Bus) call(ctx context.Context, s *Subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, ev)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
