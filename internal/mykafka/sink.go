package mykafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicdesk/civicdesk/internal/eventbus"
)

const (
	DefaultBufferSize = 1024
	drainTimeout      = 5 * time.Second
)

type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

// Sink mirrors lifecycle events to Kafka off the publishing goroutine. When
// the buffer is full new events are dropped.
type Sink struct {
	pub   Publisher
	log   *slog.Logger
	queue chan eventbus.Event
}

func NewSink(pub Publisher, size int, log *slog.Logger) *Sink {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sink{pub: pub, log: log.With("component", "kafka.sink"), queue: make(chan eventbus.Event, size)}
}

func (s *Sink) Subscribe(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.Subscribe("kafka-sink", s.enqueue, eventbus.LifecycleTypes...)
}

func (s *Sink) enqueue(_ context.Context, ev eventbus.Event) error {
	select {
	case s.queue <- ev:
	default:
		s.log.Warn("kafka_buffer_full", "type", ev.Type, "key", ev.Key())
	}
	return nil
}

// Run writes queued events until ctx ends, then drains what is left within
// a short deadline.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.queue:
			s.write(ctx, ev)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

func (s *Sink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-s.queue:
			s.write(ctx, ev)
		default:
			return
		}
	}
}

func (s *Sink) write(ctx context.Context, ev eventbus.Event) {
	if err := s.pub.PublishEvent(ctx, ev.Key(), ev); err != nil {
		s.log.Error("kafka_publish_failed", "type", ev.Type, "key", ev.Key(), "error", err)
	}
}
