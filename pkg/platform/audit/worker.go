package audit

import (
	"context"
	"log/slog"
	"sync"
)

// ChannelPublisher decouples emit latency from the unlock transaction by
// handing events to a buffered channel consumed by Worker. A full buffer
// drops the event rather than blocking the caller.
type ChannelPublisher struct {
	inbox chan Event
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{inbox: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Emit(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
	default:
		// Audit is best-effort; never block the transaction path.
	}
	return nil
}

// Inbox exposes the event stream for a Worker.
func (p *ChannelPublisher) Inbox() <-chan Event { return p.inbox }

// Worker drains audit events from a channel into a Store. Append failures are
// logged and skipped so one bad event cannot stall the stream.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "failed to persist audit event",
					"action", event.Action, "error", err)
			}
		}
	}
}

// PublisherSink adapts a Publisher to the Store interface so a Worker can
// drain a channel into an external sink such as Kafka.
type PublisherSink struct {
	publisher Publisher
}

func NewPublisherSink(publisher Publisher) PublisherSink {
	return PublisherSink{publisher: publisher}
}

func (s PublisherSink) Append(ctx context.Context, event Event) error {
	return s.publisher.Emit(ctx, event)
}

// MemoryStore collects events in memory for tests and dev wiring.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
