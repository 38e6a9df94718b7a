package audit

import (
	"context"
	"time"
)

// Sink receives audit events. Implementations are append-only.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It delegates persistence to a
// sink so tests can swap in a capture buffer.
type Publisher struct {
	sink  Sink
	clock func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) { p.clock = clock }
}

// NewPublisher creates a publisher over a sink.
func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records one event, stamping the time if the caller did not.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	return p.sink.Append(ctx, event)
}

// Worker consumes audit events from a channel and appends them to a sink.
// It decouples the screening hot path from sink latency.
type Worker struct {
	sink  Sink
	inbox <-chan Event
}

// NewWorker creates a worker draining inbox into sink.
func NewWorker(sink Sink, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

// Run processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
