package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Publisher hands records to the store, optionally through a buffered
// channel so the caller never waits on persistence. Failures are logged and
// swallowed; audit problems must not surface to clients.
type Publisher struct {
	store  Store
	events chan Record
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Records are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Record, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processRecords()
	}
	return p
}

// processRecords runs in a goroutine and persists records from the channel.
func (p *Publisher) processRecords() {
	defer p.wg.Done()
	for record := range p.events {
		if err := p.store.Append(context.Background(), record); err != nil {
			p.logger.Error("failed to persist audit record",
				"error", err,
				"action", record.Action,
				"request_id", record.RequestID,
			)
		}
	}
}

// Close shuts down the async publisher and waits for pending records to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit persists a record. In async mode the send is non-blocking; when the
// buffer is full the record is dropped rather than stalling the caller.
func (p *Publisher) Emit(ctx context.Context, record Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if p.async {
		select {
		case p.events <- record:
			return nil
		default:
			p.logger.Warn("audit buffer full, record dropped",
				"action", record.Action,
				"request_id", record.RequestID,
			)
			return nil
		}
	}
	return p.store.Append(ctx, record)
}

// List returns the audit trail for one principal.
func (p *Publisher) List(ctx context.Context, principalID string) ([]Record, error) {
	return p.store.ListByPrincipal(ctx, principalID)
}
