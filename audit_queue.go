package loginregister

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditQueue hands engine events to the configured sink on one background
// goroutine. Request goroutines only pay for a channel send; with
// DropIfFull a full buffer costs a counter increment instead of a wait.
type auditQueue struct {
	sink       AuditSink
	logger     *slog.Logger
	dropIfFull bool

	// mu guards closing events against concurrent sends.
	mu      sync.RWMutex
	closed  bool
	events  chan queuedEvent
	drained chan struct{}

	dropped atomic.Uint64
}

// queuedEvent keeps the request's values for the sink but not its
// cancellation, which usually fires before the worker gets to the event.
type queuedEvent struct {
	ctx   context.Context
	event AuditEvent
}

// newAuditQueue returns nil when auditing is off; a nil queue accepts and
// discards everything.
func newAuditQueue(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditQueue {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	q := &auditQueue{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan queuedEvent, size),
		drained:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *auditQueue) run() {
	defer close(q.drained)
	for item := range q.events {
		q.deliver(item)
	}
}

func (q *auditQueue) deliver(item queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.ErrorContext(item.ctx, "audit sink panicked",
				slog.String("event", item.event.EventType),
				slog.Any("panic", r))
		}
	}()
	q.sink.Emit(item.ctx, item.event)
}

// Emit enqueues event. Without DropIfFull it waits for room until ctx is
// done, in which case the event is counted as dropped.
func (q *auditQueue) Emit(ctx context.Context, event AuditEvent) {
	if q == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	item := queuedEvent{ctx: context.WithoutCancel(ctx), event: event}
	if q.dropIfFull {
		select {
		case q.events <- item:
		default:
			q.dropped.Add(1)
		}
		return
	}
	select {
	case q.events <- item:
	case <-ctx.Done():
		q.dropped.Add(1)
	}
}

// Close stops intake and returns once the sink has seen every accepted
// event. Later calls are no-ops.
func (q *auditQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.events)
	}
	q.mu.Unlock()
	<-q.drained
}

// Dropped reports events discarded on a full buffer.
func (q *auditQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
