package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/shared"
)

// Options configures the in-memory event bus
type Options struct {
	// BufferSize is the capacity of the async dispatch queue
	BufferSize int
	// HandlerTimeout bounds the time a single handler may take per event
	HandlerTimeout time.Duration
}

// DefaultOptions returns sensible defaults for a single-instance deployment
func DefaultOptions() Options {
	return Options{
		BufferSize:     256,
		HandlerTimeout: 10 * time.Second,
	}
}

// InMemoryEventBus implements EventBus with in-memory pub/sub.
//
// Before Start (and after Stop) events are dispatched synchronously on the
// publisher's goroutine. While running, Publish enqueues onto a buffered
// queue drained by a worker; a full queue falls back to inline dispatch so
// events are never dropped.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	opts     Options

	mu      sync.RWMutex
	running bool
	queue   chan shared.DomainEvent
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts Options) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = DefaultOptions().HandlerTimeout
	}
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		opts:     opts,
	}
}

// Publish delivers events to all registered handlers. Handler errors are
// logged, not returned; one failing handler never blocks the others.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ev := range events {
		if !b.running {
			b.dispatchAll(ctx, ev)
			continue
		}
		select {
		case b.queue <- ev:
		default:
			b.logger.Warn("event queue full, dispatching inline",
				zap.String("event_type", ev.EventType()),
			)
			b.dispatchAll(ctx, ev)
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start switches the bus to async dispatch
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.queue = make(chan shared.DomainEvent, b.opts.BufferSize)
	b.running = true
	b.wg.Add(1)
	go b.drain(b.queue)

	b.logger.Info("event bus started",
		zap.Int("buffer_size", b.opts.BufferSize),
	)
	return nil
}

// Stop drains the queue and switches back to synchronous dispatch
func (b *InMemoryEventBus) Stop(_ context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) drain(queue chan shared.DomainEvent) {
	defer b.wg.Done()
	for ev := range queue {
		b.dispatchAll(context.Background(), ev)
	}
}

func (b *InMemoryEventBus) dispatchAll(ctx context.Context, ev shared.DomainEvent) {
	for _, handler := range b.registry.HandlersFor(ev.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, ev); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", ev.EventType()),
				zap.String("event_id", ev.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler runs one handler under the configured timeout and
// converts a panic into a logged failure
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, ev shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r),
			)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.opts.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, ev)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
