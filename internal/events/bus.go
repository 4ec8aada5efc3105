package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event. Returned errors are logged,
// never propagated to the publisher.
type EventHandler func(context.Context, Event) error

// Bus carries domain events from the ticket lifecycle to background
// consumers. Publishers call Publish only after their storage
// transaction has committed, so a handler re-reading a ticket always
// observes the committed state.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	Close()
}

// workerBus delivers events on a fixed pool of goroutines behind a
// bounded queue, decoupling ticket mutations from notification work.
type workerBus struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// NewBus creates a bus with the given worker count and queue capacity.
func NewBus(workers, queueSize int, logger *zap.Logger) Bus {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	b := &workerBus{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, queueSize),
		logger:    logger,
	}
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker()
	}
	return b
}

// Publish enqueues the event for asynchronous delivery. It blocks only
// on queue admission; ctx cancellation abandons the publish.
func (b *workerBus) Publish(ctx context.Context, event Event) error {
	select {
	case b.queue <- event:
		return nil
	case <-ctx.Done():
		b.logger.Warn("event publish abandoned",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Subscribe registers a handler for the given event type.
func (b *workerBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], handler)
}

// Close stops accepting events and waits for in-flight deliveries.
func (b *workerBus) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
	})
	b.wg.Wait()
}

func (b *workerBus) worker() {
	defer b.wg.Done()
	for event := range b.queue {
		b.mu.RLock()
		handlers := append([]EventHandler{}, b.listeners[event.Type]...)
		b.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler(context.Background(), event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", string(event.Type)),
					zap.Int64("ticket_id", event.TicketID),
					zap.Error(err))
			}
		}
	}
}
