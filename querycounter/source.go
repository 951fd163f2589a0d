package querycounter

import (
	"context"
	"sort"
	"sync"
)

// StatementHandler is invoked synchronously for every executed statement.
// It must not block, because it runs on the hot path of the database call.
type StatementHandler func(ctx context.Context, statement TrackedStatement)

// Subscription is the handle returned by an EventSource; Unsubscribe detaches the handler.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// EventSource is the capability an execution layer exposes to the engine:
// a hookable point that fires once per executed statement.
type EventSource interface {
	Subscribe(handler StatementHandler) (Subscription, error)
}

// EventBus is an in-process EventSource.
// Hook implementations (database/sql, pgx) embed it and call Emit from their hook callbacks,
// tests and custom execution layers can call Emit directly. The zero value is ready to use.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[uint64]StatementHandler
	nextID   uint64
}

// NewEventBus creates an EventBus without subscribers.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[uint64]StatementHandler),
	}
}

// Subscribe attaches handler until the returned Subscription is unsubscribed.
func (b *EventBus) Subscribe(handler StatementHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilStatementHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[uint64]StatementHandler)
	}

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler

	return &busSubscription{bus: b, id: id}, nil
}

// Emit dispatches statement to all current subscribers in subscription order, on the calling goroutine.
func (b *EventBus) Emit(ctx context.Context, statement TrackedStatement) {
	for _, handler := range b.currentHandlers() {
		handler(ctx, statement)
	}
}

// SubscriberCount returns the number of attached handlers.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers)
}

func (b *EventBus) currentHandlers() []StatementHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.handlers) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]StatementHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}

	return handlers
}

func (b *EventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
}

type busSubscription struct {
	bus  *EventBus
	id   uint64
	once sync.Once
}

func (s *busSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.id)
	})
}

// Ensure EventBus implements EventSource.
var _ EventSource = (*EventBus)(nil)
