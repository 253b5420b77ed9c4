package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/williamsiker/practicas/internal/domain/catalog"
)

// InMemoryEventPublisher implements catalog.EventPublisher with in-memory storage.
// This is useful for testing and for the embedded memory store.
type InMemoryEventPublisher struct {
	mu       sync.RWMutex
	events   []catalog.DomainEvent
	handlers []EventHandler
}

// EventHandler is a function that handles domain events.
type EventHandler func(event catalog.DomainEvent)

// NewInMemoryEventPublisher creates a new in-memory event publisher.
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events:   make([]catalog.DomainEvent, 0, 16),
		handlers: make([]EventHandler, 0, 2),
	}
}

// Publish publishes domain events.
func (p *InMemoryEventPublisher) Publish(ctx context.Context, events ...catalog.DomainEvent) error {
	p.mu.Lock()
	p.events = append(p.events, events...)
	handlers := make([]EventHandler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	// Handlers run without the lock so they may call back into the publisher.
	for _, event := range events {
		for _, handler := range handlers {
			handler(event)
		}
	}
	return nil
}

// Subscribe adds an event handler.
func (p *InMemoryEventPublisher) Subscribe(handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// GetEvents returns all published events.
func (p *InMemoryEventPublisher) GetEvents() []catalog.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]catalog.DomainEvent{}, p.events...)
}

// ClearEvents clears all stored events.
func (p *InMemoryEventPublisher) ClearEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = p.events[:0]
}

// GetEventsByType returns events with the given name.
func (p *InMemoryEventPublisher) GetEventsByType(eventName string) []catalog.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []catalog.DomainEvent
	for _, event := range p.events {
		if event.EventName() == eventName {
			result = append(result, event)
		}
	}
	return result
}

// GetEventsByAggregate returns events for one aggregate.
func (p *InMemoryEventPublisher) GetEventsByAggregate(aggregateType string, id int64) []catalog.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var result []catalog.DomainEvent
	for _, event := range p.events {
		if event.AggregateType() == aggregateType && event.AggregateID() == id {
			result = append(result, event)
		}
	}
	return result
}

// LoggingEventPublisher writes every event to a structured logger.
type LoggingEventPublisher struct {
	logger *slog.Logger
}

// NewLoggingEventPublisher creates a publisher logging through logger, or slog.Default when nil.
func NewLoggingEventPublisher(logger *slog.Logger) *LoggingEventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventPublisher{logger: logger.With("component", "events")}
}

// Publish logs the events at info level.
func (p *LoggingEventPublisher) Publish(ctx context.Context, events ...catalog.DomainEvent) error {
	for _, event := range events {
		p.logger.InfoContext(ctx, "domain event",
			"event", event.EventName(),
			"event_id", event.EventID(),
			"aggregate", event.AggregateType(),
			"aggregate_id", event.AggregateID(),
			"occurred_at", event.OccurredAt())
	}
	return nil
}

// MultiEventPublisher fans events out to several publishers.
type MultiEventPublisher struct {
	publishers []catalog.EventPublisher
}

// NewMultiEventPublisher combines publishers; nil entries are skipped.
func NewMultiEventPublisher(publishers ...catalog.EventPublisher) *MultiEventPublisher {
	out := make([]catalog.EventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &MultiEventPublisher{publishers: out}
}

// Publish forwards events to every publisher and joins their errors.
func (m *MultiEventPublisher) Publish(ctx context.Context, events ...catalog.DomainEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOpEventPublisher is a no-op implementation for when events are not needed.
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher.
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Publish does nothing.
func (p *NoOpEventPublisher) Publish(ctx context.Context, events ...catalog.DomainEvent) error {
	return nil
}
