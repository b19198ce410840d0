// Package shared holds building blocks used by several domain packages
package shared

import "time"

// DomainEvent is something that happened to an aggregate
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// AggregateRoot records events until the application layer has handled
// them
type AggregateRoot struct {
	events []DomainEvent
}

// AddEvent records an event
func (a *AggregateRoot) AddEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns the pending events. They stay pending until ClearEvents.
func (a *AggregateRoot) Events() []DomainEvent {
	out := make([]DomainEvent, len(a.events))
	copy(out, a.events)
	return out
}

// ClearEvents drops the pending events
func (a *AggregateRoot) ClearEvents() {
	a.events = nil
}
