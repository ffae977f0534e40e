// Package pubsub provides a generic publish/subscribe event system used to
// fan out registry events and log lines.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	RegisteredEvent EventType = "registered" // a namespace registration won
	SkippedEvent    EventType = "skipped"    // a stale registration was ignored
	ReloadedEvent   EventType = "reloaded"   // manifests were re-applied
	LoggedEvent     EventType = "logged"     // a log line was written
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}

// Forward subscribes to sub and calls fn for every event until ctx is
// cancelled or the subscription closes. It blocks.
func Forward[T any](ctx context.Context, sub Subscriber[T], fn func(Event[T])) {
	ch := sub.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fn(ev)
		}
	}
}
