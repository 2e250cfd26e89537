// Package events provides the in-process event bus used for decoupled,
// event-driven communication between the CRM use cases and the automation
// subscribers. This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSubscribers is returned by Publish when no subscriber has ever connected.
	ErrNoSubscribers = errors.New("events: no subscribers")
	// ErrBusClosed is returned after Close.
	ErrBusClosed = errors.New("events: bus closed")
)

// DomainEvent is a named occurrence with an opaque JSON payload agreed between
// producer and consumer.
type DomainEvent struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Bus is the interface for publishing and subscribing to domain events.
type Bus interface {
	// Publish delivers the event to every live subscription.
	Publish(ctx context.Context, event DomainEvent) error

	// Subscribe returns a handle that observes all future events. The pattern is
	// recorded on the handle but not evaluated by the bus; consumers filter.
	Subscribe(pattern string) (*Subscription, error)
}

// Matches reports whether topic satisfies pattern. Supported forms are "*",
// "prefix.*" and a literal topic name.
func Matches(pattern, topic string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == topic
	}
}
