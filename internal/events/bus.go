package events

import (
	platformevents "oxicrm_backend/platform/events"
	"oxicrm_backend/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
// This is a convenience re-export from platform/events.
func NewInMemoryBus(bufferSize int, log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(bufferSize, log)
}

// Matches re-exports the topic pattern helper.
var Matches = platformevents.Matches
