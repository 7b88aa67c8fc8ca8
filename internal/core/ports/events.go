package ports

import "github.com/palisade-sh/palisade/internal/core/domain"

// EventSink receives every standardized event the gateway emits.
type EventSink interface {
	Publish(event domain.Event)
}

// EventBroadcaster pushes events to all connected live subscribers.
type EventBroadcaster interface {
	EventSink
	ClientCount() int
}
