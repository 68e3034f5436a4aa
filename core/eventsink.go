package core

import "pkt.systems/tabtidy/schema"

// EventSink receives operation lifecycle events from the engine.
type EventSink interface {
	OnOperationEvent(event schema.OperationEvent)
}
