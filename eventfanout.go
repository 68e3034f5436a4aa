package tabtidy

import (
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnOperationEvent(event schema.OperationEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOperationEvent(event)
	}
}

// fanoutSinks collapses sinks into one EventSink, skipping nils. It returns nil when none remain.
func fanoutSinks(sinks ...core.EventSink) core.EventSink {
	out := make([]core.EventSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return eventFanout{sinks: out}
	}
}
