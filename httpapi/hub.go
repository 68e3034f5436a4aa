package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                 `json:"seq"`
	Type      string                 `json:"type"`
	Operation *schema.OperationEvent `json:"operation,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Hub broadcasts operation events to stream subscribers and keeps a bounded
// history for replay.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         pslog.Ctx(context.Background()),
	}
}

// SetLogger replaces the hub logger.
func (h *Hub) SetLogger(logger pslog.Logger) {
	if h == nil || logger == nil {
		return
	}
	h.mu.Lock()
	h.log = logger
	h.mu.Unlock()
}

// OnOperationEvent implements core.EventSink.
func (h *Hub) OnOperationEvent(event schema.OperationEvent) {
	if h == nil {
		return
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	h.publish(StreamEvent{
		Type:      "operation",
		Operation: &event,
		Timestamp: ts,
	})
}

// Subscribe registers a subscriber. It returns the event channel, an
// unsubscribe func and the sequence number of the newest published event.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	seq := h.seq
	log := h.log
	log.Info("hub subscribe", "subs", len(h.subs), "history", len(h.history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns retained events with a sequence number greater than after.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	log := h.log
	h.mu.Unlock()

	if dropped > 0 {
		log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
