package httpapi

import (
	"testing"

	"pkt.systems/tabtidy/schema"
)

func TestHubHistoryIsBounded(t *testing.T) {
	hub := NewHub(2)
	for i := 0; i < 5; i++ {
		hub.OnOperationEvent(schema.OperationEvent{ID: "op", Status: schema.OperationStarted})
	}
	events := hub.Replay(0)
	if len(events) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(events))
	}
	if events[0].Seq != 4 || events[1].Seq != 5 {
		t.Fatalf("unexpected retained seqs %d %d", events[0].Seq, events[1].Seq)
	}
	if got := hub.Replay(4); len(got) != 1 || got[0].Seq != 5 {
		t.Fatalf("unexpected replay after 4: %+v", got)
	}
}

func TestHubSubscribeReceivesNewEvents(t *testing.T) {
	hub := NewHub(8)
	hub.OnOperationEvent(schema.OperationEvent{ID: "before"})
	ch, unsubscribe, head := hub.Subscribe()
	if head != 1 {
		t.Fatalf("expected head 1, got %d", head)
	}
	hub.OnOperationEvent(schema.OperationEvent{ID: "after", Operation: schema.OpSort})
	event := <-ch
	if event.Seq != 2 || event.Operation == nil || event.Operation.ID != "after" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	hub.OnOperationEvent(schema.OperationEvent{ID: "late"})
}
