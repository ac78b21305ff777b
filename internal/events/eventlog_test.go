package events

import (
	"sync"
	"testing"
	"time"
)

type capturingPersister struct {
	mu   sync.Mutex
	seen []GameEvent
}

func (c *capturingPersister) Append(e GameEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, e)
	return nil
}

func TestAppendFillsIdentityAndTimestamp(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(GameEvent{SessionID: "s-1", Type: EventTypeDeath, Round: 1})

	got := log.Replay()
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].ID == "" {
		t.Error("append should assign an ID")
	}
	if got[0].Timestamp.IsZero() {
		t.Error("append should stamp the event")
	}
}

func TestGetByRoundAndActor(t *testing.T) {
	log := NewEventLog(nil)
	log.Append(GameEvent{Type: EventTypeVote, ActorID: "a", Round: 1})
	log.Append(GameEvent{Type: EventTypeVote, ActorID: "b", Round: 1})
	log.Append(GameEvent{Type: EventTypeLynch, TargetID: "b", Round: 2})

	if got := log.GetByRound(1); len(got) != 2 {
		t.Errorf("round 1 has %d events, want 2", len(got))
	}
	if got := log.GetByActor("a"); len(got) != 1 {
		t.Errorf("actor a has %d events, want 1", len(got))
	}
}

func TestAppendWritesThrough(t *testing.T) {
	p := &capturingPersister{}
	log := NewEventLog(p)
	log.Append(GameEvent{SessionID: "s-1", Type: EventTypeSave})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		n := len(p.seen)
		p.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("persister never saw the appended event")
}
