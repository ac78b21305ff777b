package network

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
)

func inbound(actorID, text string) comms.Inbound {
	return comms.Inbound{ActorID: actorID, Text: text, At: time.Now()}
}

func TestNextMessageReplaysBacklog(t *testing.T) {
	h := NewHub(logger.NewLogger())
	h.dispatch(inbound("a", "early bird"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in, err := h.NextMessage(ctx, func(m comms.Inbound) bool { return m.ActorID == "a" })
	if err != nil {
		t.Fatal(err)
	}
	if in.Text != "early bird" {
		t.Errorf("got %q, want the parked message", in.Text)
	}
	if len(h.backlog) != 0 {
		t.Error("a claimed message must leave the backlog")
	}
}

func TestNextMessageWakesWaiter(t *testing.T) {
	h := NewHub(logger.NewLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan comms.Inbound, 1)
	go func() {
		in, err := h.NextMessage(ctx, func(m comms.Inbound) bool { return m.ActorID == "a" })
		if err == nil {
			got <- in
		}
	}()

	// Let the waiter register before dispatching.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.waiters)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	h.dispatch(inbound("a", "hello"))
	select {
	case in := <-got:
		if in.Text != "hello" {
			t.Errorf("got %q, want hello", in.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestNextMessageCancelDropsWaiter(t *testing.T) {
	h := NewHub(logger.NewLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.NextMessage(ctx, func(comms.Inbound) bool { return true })
	if err == nil {
		t.Fatal("expected a context error")
	}
	h.mu.Lock()
	n := len(h.waiters)
	h.mu.Unlock()
	if n != 0 {
		t.Errorf("%d waiters left behind after cancellation", n)
	}
}

func TestDispatchSkipsNonMatchingWaiter(t *testing.T) {
	h := NewHub(logger.NewLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	wolfCh := make(chan comms.Inbound, 1)
	go func() {
		in, err := h.NextMessage(ctx, func(m comms.Inbound) bool { return m.ActorID == "wolf" })
		if err == nil {
			wolfCh <- in
		}
	}()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.waiters)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	// A villager message passes the wolf's waiter by and parks instead.
	h.dispatch(inbound("villager", "good evening"))
	h.dispatch(inbound("wolf", "grr"))

	select {
	case in := <-wolfCh:
		if in.ActorID != "wolf" {
			t.Errorf("wolf waiter received %s's message", in.ActorID)
		}
	case <-time.After(time.Second):
		t.Fatal("wolf waiter never woke up")
	}
	h.mu.Lock()
	parked := len(h.backlog)
	h.mu.Unlock()
	if parked != 1 {
		t.Errorf("backlog holds %d messages, want the villager's 1", parked)
	}
}

func TestBacklogIsBounded(t *testing.T) {
	h := NewHub(logger.NewLogger())
	for i := 0; i < backlogSize+10; i++ {
		h.dispatch(inbound("a", fmt.Sprintf("msg-%d", i)))
	}
	if len(h.backlog) != backlogSize {
		t.Errorf("backlog grew to %d, cap is %d", len(h.backlog), backlogSize)
	}
	if h.backlog[0].Text != "msg-10" {
		t.Errorf("oldest kept message is %q, trimming should drop the head", h.backlog[0].Text)
	}
}

func TestSendToActorRequiresConnection(t *testing.T) {
	h := NewHub(logger.NewLogger())
	if err := h.SendToActor("ghost", "anyone home?"); err == nil {
		t.Error("expected an error for a disconnected actor")
	}
}

func TestHubRegisterAndSend(t *testing.T) {
	h := NewHub(logger.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := &Client{hub: h, send: make(chan []byte, 4), actorID: "a"}
	h.register <- c

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.SendToActor("a", "welcome") == nil {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case payload := <-c.send:
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil {
			t.Fatal(err)
		}
		if f.Type != "message" || f.Text != "welcome" {
			t.Errorf("frame = %+v, want a private message frame", f)
		}
	case <-time.After(time.Second):
		t.Fatal("registered client never received the frame")
	}
}
