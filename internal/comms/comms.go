// Package comms defines the transport contract the engine consumes. The
// engine never assumes a specific transport; it only needs reliable
// per-actor delivery and a way to wait for the next matching inbound
// message.
package comms

import (
	"context"
	"time"
)

// Inbound is a free-form message received from an actor.
type Inbound struct {
	ActorID string
	Text    string
	At      time.Time
}

// Channel is implemented by the hosting collaborator (the websocket hub in
// this repository, a chat bridge elsewhere).
type Channel interface {
	// SendToActor delivers a private message. A delivery failure is
	// reported but never fatal: the engine treats the actor as unreachable
	// for that prompt.
	SendToActor(actorID, message string) error

	// SendToGroup delivers a message to several actors.
	SendToGroup(actorIDs []string, message string) error

	// Broadcast delivers a message to every participant and observer.
	Broadcast(message string) error

	// NextMessage blocks until an inbound message matching the predicate
	// arrives or ctx is done, in which case it returns ctx.Err().
	NextMessage(ctx context.Context, match func(Inbound) bool) (Inbound, error)
}
