package engine

import (
	"context"

	"github.com/wolfden-games/wolfden-server/internal/comms"
)

// Relay is a long-lived background message forwarder (wolf night chat, the
// jail line, dead chat). It is started when its precondition becomes true
// and must be stopped synchronously before the next phase begins so no
// actor can relay into a closed channel.
type Relay struct {
	Name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// StartRelay launches the forwarding loop in the background. The loop
// repeatedly waits for a matching inbound message and forwards it; it exits
// when the relay is stopped.
func StartRelay(parent context.Context, name string, ch comms.Channel, match func(comms.Inbound) bool, forward func(comms.Inbound)) *Relay {
	ctx, cancel := context.WithCancel(parent)
	r := &Relay{Name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		for {
			in, err := ch.NextMessage(ctx, match)
			if err != nil {
				return
			}
			forward(in)
		}
	}()
	return r
}

// Stop cancels the relay and blocks until the loop has fully exited.
func (r *Relay) Stop() {
	r.cancel()
	<-r.done
}
