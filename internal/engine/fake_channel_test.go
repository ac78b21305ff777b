package engine

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/game"
	"github.com/wolfden-games/wolfden-server/internal/platform/config"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
)

// fakeChannel is a scripted in-memory comms.Channel. Tests preload inbound
// messages; NextMessage consumes the first match and blocks otherwise.
type fakeChannel struct {
	mu         sync.Mutex
	inbox      []comms.Inbound
	private    map[string][]string
	broadcasts []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{private: make(map[string][]string)}
}

func (f *fakeChannel) queue(actorID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, comms.Inbound{ActorID: actorID, Text: text, At: time.Now()})
}

func (f *fakeChannel) SendToActor(actorID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.private[actorID] = append(f.private[actorID], message)
	return nil
}

func (f *fakeChannel) SendToGroup(actorIDs []string, message string) error {
	for _, id := range actorIDs {
		_ = f.SendToActor(id, message)
	}
	return nil
}

func (f *fakeChannel) Broadcast(message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, message)
	return nil
}

func (f *fakeChannel) NextMessage(ctx context.Context, match func(comms.Inbound) bool) (comms.Inbound, error) {
	for {
		f.mu.Lock()
		for i, in := range f.inbox {
			if match(in) {
				f.inbox = append(f.inbox[:i], f.inbox[i+1:]...)
				f.mu.Unlock()
				return in, nil
			}
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return comms.Inbound{}, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// queueWhenPrompted waits until the actor has received a message containing
// promptPart, then queues the reply. Used for prompts issued mid-pipeline.
func (f *fakeChannel) queueWhenPrompted(actorID, promptPart, reply string) {
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			for _, m := range f.sentTo(actorID) {
				if strings.Contains(m, promptPart) {
					f.queue(actorID, reply)
					return
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
}

func (f *fakeChannel) sentTo(actorID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.private[actorID]...)
}

func (f *fakeChannel) broadcastLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.broadcasts...)
}

// testConfig keeps every window tiny so pipeline tests finish fast.
func testConfig() *config.Config {
	return &config.Config{
		NightActionTimeout: 60 * time.Millisecond,
		WolfChatWindow:     10 * time.Millisecond,
		NominationWindow:   60 * time.Millisecond,
		VoteTimeout:        60 * time.Millisecond,
	}
}

// testSession builds a session over a fake channel with a fixed roster.
func testSession(ch *fakeChannel, roles ...role.Role) *Session {
	s := NewSession("room-1", role.ModeClassic, nil, testConfig(), ch,
		logger.NewLogger(), events.NewEventLog(nil), nil,
		rand.New(rand.NewSource(42)))
	names := []string{"Ana", "Bram", "Cleo", "Dara", "Eryk", "Fay", "Gus", "Hilda"}
	for i, r := range roles {
		id := string(rune('a' + i))
		s.G.Players = append(s.G.Players, player.New(id, names[i], r))
	}
	s.G.Phase = game.PhaseNight
	return s
}
