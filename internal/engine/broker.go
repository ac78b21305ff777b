package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/platform/logger"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// Request describes one solicitation: ask the actor to pick up to Count
// targets from Candidates within Timeout.
type Request struct {
	Actor      *player.Player
	Prompt     string
	Candidates []*player.Player
	Count      int
	Required   bool
	AllowSelf  bool
	// AllowDead permits soliciting a dead actor (dying-breath abilities).
	AllowDead bool
	Timeout   time.Duration
}

// Selection is the outcome of a solicitation. A timeout is not an error;
// Targets holds whatever the actor managed to pick before it expired.
type Selection struct {
	Targets  []*player.Player
	NoAction bool
	TimedOut bool
}

// Broker runs timed target solicitations over the communication channel.
// It is reentrant: any number of solicitations may run concurrently.
type Broker struct {
	ch  comms.Channel
	log *logger.Logger
}

// NewBroker creates a broker on the given channel.
func NewBroker(ch comms.Channel, log *logger.Logger) *Broker {
	return &Broker{ch: ch, log: log}
}

// Solicit asks the actor to pick targets. Role-blocked actors (jailed or
// asleep) are never prompted and resolve to an empty selection immediately.
// Invalid picks (out of range, duplicate, self where disallowed) are
// rejected with a re-prompt inside the same time budget.
func (b *Broker) Solicit(ctx context.Context, req Request) Selection {
	if req.Actor == nil || (!req.Actor.CanAct() && !req.AllowDead) {
		return Selection{NoAction: req.Required}
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	if err := b.ch.SendToActor(req.Actor.ID, renderPrompt(req)); err != nil {
		// Unreachable actor is equivalent to a timeout.
		b.log.Warn(fmt.Sprintf("cannot deliver prompt to %s: %v", req.Actor.Name, err))
		return Selection{NoAction: req.Required, TimedOut: true}
	}

	var picked []*player.Player
	sel := b.collect(ctx, req, &picked)
	metrics.Get().RecordSolicitation(time.Since(start), sel.TimedOut)
	return sel
}

// collect consumes replies until enough targets are picked, the actor
// passes, or the budget runs out.
func (b *Broker) collect(ctx context.Context, req Request, picked *[]*player.Player) Selection {
	for {
		in, err := b.ch.NextMessage(ctx, func(m comms.Inbound) bool {
			return m.ActorID == req.Actor.ID
		})
		if err != nil {
			return b.finish(req, *picked, true)
		}

		text := strings.ToLower(strings.TrimSpace(in.Text))
		if text == "0" || text == "pass" || text == "skip" || text == "done" {
			return b.finish(req, *picked, false)
		}

		ok := true
		for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' }) {
			idx, err := strconv.Atoi(field)
			if err != nil || idx < 1 || idx > len(req.Candidates) {
				ok = false
				break
			}
			target := req.Candidates[idx-1]
			if target.ID == req.Actor.ID && !req.AllowSelf {
				ok = false
				break
			}
			if containsPlayer(*picked, target.ID) {
				ok = false
				break
			}
			*picked = append(*picked, target)
			if len(*picked) >= req.Count {
				return b.finish(req, *picked, false)
			}
		}
		if !ok {
			metrics.Get().RecordInvalidTarget()
			_ = b.ch.SendToActor(req.Actor.ID, "That is not a valid choice, try again.")
		}
	}
}

func (b *Broker) finish(req Request, picked []*player.Player, timedOut bool) Selection {
	return Selection{
		Targets:  picked,
		NoAction: req.Required && len(picked) == 0,
		TimedOut: timedOut,
	}
}

// SolicitEach fans out one solicitation per request concurrently and joins
// them all before returning. Results are index-aligned with the requests.
func (b *Broker) SolicitEach(ctx context.Context, reqs []Request) []Selection {
	out := make([]Selection, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = b.Solicit(ctx, reqs[i])
		}(i)
	}
	wg.Wait()
	return out
}

// Confirm asks the actor a yes/no question. Anything other than an
// affirmative reply within the budget counts as no.
func (b *Broker) Confirm(ctx context.Context, actor *player.Player, question string, timeout time.Duration) bool {
	if actor == nil || !actor.CanAct() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.ch.SendToActor(actor.ID, question+" (yes/no)"); err != nil {
		return false
	}
	in, err := b.ch.NextMessage(ctx, func(m comms.Inbound) bool {
		return m.ActorID == actor.ID
	})
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(in.Text)) {
	case "yes", "y", "si", "ok":
		return true
	}
	return false
}

func renderPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	for i, c := range req.Candidates {
		sb.WriteString(fmt.Sprintf("\n%d. %s", i+1, c.Name))
	}
	if req.Count > 1 {
		sb.WriteString(fmt.Sprintf("\nPick up to %d, one number per message.", req.Count))
	}
	if !req.Required {
		sb.WriteString("\nReply 0 to pass.")
	}
	return sb.String()
}

func containsPlayer(ps []*player.Player, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}
