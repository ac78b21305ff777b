package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/game"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// maxNominees caps the day's ballot size.
const maxNominees = 10

// dayState is the scratchpad shared by the day steps.
type dayState struct {
	voteCancelled  bool
	secondElection bool
	// voted collects everyone who cast a ballot, for the strike pass.
	voted map[string]bool
	// eligible is everyone who could have voted in the last election.
	eligible []*player.Player
}

// RunDay executes one full day: recap, resurrections, day abilities,
// nomination, election, lynch, the optional second election and the
// inactivity strikes.
func (s *Session) RunDay(ctx context.Context, deaths []PendingKill) {
	g := s.G
	g.Phase = game.PhaseDay
	s.Events.Append(events.GameEvent{
		SessionID: s.ID, Type: events.EventTypePhaseChange,
		Payload: "day", Round: g.Round, Public: true,
	})
	_ = s.ch.Broadcast(fmt.Sprintf("The sun rises on day %d.", g.Round))

	// Jail and nightmare sleep are night-scoped: the prisoner walks free at
	// dawn and the haunted wake up. Only the voodoo hex mutes through the day.
	for _, p := range g.Players {
		p.Block.Jailed = false
		p.Block.Asleep = false
	}

	// Step 1: death recap with cascades.
	if len(deaths) == 0 {
		_ = s.ch.Broadcast("Everyone wakes unharmed. The night claimed no one.")
	}
	s.ApplyDeaths(ctx, deaths)
	if s.finished() {
		return
	}
	// Give the table a moment to read the recap before play resumes.
	sleepFor(ctx, s.cfg.ReadDelay)

	// Step 2: queued resurrections whose delay has elapsed.
	s.deliverResurrections()
	if s.finished() {
		return
	}

	ds := &dayState{voted: map[string]bool{}}

	// Step 3: day abilities in priority order.
	s.dayAbilities(ctx, ds)
	if s.finished() {
		return
	}

	// Steps 4-5: nomination window and election, unless short-circuited.
	if !ds.voteCancelled {
		s.runElection(ctx, ds)
		if s.finished() {
			return
		}

		// Step 6: the judge's secret phrase repeats the election once.
		if ds.secondElection {
			_ = s.ch.Broadcast("A voice demands a second election. The village votes again.")
			s.runElection(ctx, ds)
			if s.finished() {
				return
			}
		}

		// Step 7: inactivity strikes.
		s.applyStrikes(ctx, ds)
	}
}

// ApplyDeaths resolves a batch of deaths breadth-first: every companion
// effect of a death (lover grief, dying-breath shots, revenge marks,
// inheritance) is appended to the tail of the queue, never recursed into.
func (s *Session) ApplyDeaths(ctx context.Context, deaths []PendingKill) {
	queue := append([]PendingKill(nil), deaths...)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		t := e.Target
		if !s.G.Kill(t, e.Group) {
			continue
		}

		_ = s.ch.Broadcast(fmt.Sprintf("%s is dead. They were the %s.", t.Name, t.RevealedRole()))
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeDeath,
			TargetID: t.ID, Payload: string(e.Group), Round: s.G.Round, Public: true,
		})
		metrics.Get().RecordDeath(string(e.Group))

		queue = append(queue, s.cascade(ctx, t, e.Group)...)
	}
}

// cascade computes the companion effects of one applied death.
func (s *Session) cascade(ctx context.Context, t *player.Player, group game.KillerGroup) []PendingKill {
	var out []PendingKill

	for _, pid := range s.G.Partners(t.ID) {
		partner := s.G.PlayerByID(pid)
		if partner != nil && partner.Alive() {
			_ = s.ch.Broadcast(fmt.Sprintf("%s cannot live without %s.", partner.Name, t.Name))
			out = append(out, PendingKill{Target: partner, Group: game.KillerRevenge})
		}
	}

	switch t.Role() {
	case role.Hunter:
		sel := s.broker.Solicit(ctx, Request{
			Actor: t, Prompt: "With your dying breath, choose who to shoot.",
			Candidates: s.G.Alive(), AllowDead: true, Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			_ = s.ch.Broadcast(fmt.Sprintf("The hunter's last shot strikes %s.", sel.Targets[0].Name))
			out = append(out, PendingKill{Target: sel.Targets[0], Group: game.KillerRevenge})
		}
	case role.Avenger:
		if group == game.KillerVote {
			sel := s.broker.Solicit(ctx, Request{
				Actor: t, Prompt: "Choose the accuser you drag down with you.",
				Candidates: s.G.Alive(), AllowDead: true, Timeout: s.cfg.VoteTimeout,
			})
			if len(sel.Targets) > 0 {
				out = append(out, PendingKill{Target: sel.Targets[0], Group: game.KillerRevenge})
			}
		}
	case role.JuniorWerewolf:
		if marked := s.G.PlayerByID(t.RevengeMark); marked != nil && marked.Alive() {
			_ = s.ch.Broadcast(fmt.Sprintf("The young wolf's pack takes its revenge on %s.", marked.Name))
			out = append(out, PendingKill{Target: marked, Group: game.KillerRevenge})
		}
	case role.Loudmouth:
		if marked := s.G.PlayerByID(t.RevengeMark); marked != nil && marked.Alive() {
			_ = s.ch.Broadcast(fmt.Sprintf("The loudmouth's secret spills out: %s is the %s!", marked.Name, marked.Role()))
		}
	case role.Seer:
		for _, a := range s.G.AliveWithRole(role.SeerApprentice) {
			a.SetRole(role.Seer)
			_ = s.ch.SendToActor(a.ID, "Your master is gone. The gift of sight is yours now.")
		}
	case role.KittenWolf:
		s.G.KittenBite = true
	case role.Jester:
		if group == game.KillerVote {
			s.G.ForcedWinnerID = t.ID
			s.G.ForcedSide = role.SideJester
		}
	}

	if group == game.KillerVote {
		for _, h := range s.G.Players {
			if h.Role() == role.HeadHunter && h.Alive() && h.HuntTarget == t.ID {
				s.G.ForcedWinnerID = h.ID
				s.G.ForcedSide = role.SideHeadHunter
			}
		}
	}

	// The grave robber inherits the first grave dug; the maid may choose to.
	for _, r := range s.G.AliveWithRole(role.GraveRobber) {
		if r.OneShot.RobeTaken {
			continue
		}
		r.OneShot.RobeTaken = true
		r.SetRole(t.Role())
		_ = s.ch.SendToActor(r.ID, fmt.Sprintf("You rob the grave of %s. You are the %s now.", t.Name, t.Role()))
	}
	for _, m := range s.G.AliveWithRole(role.Maid) {
		if m.OneShot.RobeTaken {
			continue
		}
		if s.broker.Confirm(ctx, m, fmt.Sprintf("Pick up the role %s left behind (%s) and discard your own?", t.Name, t.Role()), s.cfg.VoteTimeout) {
			m.OneShot.RobeTaken = true
			m.SetRole(t.Role())
			_ = s.ch.SendToActor(m.ID, fmt.Sprintf("You quietly take what %s left behind. You are the %s now.", t.Name, t.Role()))
		}
	}
	return out
}

// deliverResurrections applies every queued revival whose delay elapsed and
// counts down the rest. A queued revival outlives its caster.
func (s *Session) deliverResurrections() {
	var still []game.PendingResurrection
	for _, r := range s.G.Resurrections {
		if r.Delay > 0 {
			r.Delay--
			still = append(still, r)
			continue
		}
		t := s.G.PlayerByID(r.TargetID)
		if s.G.Resurrect(t) {
			_ = s.ch.Broadcast(fmt.Sprintf("%s walks among the living again.", t.Name))
			s.Events.Append(events.GameEvent{
				SessionID: s.ID, Type: events.EventTypeResurrection,
				ActorID: r.CasterID, TargetID: r.TargetID, Round: s.G.Round, Public: true,
			})
		}
	}
	s.G.Resurrections = still
}

// dayAbilities resolves the day-only abilities in priority order. The
// pacifist's reveal short-circuits the rest of the day.
func (s *Session) dayAbilities(ctx context.Context, ds *dayState) {
	if s.G.ElderPowerLost {
		return
	}

	for _, p := range s.G.AliveWithRole(role.Mayor) {
		if p.OneShot.MayorReveal || !p.CanAct() {
			continue
		}
		if s.broker.Confirm(ctx, p, "Reveal your office and take control of today's nominations?", s.cfg.VoteTimeout) {
			p.OneShot.MayorReveal = true
			s.mayorID = p.ID
			_ = s.ch.Broadcast(fmt.Sprintf("%s reveals the mayoral seal. Only the mayor's nominations count today.", p.Name))
		}
	}

	for _, p := range s.G.AliveWithRole(role.Priest) {
		if p.OneShot.PriestWater || !p.CanAct() {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Throw your holy water at a suspect? A wolf burns; anyone else and you pay the price.",
			Candidates: s.othersOf(p), Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) == 0 {
			continue
		}
		p.OneShot.PriestWater = true
		t := sel.Targets[0]
		if role.TeamOf(t.Role()) == role.TeamWolf || t.Converted {
			_ = s.ch.Broadcast(fmt.Sprintf("The holy water sears %s!", t.Name))
			s.ApplyDeaths(ctx, []PendingKill{{Target: t, Group: game.KillerReferee}})
		} else {
			_ = s.ch.Broadcast(fmt.Sprintf("The water splashes harmlessly off %s. The priest collapses.", t.Name))
			s.ApplyDeaths(ctx, []PendingKill{{Target: p, Group: game.KillerReferee}})
		}
		if s.finished() {
			return
		}
	}

	for _, p := range s.G.AliveWithRole(role.Gravedigger) {
		dead := s.deadPlayers(nil)
		if !p.CanAct() || len(dead) == 0 {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose a grave to dig into.",
			Candidates: dead, Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			t := sel.Targets[0]
			verdict := "stood with the village"
			if t.Converted || role.TeamOf(t.Role()) == role.TeamWolf {
				verdict = "hunted with the wolves"
			} else if role.TeamOf(t.Role()) == role.TeamSolo {
				verdict = "served no one but themselves"
			}
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("The dirt tells its story: %s %s.", t.Name, verdict))
		}
	}

	for _, p := range s.G.AliveWithRole(role.Forger) {
		if p.Count.Forges <= 0 || !p.CanAct() {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Forge a shield today? Choose its bearer.",
			Candidates: s.G.Alive(), AllowSelf: true, Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			p.Count.Forges--
			sel.Targets[0].Protection.Shields++
			_ = s.ch.SendToActor(sel.Targets[0].ID, "Someone slipped a forged shield under your door.")
		}
	}

	for _, p := range s.G.AliveWithRole(role.Marksman) {
		if p.Count.Arrows <= 0 || !p.CanAct() {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: fmt.Sprintf("Fire an arrow at a suspect? (%d left)", p.Count.Arrows),
			Candidates: s.othersOf(p), Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			p.Count.Arrows--
			_ = s.ch.Broadcast(fmt.Sprintf("An arrow flies from the crowd and strikes %s!", sel.Targets[0].Name))
			s.ApplyDeaths(ctx, []PendingKill{{Target: sel.Targets[0], Group: game.KillerRevenge}})
			if s.finished() {
				return
			}
		}
	}

	for _, p := range s.G.AliveWithRole(role.Loudmouth) {
		if p.RevengeMark != "" || !p.CanAct() {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Mark the player whose role you will reveal with your death.",
			Candidates: s.othersOf(p), Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			p.RevengeMark = sel.Targets[0].ID
		}
	}

	for _, p := range s.G.AliveWithRole(role.Troublemaker) {
		if p.OneShot.Swap || !p.CanAct() {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Stir up trouble? Choose two players to swap roles.",
			Candidates: s.othersOf(p), Count: 2, Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) == 2 {
			p.OneShot.Swap = true
			a, b := sel.Targets[0], sel.Targets[1]
			ra, rb := a.Role(), b.Role()
			a.SetRole(rb)
			b.SetRole(ra)
			_ = s.ch.SendToActor(a.ID, fmt.Sprintf("You wake up different. You are the %s now.", rb))
			_ = s.ch.SendToActor(b.ID, fmt.Sprintf("You wake up different. You are the %s now.", ra))
		}
	}

	for _, p := range s.G.AliveWithRole(role.Pacifist) {
		if p.OneShot.PacifistReveal || !p.CanAct() {
			continue
		}
		if s.broker.Confirm(ctx, p, "Reveal yourself and cancel today's vote?", s.cfg.VoteTimeout) {
			p.OneShot.PacifistReveal = true
			ds.voteCancelled = true
			_ = s.ch.Broadcast(fmt.Sprintf("%s steps forward: there will be no bloodshed today. The vote is cancelled.", p.Name))
			return
		}
	}
}

// runElection runs the nomination window, the weighted vote and the lynch.
func (s *Session) runElection(ctx context.Context, ds *dayState) {
	nominees, aborted := s.collectNominations(ctx, ds)
	if aborted {
		_ = s.ch.Broadcast("An objection rings out. Today's vote is abandoned.")
		ds.voteCancelled = true
		return
	}
	if len(nominees) == 0 {
		_ = s.ch.Broadcast("No one was nominated. The village disperses.")
		s.Events.Append(events.GameEvent{SessionID: s.ID, Type: events.EventTypeNoLynch, Round: s.G.Round, Public: true})
		return
	}

	var victim *player.Player
	if len(nominees) == 1 {
		victim = nominees[0]
		ds.eligible = nil
	} else {
		victim = s.holdVote(ctx, ds, nominees)
		if victim == nil {
			_ = s.ch.Broadcast("The vote is tied. No one is lynched.")
			s.Events.Append(events.GameEvent{SessionID: s.ID, Type: events.EventTypeNoLynch, Round: s.G.Round, Public: true})
			return
		}
	}
	s.resolveLynch(ctx, victim)
}

// collectNominations gathers up to maxNominees distinct nominees from the
// open window. The revealed mayor, while alive, restricts the field to
// their own picks;
// the judge's objection aborts the vote, and their secret phrase schedules
// a second election.
func (s *Session) collectNominations(ctx context.Context, ds *dayState) ([]*player.Player, bool) {
	_ = s.ch.Broadcast("Nominations are open. Say 'nominate <name>' to put someone forward.")

	wctx, cancel := context.WithTimeout(ctx, s.cfg.NominationWindow)
	defer cancel()

	var nominees []*player.Player
	aborted := false
	for {
		in, err := s.ch.NextMessage(wctx, func(m comms.Inbound) bool {
			p := s.G.PlayerByID(m.ActorID)
			return p != nil && p.Alive() && !p.IsObserver && !p.Block.Muted
		})
		if err != nil {
			break
		}
		p := s.G.PlayerByID(in.ActorID)
		text := strings.TrimSpace(in.Text)
		lower := strings.ToLower(text)

		if lower == "objection" && p.Role() == role.Judge && !p.OneShot.JudgeObjection {
			p.OneShot.JudgeObjection = true
			aborted = true
			break
		}
		if s.judgePhrase != "" && strings.Contains(lower, s.judgePhrase) &&
			p.Role() == role.Judge && !p.OneShot.JudgeElection {
			p.OneShot.JudgeElection = true
			ds.secondElection = true
			continue
		}
		if !strings.HasPrefix(lower, "nominate ") {
			continue
		}
		if m := s.G.PlayerByID(s.mayorID); m != nil && m.Alive() && in.ActorID != s.mayorID {
			continue
		}
		name := strings.TrimSpace(text[len("nominate "):])
		nominee := s.playerByName(name)
		if nominee == nil || !nominee.Alive() || containsPlayer(nominees, nominee.ID) {
			continue
		}
		nominees = append(nominees, nominee)
		_ = s.ch.Broadcast(fmt.Sprintf("%s has been nominated.", nominee.Name))
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeNomination,
			ActorID: in.ActorID, TargetID: nominee.ID, Round: s.G.Round, Public: true,
		})
		if len(nominees) >= maxNominees {
			break
		}
	}
	return nominees, aborted
}

// holdVote runs the weighted plurality vote. The winner needs a strictly
// higher total than the runner-up; an exact tie means no lynch.
func (s *Session) holdVote(ctx context.Context, ds *dayState, nominees []*player.Player) *player.Player {
	voters := s.G.Alive()
	ds.eligible = voters

	reqs := make([]Request, len(voters))
	for i, v := range voters {
		reqs[i] = Request{
			Actor: v, Prompt: "The village votes. Choose who to lynch.",
			Candidates: nominees, Required: true, AllowSelf: true,
			Timeout: s.cfg.VoteTimeout,
		}
	}
	sels := s.broker.SolicitEach(ctx, reqs)

	tally := map[string]int{}
	for i, sel := range sels {
		if len(sel.Targets) == 0 {
			continue
		}
		ds.voted[voters[i].ID] = true
		weight := 1
		if voters[i].Role() == role.Sheriff {
			weight = 2
		}
		tally[sel.Targets[0].ID] += weight
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeVote,
			ActorID: voters[i].ID, TargetID: sel.Targets[0].ID, Round: s.G.Round,
		})
	}

	winnerID, top, runner := "", 0, 0
	for id, n := range tally {
		if n > top {
			winnerID, runner, top = id, top, n
		} else if n > runner {
			runner = n
		}
	}
	if winnerID == "" || top == runner {
		return nil
	}
	return s.G.PlayerByID(winnerID)
}

// resolveLynch applies the lynch after the save abilities had their say.
func (s *Session) resolveLynch(ctx context.Context, victim *player.Player) {
	for _, p := range s.G.AliveWithRole(role.FlowerChild) {
		if p.OneShot.FlowerSave || !p.CanAct() {
			continue
		}
		if s.broker.Confirm(ctx, p, fmt.Sprintf("Spend your gift to spare %s from the rope?", victim.Name), s.cfg.VoteTimeout) {
			p.OneShot.FlowerSave = true
			_ = s.ch.Broadcast(fmt.Sprintf("Flowers rain over the square. %s is spared.", victim.Name))
			return
		}
	}
	if victim.Role() == role.Prince && !victim.OneShot.PrinceSave {
		victim.OneShot.PrinceSave = true
		_ = s.ch.Broadcast(fmt.Sprintf("The rope is cut: %s is of royal blood and cannot be lynched today.", victim.Name))
		return
	}

	s.Events.Append(events.GameEvent{
		SessionID: s.ID, Type: events.EventTypeLynch,
		TargetID: victim.ID, Round: s.G.Round, Public: true,
	})
	s.ApplyDeaths(ctx, []PendingKill{{Target: victim, Group: game.KillerVote}})
}

// applyStrikes punishes the voters who sat out the day's election. The
// strike total accrues across the whole session; it is never reset by a
// later vote.
func (s *Session) applyStrikes(ctx context.Context, ds *dayState) {
	var eliminated []PendingKill
	for _, p := range ds.eligible {
		if !p.Alive() || ds.voted[p.ID] {
			continue
		}
		p.VoteStrikes++
		if p.VoteStrikes >= 3 {
			_ = s.ch.Broadcast(fmt.Sprintf("%s has ignored the village one time too many and is cast out.", p.Name))
			eliminated = append(eliminated, PendingKill{Target: p, Group: game.KillerReferee})
		} else {
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You did not vote. Strike %d of 3.", p.VoteStrikes))
		}
	}
	s.ApplyDeaths(ctx, eliminated)
}

func (s *Session) playerByName(name string) *player.Player {
	for _, p := range s.G.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}
