package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/comms"
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/game"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// PendingKill is one entry of the night's death list, tagged with the
// attacker group for the immunity and forensic checks.
type PendingKill struct {
	Target *player.Player
	Group  game.KillerGroup
	// Attacker is the single hand behind the kill, nil for the pack and
	// other diffuse causes.
	Attacker *player.Player
}

// nightState is the mutable scratchpad the twelve stages fold into.
type nightState struct {
	pending []PendingKill
	// wolfTarget is the bloc's chosen victim, kept even when the kill was
	// replaced by a curse so the conversion stage can find it.
	wolfTarget *player.Player
	wolfCurse  bool
}

func (ns *nightState) add(t *player.Player, g game.KillerGroup) {
	ns.addFrom(nil, t, g)
}

func (ns *nightState) addFrom(attacker, t *player.Player, g game.KillerGroup) {
	if t == nil || ns.contains(t.ID) {
		return
	}
	ns.pending = append(ns.pending, PendingKill{Target: t, Group: g, Attacker: attacker})
}

func (ns *nightState) contains(id string) bool {
	for _, e := range ns.pending {
		if e.Target.ID == id {
			return true
		}
	}
	return false
}

func (ns *nightState) remove(id string) bool {
	for i, e := range ns.pending {
		if e.Target.ID == id {
			ns.pending = append(ns.pending[:i], ns.pending[i+1:]...)
			return true
		}
	}
	return false
}

// NightStage is one named step of the nocturnal pipeline. The slice order
// in NightStages is the resolution order and must not be rearranged.
type NightStage struct {
	Name string
	Run  func(ctx context.Context, ns *nightState)
}

// NightStages returns the twelve stages in resolution order.
func (s *Session) NightStages() []NightStage {
	return []NightStage{
		{"setup", s.stageSetup},
		{"resurrections", s.stageResurrections},
		{"jail", s.stageJail},
		{"information", s.stageInformation},
		{"wolves", s.stageWolves},
		{"raging-wolf", s.stageRagingWolf},
		{"solo-killers", s.stageSoloKillers},
		{"visits", s.stageVisits},
		{"conversion", s.stageConversion},
		{"protection", s.stageProtection},
		{"potions", s.stagePotions},
		{"finalize", s.stageFinalize},
	}
}

// RunNight executes one full night and returns the death list for the day
// recap. Background relays opened during the night are joined before it
// returns.
func (s *Session) RunNight(ctx context.Context) []PendingKill {
	g := s.G
	g.Round++
	g.Phase = game.PhaseNight
	s.Events.Append(events.GameEvent{
		SessionID: s.ID, Type: events.EventTypePhaseChange,
		Payload: "night", Round: g.Round, Public: true,
	})
	_ = s.ch.Broadcast(fmt.Sprintf("Night %d falls over the village.", g.Round))

	s.startDeadChat(ctx)

	ns := &nightState{}
	for _, stage := range s.NightStages() {
		select {
		case <-ctx.Done():
			s.stopNightRelays()
			return ns.pending
		default:
		}
		s.log.Info(fmt.Sprintf("session %s night %d stage %s", s.ID, g.Round, stage.Name))
		stage.Run(ctx, ns)
	}

	s.stopNightRelays()
	return ns.pending
}

// startDeadChat opens the dead-chat line when a medium-type role is alive.
// Dead players talk freely; the living medium joins with a "dead " prefix.
func (s *Session) startDeadChat(ctx context.Context) {
	var mediums []*player.Player
	for _, r := range []role.Role{role.Medium, role.Ritualist} {
		mediums = append(mediums, s.G.AliveWithRole(r)...)
	}
	if len(mediums) == 0 {
		return
	}

	isMedium := func(id string) bool {
		for _, m := range mediums {
			if m.ID == id {
				return true
			}
		}
		return false
	}
	match := func(in comms.Inbound) bool {
		p := s.G.PlayerByID(in.ActorID)
		if p == nil {
			return false
		}
		if !p.Alive() {
			return true
		}
		return isMedium(in.ActorID) && strings.HasPrefix(strings.ToLower(in.Text), "dead ")
	}
	forward := func(in comms.Inbound) {
		p := s.G.PlayerByID(in.ActorID)
		text := strings.TrimSpace(strings.TrimPrefix(in.Text, "dead "))
		var ids []string
		for _, q := range s.G.Players {
			if q.ID != in.ActorID && (!q.Alive() || isMedium(q.ID)) {
				ids = append(ids, q.ID)
			}
		}
		_ = s.ch.SendToGroup(ids, fmt.Sprintf("[Beyond] %s: %s", p.Name, text))
	}
	s.nightRelays = append(s.nightRelays, StartRelay(ctx, "dead-chat", s.ch, match, forward))
}

func (s *Session) stopNightRelays() {
	for _, r := range s.nightRelays {
		r.Stop()
	}
	s.nightRelays = nil
}

// Stage 1: clear the previous night's flags and apply scheduled effects.
func (s *Session) stageSetup(ctx context.Context, ns *nightState) {
	for _, p := range s.G.Players {
		p.Protection.ClearNight()
		p.Block.Jailed = false
		p.Block.Muted = p.Block.PendingMute
		p.Block.PendingMute = false
		p.Block.Asleep = p.Block.PendingSleep || (p.Role() == role.Drunk && s.G.Round <= 2)
		p.Block.PendingSleep = false
	}
}

// Stage 2: resurrection casters queue revivals; nothing is applied yet.
func (s *Session) stageResurrections(ctx context.Context, ns *nightState) {
	dead := s.deadPlayers(nil)
	if len(dead) == 0 {
		return
	}

	if !s.G.ElderPowerLost {
		for _, p := range s.G.AliveWithRole(role.Ritualist) {
			if p.OneShot.Ritual || !p.CanAct() {
				continue
			}
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Perform the ritual? Choose a soul to bring back.",
				Candidates: dead, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				p.OneShot.Ritual = true
				s.queueResurrection(p, sel.Targets[0], role.Ritualist, 0)
			}
		}
		for _, p := range s.G.AliveWithRole(role.SpiritSummoner) {
			if p.OneShot.Summon || !p.CanAct() {
				continue
			}
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Begin the slow summoning. Choose a spirit; it returns two cycles from now.",
				Candidates: dead, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				p.OneShot.Summon = true
				s.queueResurrection(p, sel.Targets[0], role.SpiritSummoner, 2)
			}
		}
	}

	deadWolves := s.deadPlayers(func(p *player.Player) bool {
		return role.TeamOf(p.Role()) == role.TeamWolf
	})
	for _, p := range s.G.AliveWithRole(role.WolfSummoner) {
		if p.OneShot.Summon || !p.CanAct() || len(deadWolves) == 0 {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Call a fallen packmate back from the grave.",
			Candidates: deadWolves, Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			p.OneShot.Summon = true
			s.queueResurrection(p, sel.Targets[0], role.WolfSummoner, 0)
		}
	}
}

func (s *Session) queueResurrection(caster, target *player.Player, origin role.Role, delay int) {
	s.G.Resurrections = append(s.G.Resurrections, game.PendingResurrection{
		CasterID: caster.ID, TargetID: target.ID, Origin: origin, Delay: delay,
	})
}

// Stage 3: jail assignment plus every simultaneous protector pick. All
// picks fan out concurrently and join before the stage ends.
func (s *Session) stageJail(ctx context.Context, ns *nightState) {
	type apply struct {
		fn func(target *player.Player)
	}
	var reqs []Request
	var applies []apply

	addPick := func(p *player.Player, prompt string, candidates []*player.Player, allowSelf bool, fn func(*player.Player)) {
		if !p.CanAct() || len(candidates) == 0 {
			return
		}
		reqs = append(reqs, Request{
			Actor: p, Prompt: prompt, Candidates: candidates,
			AllowSelf: allowSelf, Timeout: s.cfg.NightActionTimeout,
		})
		applies = append(applies, apply{fn})
	}

	others := func(p *player.Player) []*player.Player {
		var out []*player.Player
		for _, q := range s.G.Alive() {
			if q.ID != p.ID {
				out = append(out, q)
			}
		}
		return out
	}

	if !s.G.ElderPowerLost {
		for _, p := range s.G.AliveWithRole(role.BeastHunter) {
			if !p.CanAct() {
				continue
			}
			if s.broker.Confirm(ctx, p, "Set your trap at the door tonight?", s.cfg.NightActionTimeout) {
				p.Protection.TrapSet = true
			}
		}
		for _, p := range s.G.AliveWithRole(role.Jailer) {
			jailer := p
			addPick(p, "Choose tonight's prisoner.", others(p), false, func(t *player.Player) {
				t.Block.Jailed = true
				t.Protection.ByJailer = true
				_ = s.ch.SendToActor(t.ID, "You have been dragged to the jail for the night.")
				s.startJailLine(ctx, jailer, t)
			})
		}
		for _, p := range s.G.AliveWithRole(role.Doctor) {
			addPick(p, "Choose a patient to shield tonight.", s.G.Alive(), true, func(t *player.Player) {
				t.Protection.ByDoctor = true
			})
		}
		for _, p := range s.G.AliveWithRole(role.Healer) {
			addPick(p, "Choose a patient to tend tonight.", s.G.Alive(), true, func(t *player.Player) {
				t.Protection.ByHealer = true
			})
		}
		for _, p := range s.G.AliveWithRole(role.Bodyguard) {
			guard := p
			addPick(p, "Choose who to guard tonight.", others(p), false, func(t *player.Player) {
				t.Protection.GuardedBy = guard.ID
			})
		}
	}
	for _, p := range s.G.AliveWithRole(role.GuardianWolf) {
		var pack []*player.Player
		for _, w := range s.G.WolfBloc() {
			if w.ID != p.ID {
				pack = append(pack, w)
			}
		}
		addPick(p, "Choose a packmate to watch over tonight.", pack, false, func(t *player.Player) {
			t.Protection.ByHealer = true
		})
	}
	for _, p := range s.G.AliveWithRole(role.WolfShaman) {
		var pack []*player.Player
		for _, w := range s.G.WolfBloc() {
			if w.ID != p.ID {
				pack = append(pack, w)
			}
		}
		addPick(p, "Choose the packmate to ward from village magic tonight.", pack, false, func(t *player.Player) {
			t.Protection.Warded = true
			_ = s.ch.SendToActor(t.ID, "A shamanic ward settles over you for the night.")
		})
	}

	sels := s.broker.SolicitEach(ctx, reqs)
	for i, sel := range sels {
		if len(sel.Targets) > 0 {
			applies[i].fn(sel.Targets[0])
		}
	}
}

// startJailLine opens the two-way line between the jailer and the prisoner.
func (s *Session) startJailLine(ctx context.Context, jailer, prisoner *player.Player) {
	match := func(in comms.Inbound) bool {
		return in.ActorID == prisoner.ID ||
			(in.ActorID == jailer.ID && strings.HasPrefix(strings.ToLower(in.Text), "jail "))
	}
	forward := func(in comms.Inbound) {
		text := strings.TrimSpace(strings.TrimPrefix(in.Text, "jail "))
		if in.ActorID == prisoner.ID {
			_ = s.ch.SendToActor(jailer.ID, fmt.Sprintf("[Prisoner] %s", text))
		} else {
			_ = s.ch.SendToActor(prisoner.ID, fmt.Sprintf("[Jailer] %s", text))
		}
	}
	s.nightRelays = append(s.nightRelays, StartRelay(ctx, "jail-line", s.ch, match, forward))
}

// Stage 4: information roles. Knowledge only, no kill-list mutation.
func (s *Session) stageInformation(ctx context.Context, ns *nightState) {
	alive := s.G.Alive()

	if !s.G.ElderPowerLost {
		for _, p := range s.G.AliveWithRole(role.Seer) {
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Whose role do you wish to see?",
				Candidates: alive, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				_ = s.ch.SendToActor(p.ID, fmt.Sprintf("%s is the %s.", sel.Targets[0].Name, s.seenRole(sel.Targets[0])))
			}
		}
		for _, p := range s.G.AliveWithRole(role.AuraSeer) {
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Whose aura do you wish to read?",
				Candidates: alive, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				aura := "innocent"
				if isEvil(sel.Targets[0]) {
					aura = "evil"
				}
				_ = s.ch.SendToActor(p.ID, fmt.Sprintf("The aura around %s is %s.", sel.Targets[0].Name, aura))
			}
		}
		for _, p := range s.G.AliveWithRole(role.Detective) {
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Choose two players to compare.",
				Candidates: alive, Count: 2, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) == 2 {
				verdict := "walk different paths"
				if isEvil(sel.Targets[0]) == isEvil(sel.Targets[1]) {
					verdict = "walk the same path"
				}
				_ = s.ch.SendToActor(p.ID, fmt.Sprintf("%s and %s %s.", sel.Targets[0].Name, sel.Targets[1].Name, verdict))
			}
		}
		for _, p := range s.G.AliveWithRole(role.Oracle) {
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Whose fate do you wish to glimpse?",
				Candidates: alive, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				_ = s.ch.SendToActor(p.ID, fmt.Sprintf("%s is not the %s.", sel.Targets[0].Name, s.roleTargetIsNot(sel.Targets[0])))
			}
		}
		for _, p := range s.G.AliveWithRole(role.Astrologer) {
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Choose three players to read in the stars.",
				Candidates: alive, Count: 3, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) == 3 {
				evil := 0
				for _, t := range sel.Targets {
					if isEvil(t) {
						evil++
					}
				}
				_ = s.ch.SendToActor(p.ID, fmt.Sprintf("The stars show %d evil soul(s) among your three.", evil))
			}
		}
	}

	for _, p := range s.G.AliveWithRole(role.Sorcerer) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Search a player for the Seer's gift.",
			Candidates: alive, Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			verdict := "does not carry"
			if sel.Targets[0].Role() == role.Seer {
				verdict = "carries"
			}
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("%s %s the Seer's gift.", sel.Targets[0].Name, verdict))
		}
	}
	for _, p := range s.G.AliveWithRole(role.WolfSeer) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Whose role do you sniff out for the pack?",
			Candidates: alive, Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			var packIDs []string
			for _, w := range s.G.WolfBloc() {
				packIDs = append(packIDs, w.ID)
			}
			_ = s.ch.SendToGroup(packIDs, fmt.Sprintf("The wolf seer scents that %s is the %s.", sel.Targets[0].Name, sel.Targets[0].Role()))
		}
	}
}

// seenRole is what a seer perceives: the disguise if one is set, and the
// wolf trickster and the shaman's warded packmate read as ordinary
// villagers.
func (s *Session) seenRole(t *player.Player) role.Role {
	if t.Role() == role.WolfTrickster || t.Protection.Warded {
		return role.Villager
	}
	return t.RevealedRole()
}

func (s *Session) roleTargetIsNot(t *player.Player) role.Role {
	all := role.All()
	for i := 0; i < 32; i++ {
		r := all[s.rng.Intn(len(all))]
		if r != t.Role() {
			return r
		}
	}
	return role.Werewolf
}

func isEvil(p *player.Player) bool {
	if p.Protection.Warded {
		return false
	}
	if p.Converted {
		return true
	}
	switch role.TeamOf(p.Role()) {
	case role.TeamWolf:
		return true
	case role.TeamSolo:
		return role.CategoryOf(p.Role()) == role.CategorySoloKiller
	}
	return false
}

// Stage 5: the wolf bloc deliberates in its own chat window, then votes
// one wolf at a time so a strict majority can end the vote early.
func (s *Session) stageWolves(ctx context.Context, ns *nightState) {
	bloc := s.G.WolfBloc()
	var voters []*player.Player
	var blocIDs []string
	for _, w := range bloc {
		blocIDs = append(blocIDs, w.ID)
		if w.CanAct() {
			voters = append(voters, w)
		}
	}
	if len(voters) == 0 {
		return
	}

	var prey []*player.Player
	for _, p := range s.G.Alive() {
		if !containsPlayer(bloc, p.ID) {
			prey = append(prey, p)
		}
	}
	if len(prey) == 0 {
		return
	}

	// Deliberation window: free-form chat relayed only inside the bloc.
	_ = s.ch.SendToGroup(blocIDs, "The pack gathers. Discuss your prey; the vote follows.")
	relay := StartRelay(ctx, "wolf-chat", s.ch, func(in comms.Inbound) bool {
		return containsPlayer(bloc, in.ActorID)
	}, func(in comms.Inbound) {
		sender := s.G.PlayerByID(in.ActorID)
		var rest []string
		for _, id := range blocIDs {
			if id != in.ActorID {
				rest = append(rest, id)
			}
		}
		_ = s.ch.SendToGroup(rest, fmt.Sprintf("[Pack] %s: %s", sender.Name, in.Text))
	})
	sleepFor(ctx, s.cfg.WolfChatWindow)
	relay.Stop()

	// Sequential ballots with a strict-majority check after each one.
	tally := map[string]int{}
	for _, w := range voters {
		sel := s.broker.Solicit(ctx, Request{
			Actor: w, Prompt: "Cast your vote for tonight's victim.",
			Candidates: prey, Required: true, Timeout: s.cfg.VoteTimeout,
		})
		if len(sel.Targets) > 0 {
			tally[sel.Targets[0].ID]++
			if tally[sel.Targets[0].ID]*2 > len(voters) {
				break
			}
		}
	}

	victimID, top, runner := "", 0, 0
	for id, n := range tally {
		if n > top {
			victimID, runner, top = id, top, n
		} else if n > runner {
			runner = n
		}
	}
	if victimID == "" || top == runner {
		_ = s.ch.SendToGroup(blocIDs, "The pack could not agree. No one is devoured tonight.")
		return
	}
	victim := s.G.PlayerByID(victimID)
	ns.wolfTarget = victim
	_ = s.ch.SendToGroup(blocIDs, fmt.Sprintf("The pack descends upon %s.", victim.Name))

	// The alpha may trade the kill for a curse, once per game.
	for _, alpha := range s.G.AliveWithRole(role.AlphaWolf) {
		if alpha.OneShot.AlphaCurse || !alpha.CanAct() {
			continue
		}
		if s.broker.Confirm(ctx, alpha, fmt.Sprintf("Curse %s into a wolf instead of killing?", victim.Name), s.cfg.VoteTimeout) {
			alpha.OneShot.AlphaCurse = true
			ns.wolfCurse = true
		}
		break
	}
	// A dead kitten wolf taints the pack's next bite.
	if !ns.wolfCurse && s.G.KittenBite {
		s.G.KittenBite = false
		ns.wolfCurse = true
	}
	if !ns.wolfCurse {
		// The shadow wolf scrubs the pack's scent off the kill, so it is
		// neither attributed to the wolves nor smelled by innate wolf-sense.
		group := game.KillerWolves
		for _, w := range bloc {
			if w.Role() == role.ShadowWolf && w.Alive() {
				group = game.KillerUnknown
				break
			}
		}
		ns.add(victim, group)
	}
}

// Stage 6: the raging wolf claims a second victim while the pack is
// unbloodied.
func (s *Session) stageRagingWolf(ctx context.Context, ns *nightState) {
	if s.G.WolfDeathOccurred {
		return
	}
	for _, p := range s.G.AliveWithRole(role.RagingWolf) {
		var prey []*player.Player
		for _, q := range s.G.Alive() {
			if q.Side() != role.SideWolves && (ns.wolfTarget == nil || q.ID != ns.wolfTarget.ID) {
				prey = append(prey, q)
			}
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Your rage demands a second victim.",
			Candidates: prey, Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			ns.add(sel.Targets[0], game.KillerWolves)
		}
	}
}

// Stage 7: independent solo actors, each adding their own tagged targets.
func (s *Session) stageSoloKillers(ctx context.Context, ns *nightState) {
	for _, p := range s.G.AliveWithRole(role.SerialKiller) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose tonight's victim.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			ns.addFrom(p, sel.Targets[0], game.KillerSolo)
		}
	}

	for _, p := range s.G.AliveWithRole(role.Raider) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose whose house to raid tonight.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			t := sel.Targets[0]
			stolen := t.Role()
			t.SetRole(role.Villager)
			p.SetRole(stolen)
			_ = s.ch.SendToActor(t.ID, "Your house was raided in the night. Whatever made you special is gone; you are an ordinary Villager now.")
			info, _ := role.Get(stolen)
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You slip away with the loot. You are the %s now. %s", stolen, info.Description))
		}
	}

	for _, p := range s.G.AliveWithRole(role.Cannibal) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: fmt.Sprintf("Your hunger allows %d victim(s) tonight, or wait and let it grow.", 1+p.Count.Hunger),
			Candidates: s.othersOf(p), Count: 1 + p.Count.Hunger, Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) == 0 {
			p.Count.Hunger++
			continue
		}
		for _, t := range sel.Targets {
			ns.addFrom(p, t, game.KillerSolo)
		}
		p.Count.Hunger = 0
	}

	for _, p := range s.G.AliveWithRole(role.Arsonist) {
		doused := s.dousedPlayers()
		if len(doused) > 0 && s.broker.Confirm(ctx, p, "Light the match and burn every doused house?", s.cfg.NightActionTimeout) {
			for _, t := range doused {
				ns.addFrom(p, t, game.KillerSolo)
			}
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose a house to douse in oil.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			sel.Targets[0].Doused = true
		}
	}

	// The white wolf devours a packmate every second night.
	if s.G.Round%2 == 0 {
		for _, p := range s.G.AliveWithRole(role.WhiteWolf) {
			var pack []*player.Player
			for _, q := range s.G.Alive() {
				if q.ID != p.ID && role.TeamOf(q.Role()) == role.TeamWolf {
					pack = append(pack, q)
				}
			}
			sel := s.broker.Solicit(ctx, Request{
				Actor: p, Prompt: "Choose the packmate you will devour.",
				Candidates: pack, Timeout: s.cfg.NightActionTimeout,
			})
			if len(sel.Targets) > 0 {
				ns.addFrom(p, sel.Targets[0], game.KillerSolo)
			}
		}
	}

	for _, p := range s.G.AliveWithRole(role.Flutist) {
		var unenchanted []*player.Player
		for _, q := range s.othersOf(p) {
			if !q.Enchanted {
				unenchanted = append(unenchanted, q)
			}
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Play your flute for up to two players.",
			Candidates: unenchanted, Count: 2, Timeout: s.cfg.NightActionTimeout,
		})
		for _, t := range sel.Targets {
			t.Enchanted = true
			_ = s.ch.SendToActor(t.ID, "A strange melody fills your dreams.")
		}
	}

	for _, p := range s.G.AliveWithRole(role.Superspreader) {
		var healthy []*player.Player
		for _, q := range s.othersOf(p) {
			if !q.Infected {
				healthy = append(healthy, q)
			}
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose who to infect tonight.",
			Candidates: healthy, Count: 2, Timeout: s.cfg.NightActionTimeout,
		})
		for _, t := range sel.Targets {
			t.Infected = true
		}
	}
}

// Stage 8: visit-type roles resolved against the pending list.
func (s *Session) stageVisits(ctx context.Context, ns *nightState) {
	for _, p := range s.G.AliveWithRole(role.RedLady) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Whose house do you visit tonight?",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) == 0 {
			continue
		}
		visited := sel.Targets[0]
		// Away from home: attacks against her bed find it empty.
		if ns.remove(p.ID) {
			_ = s.ch.SendToActor(p.ID, "You hear your own door splinter in the distance. You were not home.")
		}
		if ns.contains(visited.ID) || isEvil(visited) {
			ns.add(p, game.KillerSolo)
		}
	}

	if s.G.ElderPowerLost {
		return
	}
	for _, p := range s.G.AliveWithRole(role.GuardianAngel) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Whose side do you stand at tonight?",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) == 0 {
			continue
		}
		visited := sel.Targets[0]
		if ns.remove(visited.ID) {
			s.G.BindFates(p.ID, visited.ID)
			_ = s.ch.SendToActor(p.ID, fmt.Sprintf("You turned death away from %s. Your fates are bound now.", visited.Name))
		}
	}
}

// Stage 9: forced conversions replace the wolf kill.
func (s *Session) stageConversion(ctx context.Context, ns *nightState) {
	t := ns.wolfTarget
	if t == nil || !t.Alive() {
		return
	}
	if ns.wolfCurse {
		ns.remove(t.ID)
		t.Converted = true
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeConversion,
			TargetID: t.ID, Round: s.G.Round,
		})
		_ = s.ch.SendToActor(t.ID, "The bite burns, but you do not die. You are one of the pack now.")
		return
	}
	if t.Role() == role.Cursed && !t.Converted && ns.contains(t.ID) {
		ns.remove(t.ID)
		t.Converted = true
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeConversion,
			TargetID: t.ID, Round: s.G.Round,
		})
		_ = s.ch.SendToActor(t.ID, "The old curse wakes in your blood. You hunt with the wolves now.")
	}
}

// Stage 10: protection layers in fixed precedence. Each pending entry is
// cleared at most once.
func (s *Session) stageProtection(ctx context.Context, ns *nightState) {
	var kept []PendingKill
	for _, e := range ns.pending {
		t := e.Target

		// Innate immunity to the generic wolf attack.
		if e.Group == game.KillerWolves && wolfImmune(t.Role()) {
			continue
		}
		// The war veteran turns a lone attacker's blade back on them.
		if t.Role() == role.WarVeteran && e.Group == game.KillerSolo && e.Attacker != nil && e.Attacker.Alive() {
			_ = s.ch.SendToActor(t.ID, "Someone came for you in the dark. Old instincts answered for you.")
			_ = s.ch.SendToActor(e.Attacker.ID, fmt.Sprintf("%s was ready for you. You will not see morning.", t.Name))
			kept = append(kept, PendingKill{Target: e.Attacker, Group: game.KillerRevenge})
			continue
		}
		if t.Role() == role.BeastHunter && t.Protection.TrapSet {
			t.Protection.TrapSet = false
			s.recordSave(t, "your trap caught the intruder at the door")
			continue
		}
		if t.Protection.Shields > 0 {
			t.Protection.Shields--
			s.recordSave(t, "a forged shield shattered")
			continue
		}
		if t.Role() == role.ToughGuy && !t.Protection.ToughUsed {
			t.Protection.ToughUsed = true
			s.recordSave(t, "you shrugged off the attack")
			continue
		}
		if gid := t.Protection.GuardedBy; gid != "" {
			guard := s.G.PlayerByID(gid)
			if guard != nil && guard.Alive() {
				guard.Count.Intercepts++
				if guard.Count.Intercepts == 1 {
					_ = s.ch.SendToActor(gid, fmt.Sprintf("You threw yourself between %s and death, and lived.", t.Name))
					s.recordSave(t, "")
					continue
				}
				// The second interception is fatal to the guardian.
				_ = s.ch.SendToActor(gid, fmt.Sprintf("You stepped in front of %s one time too many.", t.Name))
				kept = append(kept, PendingKill{Target: guard, Group: e.Group})
				continue
			}
		}
		if t.Protection.ByJailer {
			s.notifyProtectors(role.Jailer, t)
			s.recordSave(t, "")
			continue
		}
		if t.Protection.ByDoctor {
			s.notifyProtectors(role.Doctor, t)
			s.recordSave(t, "")
			continue
		}
		if t.Protection.ByHealer {
			t.Protection.ByHealer = false
			s.notifyProtectors(role.Healer, t)
			s.recordSave(t, "")
			continue
		}
		kept = append(kept, e)
	}
	ns.pending = kept
}

func wolfImmune(r role.Role) bool {
	switch r {
	case role.SerialKiller, role.Cannibal, role.Sleepwalker:
		return true
	}
	return false
}

func (s *Session) recordSave(t *player.Player, note string) {
	metrics.Get().RecordSave()
	s.Events.Append(events.GameEvent{
		SessionID: s.ID, Type: events.EventTypeSave,
		TargetID: t.ID, Round: s.G.Round,
	})
	if note != "" {
		_ = s.ch.SendToActor(t.ID, "You were attacked tonight, but "+note+".")
	}
}

func (s *Session) notifyProtectors(r role.Role, saved *player.Player) {
	for _, p := range s.G.AliveWithRole(r) {
		_ = s.ch.SendToActor(p.ID, fmt.Sprintf("Your care saved %s tonight.", saved.Name))
	}
}

// Stage 11: the remaining utility night abilities.
func (s *Session) stagePotions(ctx context.Context, ns *nightState) {
	if !s.G.ElderPowerLost {
		for _, p := range s.G.AliveWithRole(role.Witch) {
			if !p.CanAct() {
				continue
			}
			if !p.OneShot.WitchHeal && len(ns.pending) > 0 {
				var victims []*player.Player
				for _, e := range ns.pending {
					victims = append(victims, e.Target)
				}
				sel := s.broker.Solicit(ctx, Request{
					Actor: p, Prompt: "Death comes for these souls. Spend your healing potion on one?",
					Candidates: victims, AllowSelf: true, Timeout: s.cfg.NightActionTimeout,
				})
				if len(sel.Targets) > 0 {
					p.OneShot.WitchHeal = true
					ns.remove(sel.Targets[0].ID)
					s.recordSave(sel.Targets[0], "")
				}
			}
			if !p.OneShot.WitchPoison {
				sel := s.broker.Solicit(ctx, Request{
					Actor: p, Prompt: "Spend your poison on someone?",
					Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
				})
				if len(sel.Targets) > 0 {
					p.OneShot.WitchPoison = true
					ns.addFrom(p, sel.Targets[0], game.KillerSolo)
				}
			}
		}
	}

	for _, p := range s.G.AliveWithRole(role.NightmareWerewolf) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose who to haunt. They will sleep through the next night.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			sel.Targets[0].Block.PendingSleep = true
		}
	}
	for _, p := range s.G.AliveWithRole(role.VoodooWerewolf) {
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Choose who to hex into silence for the coming day.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			sel.Targets[0].Block.PendingMute = true
		}
	}
	for _, p := range s.G.AliveWithRole(role.JuniorWerewolf) {
		if p.RevengeMark != "" {
			continue
		}
		sel := s.broker.Solicit(ctx, Request{
			Actor: p, Prompt: "Mark the player who will follow you into the grave.",
			Candidates: s.othersOf(p), Timeout: s.cfg.NightActionTimeout,
		})
		if len(sel.Targets) > 0 {
			p.RevengeMark = sel.Targets[0].ID
		}
	}
}

// Stage 12: the surviving pending list is the night's death list.
func (s *Session) stageFinalize(ctx context.Context, ns *nightState) {
	for _, p := range s.G.AliveWithRole(role.BeastHunter) {
		if p.Protection.TrapSet {
			_ = s.ch.SendToActor(p.ID, "Your trap stayed quiet tonight.")
		}
	}
	for _, e := range ns.pending {
		s.Events.Append(events.GameEvent{
			SessionID: s.ID, Type: events.EventTypeDeath,
			TargetID: e.Target.ID, Payload: string(e.Group), Round: s.G.Round,
		})
	}
	s.log.Event("NIGHT_RESOLVED", s.ID, fmt.Sprintf("round=%d deaths=%d", s.G.Round, len(ns.pending)))
}

func (s *Session) othersOf(p *player.Player) []*player.Player {
	var out []*player.Player
	for _, q := range s.G.Alive() {
		if q.ID != p.ID {
			out = append(out, q)
		}
	}
	return out
}

func (s *Session) deadPlayers(filter func(*player.Player) bool) []*player.Player {
	var out []*player.Player
	for _, p := range s.G.Players {
		if !p.Alive() && !p.IsObserver && (filter == nil || filter(p)) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) dousedPlayers() []*player.Player {
	var out []*player.Player
	for _, p := range s.G.Alive() {
		if p.Doused {
			out = append(out, p)
		}
	}
	return out
}

func sleepFor(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
