package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/game"
)

func TestApplyDeathsLoveChainCascade(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager, role.Villager, role.Villager)
	s.G.AddLovers("a", "b")
	s.G.AddLovers("b", "c")

	s.ApplyDeaths(context.Background(), []PendingKill{{Target: s.G.Players[0], Group: game.KillerWolves}})

	for _, id := range []string{"a", "b", "c"} {
		if s.G.PlayerByID(id).Alive() {
			t.Errorf("player %s should be dead through the love chain", id)
		}
	}
	if !s.G.PlayerByID("d").Alive() {
		t.Error("unrelated player must survive the cascade")
	}
	if s.G.KilledBy["a"] != game.KillerWolves {
		t.Errorf("a killed by %s, want %s", s.G.KilledBy["a"], game.KillerWolves)
	}
	if s.G.KilledBy["b"] != game.KillerRevenge || s.G.KilledBy["c"] != game.KillerRevenge {
		t.Error("grief deaths should be tagged as revenge kills")
	}

	// Announcements follow discovery order: Ana first, then her chain.
	var order []string
	for _, m := range ch.broadcastLog() {
		for _, name := range []string{"Ana", "Bram", "Cleo"} {
			if strings.HasPrefix(m, name+" is dead") {
				order = append(order, name)
			}
		}
	}
	want := []string{"Ana", "Bram", "Cleo"}
	if len(order) != len(want) {
		t.Fatalf("death announcements = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("death announcements = %v, want %v", order, want)
		}
	}
}

func TestApplyDeathsHunterDyingShot(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Hunter, role.Villager, role.Werewolf)
	ch.queueWhenPrompted("a", "dying breath", "2")

	s.ApplyDeaths(context.Background(), []PendingKill{{Target: s.G.Players[0], Group: game.KillerWolves}})

	if s.G.Players[2].Alive() {
		t.Error("the hunter's last shot should kill the chosen target")
	}
	if s.G.KilledBy["c"] != game.KillerRevenge {
		t.Errorf("shot target killed by %s, want %s", s.G.KilledBy["c"], game.KillerRevenge)
	}
}

func TestApplyDeathsJesterLynchStealsWin(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Jester, role.Villager, role.Villager, role.Villager)

	s.ApplyDeaths(context.Background(), []PendingKill{{Target: s.G.Players[0], Group: game.KillerVote}})
	if s.G.ForcedWinnerID != "a" || s.G.ForcedSide != role.SideJester {
		t.Errorf("lynched jester should force the win, got %s/%s", s.G.ForcedWinnerID, s.G.ForcedSide)
	}

	// A night kill must not trigger it.
	s2 := testSession(newFakeChannel(), role.Jester, role.Villager, role.Villager)
	s2.ApplyDeaths(context.Background(), []PendingKill{{Target: s2.G.Players[0], Group: game.KillerWolves}})
	if s2.G.ForcedWinnerID != "" {
		t.Error("a night-killed jester wins nothing")
	}
}

func TestApplyDeathsKittenWolfArmsTheBite(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.KittenWolf, role.Villager, role.Villager)
	s.ApplyDeaths(context.Background(), []PendingKill{{Target: s.G.Players[0], Group: game.KillerVote}})
	if !s.G.KittenBite {
		t.Error("kitten wolf death should arm the converting bite")
	}
}

func TestHoldVoteMajorityAndTie(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager, role.Villager, role.Villager, role.Villager)
	nominees := []*player.Player{s.G.Players[2], s.G.Players[3]}

	ch.queue("a", "1")
	ch.queue("b", "1")
	ch.queue("c", "1")
	ch.queue("d", "2")
	ch.queue("e", "2")

	ds := &dayState{voted: map[string]bool{}}
	victim := s.holdVote(context.Background(), ds, nominees)
	if victim == nil || victim.ID != "c" {
		t.Fatalf("3-2 vote should lynch c, got %+v", victim)
	}
	if len(ds.voted) != 5 {
		t.Errorf("recorded %d voters, want 5", len(ds.voted))
	}
}

func TestHoldVoteTieIsNoLynch(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager, role.Villager, role.Villager, role.Villager)
	nominees := []*player.Player{s.G.Players[2], s.G.Players[3]}

	ch.queue("a", "1")
	ch.queue("b", "1")
	ch.queue("d", "2")
	ch.queue("e", "2")

	ds := &dayState{voted: map[string]bool{}}
	if victim := s.holdVote(context.Background(), ds, nominees); victim != nil {
		t.Errorf("a 2-2 tie must not lynch anyone, got %s", victim.Name)
	}

	// The silent voter earns a strike but survives.
	s.applyStrikes(context.Background(), ds)
	c := s.G.PlayerByID("c")
	if c.VoteStrikes != 1 {
		t.Errorf("strikes = %d, want 1", c.VoteStrikes)
	}
	if !c.Alive() {
		t.Error("one strike must not eliminate")
	}
}

func TestHoldVoteSheriffWeight(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Sheriff, role.Villager, role.Villager)
	nominees := []*player.Player{s.G.Players[1], s.G.Players[2]}

	ch.queue("a", "1")
	ch.queue("b", "2")

	ds := &dayState{voted: map[string]bool{}}
	victim := s.holdVote(context.Background(), ds, nominees)
	if victim == nil || victim.ID != "b" {
		t.Errorf("the sheriff's double ballot should break the 1-1 split, got %+v", victim)
	}
}

func TestApplyStrikesThirdIsElimination(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager)
	lazy := s.G.Players[0]
	lazy.VoteStrikes = 2

	ds := &dayState{voted: map[string]bool{}, eligible: s.G.Alive()}
	ds.voted["b"] = true
	s.applyStrikes(context.Background(), ds)

	if lazy.Alive() {
		t.Error("the third strike should eliminate the absent voter")
	}
	if s.G.KilledBy["a"] != game.KillerReferee {
		t.Errorf("strike elimination tagged %s, want %s", s.G.KilledBy["a"], game.KillerReferee)
	}
}

func TestCollectNominations(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager, role.Villager)
	ch.queue("a", "nominate Cleo")
	ch.queue("b", "just chatting")
	ch.queue("b", "nominate Cleo")

	ds := &dayState{voted: map[string]bool{}}
	nominees, aborted := s.collectNominations(context.Background(), ds)
	if aborted {
		t.Fatal("nothing should abort this window")
	}
	if len(nominees) != 1 || nominees[0].ID != "c" {
		t.Errorf("nominees = %+v, want only Cleo once", nominees)
	}
}

func TestCollectNominationsJudgeObjection(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Judge, role.Villager, role.Villager)
	ch.queue("a", "objection")

	ds := &dayState{voted: map[string]bool{}}
	_, aborted := s.collectNominations(context.Background(), ds)
	if !aborted {
		t.Error("the judge's objection should abort the vote")
	}
	if !s.G.Players[0].OneShot.JudgeObjection {
		t.Error("the objection is a one-shot and must be consumed")
	}
}

func TestCollectNominationsJudgePhrase(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Judge, role.Villager, role.Villager)
	s.judgePhrase = "the gavel falls twice"
	ch.queue("a", "I say the gavel falls twice, friends")

	ds := &dayState{voted: map[string]bool{}}
	_, aborted := s.collectNominations(context.Background(), ds)
	if aborted {
		t.Fatal("the secret phrase must not abort the vote")
	}
	if !ds.secondElection {
		t.Error("the secret phrase should schedule a second election")
	}
}

func TestResolveLynchPrinceImmunity(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Prince, role.Villager, role.Villager)
	prince := s.G.Players[0]

	s.resolveLynch(context.Background(), prince)
	if !prince.Alive() || !prince.OneShot.PrinceSave {
		t.Fatal("the first lynch of the prince must fail and consume the save")
	}
	s.resolveLynch(context.Background(), prince)
	if prince.Alive() {
		t.Error("the second lynch of the prince should stick")
	}
}

func TestDeliverResurrectionsHonorsDelay(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.SpiritSummoner, role.Villager)
	target := s.G.Players[1]
	s.G.Kill(target, game.KillerWolves)
	s.G.Resurrections = []game.PendingResurrection{{
		CasterID: "a", TargetID: "b", Origin: role.SpiritSummoner, Delay: 1,
	}}

	s.deliverResurrections()
	if target.Alive() {
		t.Fatal("the delayed revival must not land a day early")
	}
	s.deliverResurrections()
	if !target.Alive() {
		t.Error("the revival should land once the delay elapsed")
	}
}

func TestRunDayLiftsNightBlocks(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Villager, role.Villager, role.Villager, role.Werewolf)
	jailed, asleep := s.G.Players[0], s.G.Players[1]
	jailed.Block.Jailed = true
	asleep.Block.Asleep = true

	ch.queue("c", "nominate Bram")
	ch.queue("d", "nominate Cleo")
	for _, id := range []string{"a", "b", "c", "d"} {
		ch.queueWhenPrompted(id, "Choose who to lynch", "1")
	}

	s.RunDay(context.Background(), nil)

	if jailed.Block.Jailed || asleep.Block.Asleep {
		t.Error("jail and nightmare sleep must lift at dawn")
	}
	if jailed.VoteStrikes != 0 {
		t.Errorf("freed prisoner voted and still took %d strike(s)", jailed.VoteStrikes)
	}
	if asleep.Alive() {
		t.Error("Bram took every ballot and should be lynched")
	}
}

func TestGravediggerReadsTheGrave(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Gravedigger, role.Werewolf, role.Villager)
	s.G.Kill(s.G.Players[1], game.KillerVote)

	ch.queue("a", "1")
	s.dayAbilities(context.Background(), &dayState{voted: map[string]bool{}})

	found := false
	for _, m := range ch.sentTo("a") {
		if strings.Contains(m, "hunted with the wolves") {
			found = true
		}
	}
	if !found {
		t.Errorf("digger should learn the buried wolf's team, got %v", ch.sentTo("a"))
	}
}

func TestNominationsOpenAfterMayorDies(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Mayor, role.Villager, role.Villager)
	mayor := s.G.Players[0]
	s.mayorID = mayor.ID

	ch.queue("b", "nominate Cleo")
	nominees, _ := s.collectNominations(context.Background(), &dayState{voted: map[string]bool{}})
	if len(nominees) != 0 {
		t.Fatalf("while the mayor lives only their picks count, got %v", nominees)
	}

	s.G.Kill(mayor, game.KillerWolves)
	ch.queue("b", "nominate Cleo")
	nominees, _ = s.collectNominations(context.Background(), &dayState{voted: map[string]bool{}})
	if len(nominees) != 1 || nominees[0].ID != "c" {
		t.Errorf("a dead mayor must not gate the floor, got %v", nominees)
	}
}

func TestRunDayPausesForRecap(t *testing.T) {
	ch := newFakeChannel()
	s := testSession(ch, role.Pacifist, role.Villager, role.Werewolf)
	s.cfg.ReadDelay = 80 * time.Millisecond

	ch.queueWhenPrompted("a", "cancel today's vote", "yes")

	start := time.Now()
	s.RunDay(context.Background(), nil)
	if elapsed := time.Since(start); elapsed < s.cfg.ReadDelay {
		t.Errorf("day resumed after %v, want at least the %v reading pause", elapsed, s.cfg.ReadDelay)
	}
}
