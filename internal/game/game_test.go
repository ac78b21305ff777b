package game

import (
	"testing"

	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

func testGame(roles ...role.Role) *Game {
	g := New("G1", role.ModeClassic)
	for i, r := range roles {
		g.Players = append(g.Players, player.New(playerID(i), playerName(i), r))
	}
	return g
}

func playerID(i int) string   { return string(rune('a' + i)) }
func playerName(i int) string { return "P" + string(rune('A'+i)) }

func TestKillIsIdempotent(t *testing.T) {
	g := testGame(role.Villager, role.Werewolf)
	p := g.Players[0]

	if !g.Kill(p, KillerWolves) {
		t.Fatal("first kill should report a death")
	}
	if g.Kill(p, KillerSolo) {
		t.Error("killing a dead player must be a no-op")
	}
	if p.Lives != 0 {
		t.Errorf("lives = %d, want 0", p.Lives)
	}
	if g.KilledBy[p.ID] != KillerWolves {
		t.Errorf("killer group = %s, want %s", g.KilledBy[p.ID], KillerWolves)
	}
}

func TestKillTracksWolfDeathAndElder(t *testing.T) {
	g := testGame(role.Werewolf, role.VillageElder)
	g.Kill(g.Players[0], KillerVote)
	if !g.WolfDeathOccurred {
		t.Error("wolf death flag not set")
	}
	g.Kill(g.Players[1], KillerWolves)
	if !g.ElderPowerLost {
		t.Error("elder power loss flag not set")
	}
}

func TestResurrect(t *testing.T) {
	g := testGame(role.Villager)
	p := g.Players[0]
	if g.Resurrect(p) {
		t.Error("resurrecting an alive player must be a no-op")
	}
	g.Kill(p, KillerSolo)
	if !g.Resurrect(p) {
		t.Error("resurrecting a dead player should succeed")
	}
	if !p.Alive() {
		t.Error("player should be alive after resurrection")
	}
	if _, still := g.KilledBy[p.ID]; still {
		t.Error("kill record should be cleared on resurrection")
	}
}

func TestLoversAreSymmetricAndDeduped(t *testing.T) {
	g := testGame(role.Villager, role.Villager)
	g.AddLovers("a", "b")
	g.AddLovers("b", "a")
	g.AddLovers("a", "a")
	if len(g.lovers) != 1 {
		t.Errorf("got %d pairings, want 1", len(g.lovers))
	}
	if !g.InLove("a") || !g.InLove("b") {
		t.Error("both partners must be in love")
	}
}

func TestLoveChainIsTransitive(t *testing.T) {
	g := testGame(role.Villager, role.Villager, role.Villager, role.Villager)
	g.AddLovers("a", "b")
	g.AddLovers("b", "c")

	chain := g.LoveChain("a")
	for _, id := range []string{"a", "b", "c"} {
		if !chain[id] {
			t.Errorf("chain should include %s", id)
		}
	}
	if chain["d"] {
		t.Error("chain must not include unrelated players")
	}
}

func TestPartnersIncludeFateBonds(t *testing.T) {
	g := testGame(role.Villager, role.GuardianAngel, role.Villager)
	g.AddLovers("a", "c")
	g.BindFates("a", "b")

	partners := g.Partners("a")
	if len(partners) != 2 {
		t.Fatalf("got %d partners, want 2", len(partners))
	}
}

func TestRevealedRoleAfterDeath(t *testing.T) {
	p := player.New("x", "X", role.Seer)
	p.SetRole(role.Werewolf)
	if got := p.RevealedRole(); got != role.Werewolf {
		t.Errorf("revealed role = %s, want the last held role %s", got, role.Werewolf)
	}
	p.Disguise = role.Villager
	if got := p.RevealedRole(); got != role.Villager {
		t.Errorf("revealed role = %s, want the disguise override %s", got, role.Villager)
	}
	if h := p.History(); len(h) != 1 || h[0] != role.Seer {
		t.Errorf("history = %v, want [Seer]", h)
	}
}

func TestWolfBlocIncludesConverted(t *testing.T) {
	g := testGame(role.Werewolf, role.Cursed, role.Villager)
	if len(g.WolfBloc()) != 1 {
		t.Fatal("unconverted cursed must not be in the bloc")
	}
	g.Players[1].Converted = true
	if len(g.WolfBloc()) != 2 {
		t.Error("converted cursed should hunt with the bloc")
	}
}
