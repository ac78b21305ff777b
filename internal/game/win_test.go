package game

import (
	"testing"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

func TestEvaluateNoWinnerYet(t *testing.T) {
	g := testGame(role.Werewolf, role.Seer, role.Doctor, role.Villager, role.Villager)
	if v := Evaluate(g); v.Over {
		t.Errorf("fresh 5 player game should have no winner, got %+v", v)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	g := testGame(role.Werewolf, role.Villager, role.Villager)
	first := Evaluate(g)
	second := Evaluate(g)
	if first.Over != second.Over || first.Side != second.Side || first.WinnerID != second.WinnerID {
		t.Errorf("evaluator is not idempotent: %+v vs %+v", first, second)
	}
}

func TestEvaluateForcedWinnerPreemptsEverything(t *testing.T) {
	// A lynched jester steals the win from a board the village would take.
	g := testGame(role.Villager, role.Villager, role.Jester)
	g.Kill(g.Players[2], KillerVote)
	g.ForcedWinnerID = g.Players[2].ID
	g.ForcedSide = role.SideJester

	v := Evaluate(g)
	if !v.Over || v.WinnerID != g.Players[2].ID {
		t.Errorf("forced winner not honored: %+v", v)
	}
}

func TestEvaluateZeroLivingIsDraw(t *testing.T) {
	g := testGame(role.Villager, role.Werewolf)
	g.Kill(g.Players[0], KillerWolves)
	g.Kill(g.Players[1], KillerVote)

	v := Evaluate(g)
	if !v.Over || !v.Nobody {
		t.Errorf("zero survivors should be the nobody draw, got %+v", v)
	}
}

func TestEvaluateSoleSurvivorWinsByDefault(t *testing.T) {
	g := testGame(role.Jester, role.Villager, role.Werewolf)
	g.Kill(g.Players[1], KillerWolves)
	g.Kill(g.Players[2], KillerVote)

	v := Evaluate(g)
	if !v.Over || v.WinnerID != g.Players[0].ID {
		t.Errorf("sole survivor should win by default, got %+v", v)
	}
}

func TestEvaluateLoveChainBeforeFactions(t *testing.T) {
	// A villager and a wolf in love, the only two alive: the chain wins
	// before the wolf parity rule fires.
	g := testGame(role.Villager, role.Werewolf, role.Villager)
	g.AddLovers("a", "b")
	g.Kill(g.Players[2], KillerWolves)

	v := Evaluate(g)
	if !v.Over || len(v.LoverIDs) != 2 {
		t.Fatalf("expected the love chain win, got %+v", v)
	}
}

func TestEvaluateVillageWin(t *testing.T) {
	g := testGame(role.Seer, role.Villager, role.Werewolf)
	g.Kill(g.Players[2], KillerVote)

	v := Evaluate(g)
	if !v.Over || v.Side != role.SideVillagers {
		t.Errorf("expected the village win, got %+v", v)
	}
}

func TestEvaluateWolfParity(t *testing.T) {
	g := testGame(role.Werewolf, role.Werewolf, role.Villager, role.Villager)
	if v := Evaluate(g); !v.Over || v.Side != role.SideWolves {
		t.Errorf("wolves at parity should win, got %+v", v)
	}
}

func TestEvaluateSoloKillerBlocksBothWins(t *testing.T) {
	// Serial killer alive: neither the village nor the wolves may win.
	g := testGame(role.Werewolf, role.Werewolf, role.SerialKiller, role.Villager)
	if v := Evaluate(g); v.Over {
		t.Errorf("no side should win past a living serial killer, got %+v", v)
	}

	g2 := testGame(role.Villager, role.Villager, role.SerialKiller)
	if v := Evaluate(g2); v.Over {
		t.Errorf("village cannot win past a living serial killer, got %+v", v)
	}
}

func TestEvaluateLoneSoloKillerWins(t *testing.T) {
	g := testGame(role.SerialKiller, role.Villager)
	g.Kill(g.Players[1], KillerSolo)

	v := Evaluate(g)
	if !v.Over || v.Side != role.SideSerialKiller || v.WinnerID != g.Players[0].ID {
		t.Errorf("lone serial killer should win its side, got %+v", v)
	}
}

func TestEvaluateFlutistWinsWhenAllEnchanted(t *testing.T) {
	g := testGame(role.Flutist, role.Villager, role.Werewolf)
	g.Players[1].Enchanted = true
	g.Players[2].Enchanted = true

	v := Evaluate(g)
	if !v.Over || v.Side != role.SideFlutist {
		t.Errorf("flutist should win once everyone dances, got %+v", v)
	}
}

func TestEvaluateSuperspreaderPreemptsVillage(t *testing.T) {
	// All wolves dead, but every survivor is infected: the win stealer
	// pre-empts the village.
	g := testGame(role.Superspreader, role.Villager, role.Villager)
	g.Players[1].Infected = true
	g.Players[2].Infected = true

	v := Evaluate(g)
	if !v.Over || v.Side != role.SideSuperspreader {
		t.Errorf("superspreader should pre-empt the village win, got %+v", v)
	}
}

func TestEvaluateConvertedCountsForWolves(t *testing.T) {
	g := testGame(role.Cursed, role.Villager, role.Werewolf)
	g.Players[0].Converted = true

	v := Evaluate(g)
	if !v.Over || v.Side != role.SideWolves {
		t.Errorf("converted cursed should tip parity to the wolves, got %+v", v)
	}
}
