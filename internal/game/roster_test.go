package game

import (
	"math/rand"
	"testing"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

func TestWolfTarget(t *testing.T) {
	cases := []struct{ n, want int }{
		{5, 1}, {7, 1}, {8, 2}, {12, 3}, {16, 4}, {24, 6}, {30, 6}, {40, 6},
	}
	for _, c := range cases {
		if got := WolfTarget(c.n); got != c.want {
			t.Errorf("WolfTarget(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestBuildRosterProperties(t *testing.T) {
	modes := []role.Mode{role.ModeQuick, role.ModeClassic, role.ModeChaos}
	for n := 5; n <= 24; n++ {
		for _, mode := range modes {
			rng := rand.New(rand.NewSource(int64(n) * 31))
			slate, err := BuildRoster(n, mode, nil, rng)
			if err != nil {
				t.Fatalf("n=%d mode=%s: %v", n, mode, err)
			}
			if len(slate) != n+ReserveSlots {
				t.Fatalf("n=%d mode=%s: slate has %d slots, want %d", n, mode, len(slate), n+ReserveSlots)
			}

			wolves, villagers := 0, 0
			for _, r := range slate[:n] {
				switch role.TeamOf(r) {
				case role.TeamWolf:
					wolves++
				case role.TeamVillage:
					villagers++
				}
				if !role.Available(r, mode) {
					t.Errorf("n=%d mode=%s: slate holds unavailable role %s", n, mode, r)
				}
			}
			if wolves != WolfTarget(n) {
				t.Errorf("n=%d mode=%s: %d wolf-team roles, want %d", n, mode, wolves, WolfTarget(n))
			}
			if villagers == 0 {
				t.Errorf("n=%d mode=%s: no village-team role in the playable slots", n, mode)
			}
		}
	}
}

func TestBuildRosterTooSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := BuildRoster(4, role.ModeClassic, nil, rng); err == nil {
		t.Error("expected an error for a 4 player roster")
	}
}

func TestBuildRosterTooManyRequests(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	requested := make([]role.Role, 8)
	for i := range requested {
		requested[i] = role.Villager
	}
	if _, err := BuildRoster(5, role.ModeCustom, requested, rng); err == nil {
		t.Error("expected an error for 8 requested roles in 7 slots")
	}
}

func TestBuildRosterCustomEnforcesRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	// All-villager request still ends with the enforced wolf count.
	requested := []role.Role{role.Villager, role.Villager, role.Villager, role.Villager, role.Villager}
	slate, err := BuildRoster(5, role.ModeCustom, requested, rng)
	if err != nil {
		t.Fatal(err)
	}
	wolves := 0
	for _, r := range slate[:5] {
		if role.TeamOf(r) == role.TeamWolf {
			wolves++
		}
	}
	if wolves != 1 {
		t.Errorf("got %d wolves, want 1", wolves)
	}
}

func TestBuildRosterDemotesExcessWolves(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	requested := []role.Role{role.Werewolf, role.Werewolf, role.Werewolf, role.Werewolf, role.Villager}
	slate, err := BuildRoster(5, role.ModeCustom, requested, rng)
	if err != nil {
		t.Fatal(err)
	}
	wolves := 0
	for _, r := range slate[:5] {
		if role.TeamOf(r) == role.TeamWolf {
			wolves++
		}
	}
	if wolves != 1 {
		t.Errorf("got %d wolves after demotion, want 1", wolves)
	}
}

func TestBuildRosterCapsSpecialWolves(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	requested := []role.Role{
		role.AlphaWolf, role.WolfSeer, role.WolfShaman, role.GuardianWolf,
		role.Villager, role.Villager, role.Villager, role.Villager,
	}
	slate, err := BuildRoster(8, role.ModeCustom, requested, rng)
	if err != nil {
		t.Fatal(err)
	}
	special := 0
	for _, r := range slate {
		if role.CategoryOf(r) == role.CategorySpecialWolf {
			special++
		}
	}
	// Cap for 8 players is 1 + 8/8 = 2.
	if special > 2 {
		t.Errorf("got %d special wolves, cap is 2", special)
	}
}
