package game

import (
	"fmt"
	"math/rand"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

// ReserveSlots is the size of the thief pool appended after the playable
// slate.
const ReserveSlots = 2

// seerWeights drives the weighted substitution of the generic seer-like
// slot in the base template.
var seerWeights = []struct {
	r role.Role
	w int
}{
	{role.Seer, 5},
	{role.AuraSeer, 3},
	{role.Detective, 2},
}

// protectorWeights drives the generic protector slot.
var protectorWeights = []struct {
	r role.Role
	w int
}{
	{role.Doctor, 4},
	{role.Bodyguard, 3},
	{role.Jailer, 2},
	{role.Healer, 1},
}

// specialWolfPool is drawn from when the template asks for a flavored wolf.
var specialWolfPool = []role.Role{
	role.AlphaWolf, role.WolfSeer, role.WolfShaman, role.NightmareWerewolf,
	role.VoodooWerewolf, role.GuardianWolf, role.JuniorWerewolf, role.RagingWolf,
}

// soloPool is drawn from for the loner slot in larger games.
var soloPool = []role.Role{
	role.Jester, role.HeadHunter, role.SerialKiller, role.Cannibal,
	role.Flutist, role.WhiteWolf,
}

const (
	slotSeer        = "seer"
	slotProtector   = "protector"
	slotSpecialWolf = "special-wolf"
	slotSolo        = "solo"
)

// BuildRoster produces a balanced slate of exactly n+2 roles: n playable
// slots followed by the two-card thief reserve. Explicit requests beyond
// n+2 slots are rejected before any randomization.
func BuildRoster(n int, mode role.Mode, requested []role.Role, rng *rand.Rand) ([]role.Role, error) {
	if n < 5 {
		return nil, fmt.Errorf("roster needs at least 5 players, got %d", n)
	}
	total := n + ReserveSlots
	if len(requested) > total {
		return nil, fmt.Errorf("%d roles requested but only %d slots available", len(requested), total)
	}

	slate := make([]role.Role, 0, total)
	if len(requested) > 0 {
		slate = append(slate, requested...)
		for len(slate) < total {
			slate = append(slate, role.Villager)
		}
	} else {
		slate = fillTemplate(n, rng)
	}

	fixAvailability(slate, mode)
	capSpecialWolves(slate, n)
	enforceWolfRatio(slate, n, rng)
	guaranteeTeams(slate, n)

	return slate, nil
}

// fillTemplate expands the fixed base template for n players, resolving the
// generic category slots by weighted random choice.
func fillTemplate(n int, rng *rand.Rand) []role.Role {
	// The base shape: one wolf per four players, one seer-like, one
	// protector, flavor roles as the table grows, villagers to pad.
	marks := []string{string(role.Werewolf), slotSeer, slotProtector}
	if n >= 7 {
		marks = append(marks, slotSpecialWolf, string(role.Witch))
	}
	if n >= 8 {
		marks = append(marks, string(role.Cupid), string(role.Hunter))
	}
	if n >= 9 {
		marks = append(marks, slotSolo)
	}
	if n >= 10 {
		marks = append(marks, string(role.Cursed), string(role.Sheriff))
	}
	if n >= 12 {
		marks = append(marks, slotSpecialWolf, string(role.Judge), string(role.Medium))
	}
	if n >= 14 {
		marks = append(marks, slotSolo, string(role.RedLady), string(role.Prince))
	}
	if n >= 16 {
		marks = append(marks, string(role.Werewolf), string(role.Mason), string(role.Mason))
	}
	for len(marks) < n {
		marks = append(marks, string(role.Villager))
	}
	marks = marks[:n]
	// Thief reserve: two cards drawn from the broad pools.
	marks = append(marks, slotSeer, slotProtector)

	out := make([]role.Role, len(marks))
	for i, m := range marks {
		switch m {
		case slotSeer:
			out[i] = weightedPick(seerWeights, rng)
		case slotProtector:
			out[i] = weightedPick(protectorWeights, rng)
		case slotSpecialWolf:
			out[i] = specialWolfPool[rng.Intn(len(specialWolfPool))]
		case slotSolo:
			out[i] = soloPool[rng.Intn(len(soloPool))]
		default:
			out[i] = role.Role(m)
		}
	}
	return out
}

func weightedPick(weights []struct {
	r role.Role
	w int
}, rng *rand.Rand) role.Role {
	total := 0
	for _, w := range weights {
		total += w.w
	}
	pick := rng.Intn(total)
	for _, w := range weights {
		pick -= w.w
		if pick < 0 {
			return w.r
		}
	}
	return weights[0].r
}

// fixAvailability replaces roles the active mode disables with the
// team-equivalent fallback.
func fixAvailability(slate []role.Role, mode role.Mode) {
	for i, r := range slate {
		if !role.Available(r, mode) {
			slate[i] = role.Fallback(role.TeamOf(r))
		}
	}
}

// capSpecialWolves demotes surplus flavored wolves to the generic Werewolf.
// The cap grows with the table size.
func capSpecialWolves(slate []role.Role, n int) {
	max := 1 + n/8
	count := 0
	for i, r := range slate {
		if role.CategoryOf(r) == role.CategorySpecialWolf {
			count++
			if count > max {
				slate[i] = role.Werewolf
			}
		}
	}
}

// WolfTarget is the enforced wolf-aligned count for the playable slots.
func WolfTarget(n int) int {
	t := n / 4
	if t < 1 {
		t = 1
	}
	if t > 6 {
		t = 6
	}
	return t
}

// enforceWolfRatio demotes or promotes playable slots until the wolf-aligned
// count matches the target. At least one true wolf-team role survives a
// demotion pass whenever any existed.
func enforceWolfRatio(slate []role.Role, n int, rng *rand.Rand) {
	target := WolfTarget(n)
	playable := slate[:n]

	wolfIdx := func() []int {
		var idx []int
		for i, r := range playable {
			if role.TeamOf(r) == role.TeamWolf {
				idx = append(idx, i)
			}
		}
		return idx
	}

	// Demote excess wolves to Villager, flavored wolves first, and never
	// the last remaining wolf slot.
	for {
		idx := wolfIdx()
		if len(idx) <= target || len(idx) <= 1 {
			break
		}
		victim := -1
		for _, i := range idx {
			if role.CategoryOf(playable[i]) == role.CategorySpecialWolf {
				victim = i
				break
			}
		}
		if victim == -1 {
			victim = idx[len(idx)-1]
		}
		playable[victim] = role.Villager
	}

	// Promote villagers to Werewolf until the target is met.
	for len(wolfIdx()) < target {
		var villagerIdx []int
		for i, r := range playable {
			if r == role.Villager {
				villagerIdx = append(villagerIdx, i)
			}
		}
		if len(villagerIdx) == 0 {
			// No plain villagers left; promote any village-team slot.
			for i, r := range playable {
				if role.TeamOf(r) == role.TeamVillage {
					villagerIdx = append(villagerIdx, i)
				}
			}
		}
		if len(villagerIdx) == 0 {
			break
		}
		playable[villagerIdx[rng.Intn(len(villagerIdx))]] = role.Werewolf
	}
}

// guaranteeTeams makes sure the playable slice holds at least one wolf-team
// and one village-team role, swapping with the reserve slots if needed.
func guaranteeTeams(slate []role.Role, n int) {
	playable := slate[:n]
	reserve := slate[n:]

	hasTeam := func(roles []role.Role, t role.Team) int {
		for i, r := range roles {
			if role.TeamOf(r) == t {
				return i
			}
		}
		return -1
	}

	if hasTeam(playable, role.TeamWolf) == -1 {
		if ri := hasTeam(reserve, role.TeamWolf); ri != -1 {
			// Swap a village slot into the reserve for the wolf card.
			if pi := hasTeam(playable, role.TeamVillage); pi != -1 {
				playable[pi], reserve[ri] = reserve[ri], playable[pi]
			}
		} else {
			playable[len(playable)-1] = role.Werewolf
		}
	}
	if hasTeam(playable, role.TeamVillage) == -1 {
		if ri := hasTeam(reserve, role.TeamVillage); ri != -1 {
			// Trade away a solo slot first; never the only wolf.
			pi := hasTeam(playable, role.TeamSolo)
			if pi == -1 {
				wolves := 0
				for _, r := range playable {
					if role.TeamOf(r) == role.TeamWolf {
						wolves++
					}
				}
				if wolves > 1 {
					pi = hasTeam(playable, role.TeamWolf)
				}
			}
			if pi != -1 {
				playable[pi], reserve[ri] = reserve[ri], playable[pi]
			}
		} else {
			playable[len(playable)-1] = role.Villager
		}
	}
}
