package game

import (
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

// Verdict is the result of a win evaluation.
type Verdict struct {
	Over bool
	// Side is set for faction wins, "" for player-specific wins and draws.
	Side role.Side
	// WinnerID is set when a single player wins (forced winner, lone
	// survivor, lone solo killer).
	WinnerID string
	// LoverIDs is set for the love-chain win.
	LoverIDs []string
	// Nobody marks the zero-survivor draw.
	Nobody bool
}

// Evaluate is the pure win evaluator. It inspects the roster without
// mutating it, so calling it twice in a row returns the same result.
// Rule order is fixed: forced override, love chain, solo win-stealers,
// village, wolves, lone loner, then the boundary cases.
func Evaluate(g *Game) Verdict {
	if g.ForcedWinnerID != "" {
		return Verdict{Over: true, WinnerID: g.ForcedWinnerID}
	}
	if g.ForcedSide != "" {
		return Verdict{Over: true, Side: g.ForcedSide}
	}

	living := g.Alive()
	if len(living) == 0 {
		return Verdict{Over: true, Nobody: true}
	}
	if len(living) == 1 {
		sole := living[0]
		if role.IsSoloKiller(sole.Side()) || sole.Side() == role.SideWolves {
			return Verdict{Over: true, Side: sole.Side(), WinnerID: sole.ID}
		}
		// Default win for the last player standing.
		return Verdict{Over: true, WinnerID: sole.ID}
	}

	// Love chain covering every survivor. Recomputed transitively, never
	// cached.
	if chained := loveChainCoversLiving(g, living); chained != nil {
		return Verdict{Over: true, LoverIDs: chained}
	}

	// Solo win-stealers pre-empt the generic faction checks.
	for _, p := range living {
		switch p.Side() {
		case role.SideFlutist:
			if everyOther(living, p, func(o *player.Player) bool { return o.Enchanted }) {
				return Verdict{Over: true, Side: role.SideFlutist, WinnerID: p.ID}
			}
		case role.SideSuperspreader:
			if everyOther(living, p, func(o *player.Player) bool { return o.Infected }) {
				return Verdict{Over: true, Side: role.SideSuperspreader, WinnerID: p.ID}
			}
		}
	}

	wolves := 0
	villagers := 0
	soloKillers := 0
	for _, p := range living {
		switch s := p.Side(); {
		case s == role.SideWolves || s == role.SideWhiteWolf:
			wolves++
		case role.IsSoloKiller(s):
			soloKillers++
		case s == role.SideVillagers:
			villagers++
		}
	}

	// Village wins when nothing that kills at night is left.
	if wolves == 0 && soloKillers == 0 {
		return Verdict{Over: true, Side: role.SideVillagers}
	}

	// Wolves win on parity, unless an independent killer survives.
	if wolves >= villagers && soloKillers == 0 && wolves > 0 {
		return Verdict{Over: true, Side: role.SideWolves}
	}

	return Verdict{}
}

func loveChainCoversLiving(g *Game, living []*player.Player) []string {
	root := ""
	for _, p := range living {
		if g.InLove(p.ID) {
			root = p.ID
			break
		}
	}
	if root == "" {
		return nil
	}
	chain := g.LoveChain(root)
	var ids []string
	for _, p := range living {
		if !chain[p.ID] {
			return nil
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func everyOther(living []*player.Player, self *player.Player, cond func(*player.Player) bool) bool {
	for _, o := range living {
		if o.ID == self.ID {
			continue
		}
		if !cond(o) {
			return false
		}
	}
	return len(living) > 1
}
