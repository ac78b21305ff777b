// Package game holds the aggregate root for one session: the roster, the
// lovers pairings, the pending resurrections and the forensic kill records.
// Pipeline stages mutate players only through this aggregate.
package game

import (
	"github.com/wolfden-games/wolfden-server/internal/domain/player"
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

// KillerGroup tags which category of attacker caused a death. Used for
// immunity rules and post-hoc forensics.
type KillerGroup string

const (
	KillerWolves  KillerGroup = "wolves"
	KillerSolo    KillerGroup = "solo"
	KillerVote    KillerGroup = "vote"
	KillerRevenge KillerGroup = "revenge"
	KillerReferee KillerGroup = "referee"
	// KillerUnknown marks a scentless kill: the shadow wolf hides the
	// pack's trace from forensic roles and innate wolf-sense.
	KillerUnknown KillerGroup = "unknown"
)

// Phase is the session's current state-machine position.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseNight    Phase = "night"
	PhaseDay      Phase = "day"
	PhaseFinished Phase = "finished"
)

// PendingResurrection is a queued revival. It fires after Delay further
// day/night cycles elapse, even if the caster dies first.
type PendingResurrection struct {
	CasterID string
	TargetID string
	Origin   role.Role
	Delay    int
}

// Game is the aggregate root, created once per session and discarded at
// session end. Dead players remain in the roster for reveal and
// communication purposes.
type Game struct {
	ID    string
	Mode  role.Mode
	Round int
	Phase Phase

	Players []*player.Player
	// Reserve is the two-card thief pool never held by a live player at start.
	Reserve []role.Role

	lovers    [][2]string
	fateBound [][2]string

	Resurrections []PendingResurrection
	// KilledBy records which attacker group killed each player this session.
	KilledBy map[string]KillerGroup

	// ForcedWinnerID and ForcedSide are win-stealing overrides; once set the
	// evaluator returns them unconditionally.
	ForcedWinnerID string
	ForcedSide     role.Side

	// WolfDeathOccurred flips once any wolf-aligned player has died; it gates
	// the raging wolf's extra kill.
	WolfDeathOccurred bool
	// ElderPowerLost flips when the village elder dies.
	ElderPowerLost bool
	// KittenBite arms when the kitten wolf dies: the pack's next victim is
	// converted instead of killed.
	KittenBite bool
}

// New creates an empty game in the lobby phase.
func New(id string, mode role.Mode) *Game {
	return &Game{
		ID:       id,
		Mode:     mode,
		Phase:    PhaseLobby,
		KilledBy: make(map[string]KillerGroup),
	}
}

// PlayerByID returns the roster entry with the given ID, nil if absent.
func (g *Game) PlayerByID(id string) *player.Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Alive returns the living, participating players in roster order.
func (g *Game) Alive() []*player.Player {
	var out []*player.Player
	for _, p := range g.Players {
		if p.Alive() && !p.IsObserver {
			out = append(out, p)
		}
	}
	return out
}

// AliveWithRole returns the living holders of a role.
func (g *Game) AliveWithRole(r role.Role) []*player.Player {
	var out []*player.Player
	for _, p := range g.Alive() {
		if p.Role() == r {
			out = append(out, p)
		}
	}
	return out
}

// AliveOnSide returns the living players whose side matches.
func (g *Game) AliveOnSide(s role.Side) []*player.Player {
	var out []*player.Player
	for _, p := range g.Alive() {
		if p.Side() == s {
			out = append(out, p)
		}
	}
	return out
}

// WolfBloc returns the living wolf-team members that hunt together. The
// white wolf runs with the pack but is not part of the bloc's vote.
func (g *Game) WolfBloc() []*player.Player {
	var out []*player.Player
	for _, p := range g.Alive() {
		if role.TeamOf(p.Role()) == role.TeamWolf || (p.Converted && p.Side() == role.SideWolves) {
			out = append(out, p)
		}
	}
	return out
}

// Kill decrements the target's life counter and records the killer group.
// It is idempotent against already-dead targets: resolving a kill twice
// never drops the counter below zero. Returns true if the player died now.
func (g *Game) Kill(p *player.Player, group KillerGroup) bool {
	if p == nil || !p.Alive() {
		return false
	}
	p.Lives--
	if p.Lives > 0 {
		return false
	}
	g.KilledBy[p.ID] = group
	if p.Side() == role.SideWolves {
		g.WolfDeathOccurred = true
	}
	if p.Role() == role.VillageElder {
		g.ElderPowerLost = true
	}
	return true
}

// Resurrect creates a new alive state for a dead player. Resurrecting an
// alive player is a no-op.
func (g *Game) Resurrect(p *player.Player) bool {
	if p == nil || p.Alive() {
		return false
	}
	p.Lives = 1
	delete(g.KilledBy, p.ID)
	return true
}

// AddLovers records a mutual love pairing. The relation is symmetric.
func (g *Game) AddLovers(a, b string) {
	if a == b || a == "" || b == "" {
		return
	}
	for _, pair := range g.lovers {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return
		}
	}
	g.lovers = append(g.lovers, [2]string{a, b})
}

// BindFates records a guardian-angel bond: if either player dies the other
// follows, but the bond does not participate in the lovers win.
func (g *Game) BindFates(a, b string) {
	if a == b || a == "" || b == "" {
		return
	}
	g.fateBound = append(g.fateBound, [2]string{a, b})
}

// Partners returns every player directly bound to id, through love or a
// guardian bond. Used for companion-death cascades.
func (g *Game) Partners(id string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(x string) {
		if x != id && !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	for _, pair := range g.lovers {
		if pair[0] == id {
			add(pair[1])
		}
		if pair[1] == id {
			add(pair[0])
		}
	}
	for _, pair := range g.fateBound {
		if pair[0] == id {
			add(pair[1])
		}
		if pair[1] == id {
			add(pair[0])
		}
	}
	return out
}

// LoveChain returns the transitive closure of mutual love relations rooted
// at id. It is recomputed on every call, never cached.
func (g *Game) LoveChain(id string) map[string]bool {
	chain := map[string]bool{id: true}
	for {
		grew := false
		for _, pair := range g.lovers {
			if chain[pair[0]] && !chain[pair[1]] {
				chain[pair[1]] = true
				grew = true
			}
			if chain[pair[1]] && !chain[pair[0]] {
				chain[pair[0]] = true
				grew = true
			}
		}
		if !grew {
			return chain
		}
	}
}

// InLove reports whether the player participates in any love pairing.
func (g *Game) InLove(id string) bool {
	for _, pair := range g.lovers {
		if pair[0] == id || pair[1] == id {
			return true
		}
	}
	return false
}
