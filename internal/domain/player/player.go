// Package player defines the mutable per-game participant entity.
// This package is PURE and must NOT import any infrastructure packages
// (network, events, platform). Players are owned exclusively by the Game
// aggregate; pipeline stages read and write them only through it.
package player

import (
	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

// ProtectionState groups the per-night protection flags. Every flag consumed
// during night resolution must be cleared before the next night begins.
type ProtectionState struct {
	ByDoctor bool
	ByJailer bool
	ByHealer bool
	// GuardedBy holds the bodyguard's player ID for this night, "" if none.
	GuardedBy string
	// Shields are forged consumable shields; they persist until spent.
	Shields int
	// ToughUsed marks the Tough Guy's one-time survival as spent.
	ToughUsed bool
	// TrapSet marks the beast hunter's armed trap for this night.
	TrapSet bool
	// Warded marks the wolf shaman's ward: village magic reads the player
	// as an ordinary villager tonight.
	Warded bool
}

// ClearNight resets the flags that never carry over between nights.
func (ps *ProtectionState) ClearNight() {
	ps.ByDoctor = false
	ps.ByJailer = false
	ps.ByHealer = false
	ps.GuardedBy = ""
	ps.TrapSet = false
	ps.Warded = false
}

// BlockState groups role-blocking conditions (jailed, asleep) and the
// silence hex. Pending variants are scheduled one cycle ahead and applied
// during night setup.
type BlockState struct {
	Jailed       bool
	Asleep       bool
	Muted        bool
	PendingSleep bool
	PendingMute  bool
}

// Blocked reports whether the player is role-blocked for the current phase.
func (bs *BlockState) Blocked() bool {
	return bs.Jailed || bs.Asleep
}

// OneShotState tracks abilities usable at most once per session.
type OneShotState struct {
	AlphaCurse     bool
	WitchHeal      bool
	WitchPoison    bool
	PacifistReveal bool
	PriestWater    bool
	FlowerSave     bool
	PrinceSave     bool
	JudgeElection  bool
	JudgeObjection bool
	MayorReveal    bool
	Ritual         bool
	Summon         bool
	Swap           bool
	RobeTaken      bool
}

// Counters groups the per-role numeric state.
type Counters struct {
	Arrows     int
	Hunger     int
	Intercepts int
	Forges     int
}

// Player is the mutable per-game entity. Its identity is stable for the
// whole session; only the current role and the ability flags change.
type Player struct {
	ID   string
	Name string

	role    role.Role
	history []role.Role
	// Lives is the life counter; > 0 means alive. A player at <= 0 stays
	// permanently dead unless explicitly resurrected.
	Lives      int
	IsObserver bool

	Protection ProtectionState
	Block      BlockState
	OneShot    OneShotState
	Count      Counters

	// Disguise overrides the role shown to observers and information roles,
	// "" when no deception is active.
	Disguise role.Role
	// Converted marks the cursed bite: the player keeps their role but
	// counts for the wolves from now on.
	Converted bool
	Infected  bool
	Enchanted bool
	// Doused marks the player's house as soaked by the arsonist.
	Doused bool
	// HuntTarget is the head hunter's assigned mark.
	HuntTarget string
	// RevengeMark is the player dragged down when this one dies (junior
	// werewolf, loudmouth mark).
	RevengeMark string
	// VoteStrikes accrues one per election the player sat out.
	VoteStrikes int
}

// New creates a fresh alive player holding the given role.
func New(id, name string, r role.Role) *Player {
	p := &Player{ID: id, Name: name, role: r, Lives: 1}
	if r == role.Marksman {
		p.Count.Arrows = 2
	}
	if r == role.Forger {
		p.Count.Forges = 2
	}
	if r == role.Drunk {
		p.Block.Asleep = true
	}
	return p
}

// Role returns the player's current role.
func (p *Player) Role() role.Role {
	return p.role
}

// SetRole atomically swaps the current role, pushing the old one to the
// history so reveal-on-death can show what the player last held.
func (p *Player) SetRole(r role.Role) {
	p.history = append(p.history, p.role)
	p.role = r
	if r == role.Marksman && p.Count.Arrows == 0 {
		p.Count.Arrows = 2
	}
}

// History returns the ordered list of roles the player held before the
// current one.
func (p *Player) History() []role.Role {
	return p.history
}

// Alive reports whether the player is currently alive.
func (p *Player) Alive() bool {
	return p.Lives > 0
}

// Side computes the player's win grouping from role and flags.
func (p *Player) Side() role.Side {
	return role.SideOf(p.role, p.Converted)
}

// RevealedRole is the role shown when the player dies: the disguise if a
// deception ability set one, otherwise the current role.
func (p *Player) RevealedRole() role.Role {
	if p.Disguise != "" {
		return p.Disguise
	}
	return p.role
}

// CanAct reports whether the player may be solicited for an ability this
// phase: alive, participating, and not role-blocked.
func (p *Player) CanAct() bool {
	return p.Alive() && !p.IsObserver && !p.Block.Blocked()
}
