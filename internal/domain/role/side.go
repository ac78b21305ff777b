package role

// Side is the win-condition grouping a player belongs to. It is derived from
// the player's current role plus transient flags, never stored.
type Side string

const (
	SideVillagers     Side = "Villagers"
	SideWolves        Side = "Wolves"
	SideWhiteWolf     Side = "White Wolf"
	SideFlutist       Side = "Flutist"
	SideSuperspreader Side = "Superspreader"
	SideJester        Side = "Jester"
	SideHeadHunter    Side = "Head Hunter"
	SideSerialKiller  Side = "Serial Killer"
	SideCannibal      Side = "Cannibal"
)

// sideTable maps the solo roles that do not follow their team's default side.
// Arsonist and Raider share the serial-killer grouping: identical lone-survivor
// win condition, and they block the village win the same way.
var sideTable = map[Role]Side{
	Jester:        SideJester,
	HeadHunter:    SideHeadHunter,
	SerialKiller:  SideSerialKiller,
	Cannibal:      SideCannibal,
	WhiteWolf:     SideWhiteWolf,
	Flutist:       SideFlutist,
	Superspreader: SideSuperspreader,
	Arsonist:      SideSerialKiller,
	Raider:        SideSerialKiller,
}

// SideOf is the total side function. converted reports whether the player was
// force-converted to the wolves (the cursed bite), which overrides everything
// except a wolf-team role the player already holds.
func SideOf(r Role, converted bool) Side {
	if converted {
		return SideWolves
	}
	if s, ok := sideTable[r]; ok {
		return s
	}
	if TeamOf(r) == TeamWolf {
		return SideWolves
	}
	return SideVillagers
}

// IsSoloKiller reports whether a side belongs to an independent night killer.
// These sides are immune to the generic wolf attack and block both the
// village and the wolf win.
func IsSoloKiller(s Side) bool {
	return s == SideSerialKiller || s == SideCannibal || s == SideWhiteWolf
}
