// Package role defines the static catalog of role identities for the game.
// This package is PURE and must NOT import any infrastructure packages
// (network, events, platform).
package role

import (
	"sort"
	"strings"
)

// Role identifies an immutable role identity. A player's *current* role can
// change (thief, raider, maid and troublemaker swap it), the identity itself
// never mutates.
type Role string

const (
	// Village team
	Villager       Role = "Villager"
	Seer           Role = "Seer"
	AuraSeer       Role = "Aura Seer"
	Detective      Role = "Detective"
	Doctor         Role = "Doctor"
	Jailer         Role = "Jailer"
	Healer         Role = "Healer"
	Bodyguard      Role = "Bodyguard"
	Witch          Role = "Witch"
	Cupid          Role = "Cupid"
	Hunter         Role = "Hunter"
	Marksman       Role = "Marksman"
	Priest         Role = "Priest"
	Pacifist       Role = "Pacifist"
	Sheriff        Role = "Sheriff"
	Judge          Role = "Judge"
	Mayor          Role = "Mayor"
	Medium         Role = "Medium"
	Ritualist      Role = "Ritualist"
	SpiritSummoner Role = "Spirit Summoner"
	RedLady        Role = "Red Lady"
	GuardianAngel  Role = "Guardian Angel"
	ToughGuy       Role = "Tough Guy"
	Forger         Role = "Forger"
	FlowerChild    Role = "Flower Child"
	BeastHunter    Role = "Beast Hunter"
	SeerApprentice Role = "Seer Apprentice"
	Loudmouth      Role = "Loudmouth"
	GraveRobber    Role = "Grave Robber"
	Maid           Role = "Maid"
	Troublemaker   Role = "Troublemaker"
	Thief          Role = "Thief"
	Drunk          Role = "Drunk"
	Sleepwalker    Role = "Sleepwalker"
	Mason          Role = "Mason"
	Prince         Role = "Prince"
	Avenger        Role = "Avenger"
	Astrologer     Role = "Astrologer"
	Gravedigger    Role = "Gravedigger"
	VillageElder   Role = "Village Elder"
	Oracle         Role = "Oracle"
	WarVeteran     Role = "War Veteran"
	Cursed         Role = "Cursed"

	// Wolf team
	Werewolf          Role = "Werewolf"
	AlphaWolf         Role = "Alpha Wolf"
	WolfShaman        Role = "Wolf Shaman"
	WolfSeer          Role = "Wolf Seer"
	Sorcerer          Role = "Sorcerer"
	JuniorWerewolf    Role = "Junior Werewolf"
	KittenWolf        Role = "Kitten Wolf"
	NightmareWerewolf Role = "Nightmare Werewolf"
	VoodooWerewolf    Role = "Voodoo Werewolf"
	GuardianWolf      Role = "Guardian Wolf"
	WolfSummoner      Role = "Wolf Summoner"
	WolfTrickster     Role = "Wolf Trickster"
	ShadowWolf        Role = "Shadow Wolf"
	RagingWolf        Role = "Raging Wolf"

	// Solo / loner roles
	Jester        Role = "Jester"
	HeadHunter    Role = "Head Hunter"
	SerialKiller  Role = "Serial Killer"
	Cannibal      Role = "Cannibal"
	WhiteWolf     Role = "White Wolf"
	Flutist       Role = "Flutist"
	Superspreader Role = "Superspreader"
	Arsonist      Role = "Arsonist"
	Raider        Role = "Raider"
)

// Team is the faction a role belongs to for roster balancing. Sides (win
// grouping) are derived separately, see side.go.
type Team string

const (
	TeamVillage Team = "village"
	TeamWolf    Team = "wolf"
	TeamSolo    Team = "solo"
)

// Category groups roles for roster substitution and the duplicate caps.
type Category string

const (
	CategoryNone        Category = ""
	CategorySeer        Category = "seer"
	CategoryProtector   Category = "protector"
	CategorySpecialWolf Category = "special-wolf"
	CategorySoloKiller  Category = "solo-killer"
)

// Mode is a game mode token controlling role availability.
type Mode string

const (
	ModeQuick   Mode = "quick"
	ModeClassic Mode = "classic"
	ModeChaos   Mode = "chaos"
	ModeCustom  Mode = "custom"
)

// MinPlayers is the minimum roster size the command surface enforces per mode.
func (m Mode) MinPlayers() int {
	if m == ModeChaos {
		return 8
	}
	return 5
}

// Info holds the static metadata for one role identity.
type Info struct {
	Team        Team
	Category    Category
	Description string
	// QuickMode marks roles available in the reduced quick mode. Classic
	// excludes only the roles listed in classicExcluded; chaos and custom
	// allow everything.
	QuickMode bool
	// Advanced is the upgraded variant a player may choose at session start
	// if their progression level for the base role is at least MinLevel.
	Advanced Role
	MinLevel int
}

var catalog = map[Role]Info{
	Villager:       {Team: TeamVillage, Description: "No special powers. Relies on deduction and the day vote.", QuickMode: true},
	Seer:           {Team: TeamVillage, Category: CategorySeer, Description: "Each night learns the role of one player.", QuickMode: true, Advanced: Detective, MinLevel: 3},
	AuraSeer:       {Team: TeamVillage, Category: CategorySeer, Description: "Each night learns whether a player's aura is evil or innocent."},
	Detective:      {Team: TeamVillage, Category: CategorySeer, Description: "Each night compares two players and learns whether they share a team."},
	Doctor:         {Team: TeamVillage, Category: CategoryProtector, Description: "Each night shields one player from attacks.", QuickMode: true},
	Jailer:         {Team: TeamVillage, Category: CategoryProtector, Description: "Each night jails one player: they cannot act and cannot be attacked."},
	Healer:         {Team: TeamVillage, Category: CategoryProtector, Description: "Each night tends to one player, saving them from a single attack."},
	Bodyguard:      {Team: TeamVillage, Category: CategoryProtector, Description: "Guards one player each night. Survives the first interception; the second is fatal."},
	Witch:          {Team: TeamVillage, Description: "Owns one healing potion and one poison, each usable once."},
	Cupid:          {Team: TeamVillage, Description: "On the first night binds two players as lovers. If one dies, so does the other."},
	Hunter:         {Team: TeamVillage, Description: "When dying, immediately shoots one player.", QuickMode: true},
	Marksman:       {Team: TeamVillage, Description: "Carries two arrows; may fire one per day at a suspect."},
	Priest:         {Team: TeamVillage, Description: "Once per game throws holy water by day: a wolf dies, anyone else and the priest dies instead."},
	Pacifist:       {Team: TeamVillage, Description: "Once per game reveals themselves and cancels the day's vote."},
	Sheriff:        {Team: TeamVillage, Description: "Their vote counts twice in day elections."},
	Judge:          {Team: TeamVillage, Description: "Knows a secret phrase that triggers a second election, and may object to abort a nomination."},
	Mayor:          {Team: TeamVillage, Description: "May reveal their card to restrict nominations to their own picks."},
	Medium:         {Team: TeamVillage, Description: "Speaks with the dead at night."},
	Ritualist:      {Team: TeamVillage, Description: "Speaks with the dead and once per game may ritually revive one of them."},
	SpiritSummoner: {Team: TeamVillage, Description: "Once per game casts a slow resurrection that completes two cycles later."},
	RedLady:        {Team: TeamVillage, Description: "Visits a player at night. Visiting a victim or an evil player is deadly; being attacked while away is not."},
	GuardianAngel:  {Team: TeamVillage, Description: "Visits a player at night, cancelling their death and binding both fates together."},
	ToughGuy:       {Team: TeamVillage, Description: "Survives the first attack against them."},
	Forger:         {Team: TeamVillage, Description: "Forges up to two shields by day and hands them out."},
	FlowerChild:    {Team: TeamVillage, Description: "Once per game cancels a lynch outright."},
	BeastHunter:    {Team: TeamVillage, Description: "Sets a trap at night and learns whether their trap was sprung."},
	SeerApprentice: {Team: TeamVillage, Description: "Inherits the Seer's gift when the Seer dies."},
	Loudmouth:      {Team: TeamVillage, Description: "Marks a player by day; when the Loudmouth dies, the marked player's role is revealed."},
	GraveRobber:    {Team: TeamVillage, Description: "Takes over the role of the first player to die."},
	Maid:           {Team: TeamVillage, Description: "May pick up the role of a freshly dead player, discarding her own."},
	Troublemaker:   {Team: TeamVillage, Description: "Once per game swaps the roles of two other players."},
	Thief:          {Team: TeamVillage, Description: "On the first night chooses a role from the two reserve cards."},
	Drunk:          {Team: TeamVillage, Description: "Too drunk to be woken: sleeps through the first two nights."},
	Sleepwalker:    {Team: TeamVillage, Description: "Wanders at night; attackers who come to their bed find it empty."},
	Mason:          {Team: TeamVillage, Description: "Knows the other masons, confirming them innocent."},
	Prince:         {Team: TeamVillage, Description: "Royal blood: the first lynch against the Prince fails and reveals them."},
	Avenger:        {Team: TeamVillage, Description: "When lynched, drags their top accuser down with them."},
	Astrologer:     {Team: TeamVillage, Description: "Reads the stars: learns how many evil players live among three chosen ones."},
	Gravedigger:    {Team: TeamVillage, Description: "Each day learns the team of one buried player."},
	VillageElder:   {Team: TeamVillage, Description: "If the Elder dies, the village loses its special powers."},
	Oracle:         {Team: TeamVillage, Category: CategorySeer, Description: "Learns one role that a chosen player is NOT."},
	WarVeteran:     {Team: TeamVillage, Description: "An old soldier; kills any lone attacker who targets them while on guard."},
	Cursed:         {Team: TeamVillage, Description: "An ordinary villager until bitten: the wolf attack converts them instead of killing.", QuickMode: true},

	Werewolf:          {Team: TeamWolf, Description: "Hunts with the pack each night and votes on the victim.", QuickMode: true},
	AlphaWolf:         {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Leads the pack; once per game curses the chosen victim into a wolf instead of killing."},
	WolfShaman:        {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Shields one wolf per night from village magic."},
	WolfSeer:          {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Each night learns the role of one player for the pack."},
	Sorcerer:          {Team: TeamWolf, Category: CategorySpecialWolf, Description: "A human in league with the wolves, searching for the Seer each night."},
	JuniorWerewolf:    {Team: TeamWolf, Category: CategorySpecialWolf, Description: "A young wolf; its death enrages the pack."},
	KittenWolf:        {Team: TeamWolf, Category: CategorySpecialWolf, Description: "If killed, its bite converts the attacker's next victim."},
	NightmareWerewolf: {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Haunts a player, putting them to sleep for the following night."},
	VoodooWerewolf:    {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Hexes a player, silencing them for the following day."},
	GuardianWolf:      {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Protects one member of the pack each night."},
	WolfSummoner:      {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Once per game calls a fallen wolf back from the grave."},
	WolfTrickster:     {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Appears innocent to seers while it lives."},
	ShadowWolf:        {Team: TeamWolf, Category: CategorySpecialWolf, Description: "Leaves no trace: its kills carry no scent for forensic roles."},
	RagingWolf:        {Team: TeamWolf, Category: CategorySpecialWolf, Description: "While the pack is unbloodied, claims a second, separate victim."},

	Jester:        {Team: TeamSolo, Description: "Wins alone by getting lynched by the village."},
	HeadHunter:    {Team: TeamSolo, Description: "Wins alone if the village lynches their secret target."},
	SerialKiller:  {Team: TeamSolo, Category: CategorySoloKiller, Description: "Kills one player each night and shrugs off wolf bites. Wins as the last one standing."},
	Cannibal:      {Team: TeamSolo, Category: CategorySoloKiller, Description: "Grows hungrier each quiet night, then devours several players at once."},
	WhiteWolf:     {Team: TeamSolo, Category: CategorySoloKiller, Description: "Runs with the pack but devours a wolf every second night. Wins alone."},
	Flutist:       {Team: TeamSolo, Description: "Enchants players each night; wins once every survivor dances to the flute."},
	Superspreader: {Team: TeamSolo, Description: "Infects players each night; wins once every survivor is infected."},
	Arsonist:      {Team: TeamSolo, Category: CategorySoloKiller, Description: "Douses houses at night, then lights a single match."},
	Raider:        {Team: TeamSolo, Category: CategorySoloKiller, Description: "Raids a player each night, stealing their role and leaving them a commoner."},
}

// classicExcluded lists roles held back from the default classic mode.
var classicExcluded = map[Role]bool{
	Superspreader: true,
	Arsonist:      true,
	Raider:        true,
	ShadowWolf:    true,
	WolfTrickster: true,
	WarVeteran:    true,
}

// Get returns the catalog entry for a role.
func Get(r Role) (Info, bool) {
	info, ok := catalog[r]
	return info, ok
}

// All returns every role identity in deterministic order.
func All() []Role {
	roles := make([]Role, 0, len(catalog))
	for r := range catalog {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// TeamOf returns the faction of a role. Unknown roles default to the village.
func TeamOf(r Role) Team {
	if info, ok := catalog[r]; ok {
		return info.Team
	}
	return TeamVillage
}

// CategoryOf returns the roster category of a role.
func CategoryOf(r Role) Category {
	if info, ok := catalog[r]; ok {
		return info.Category
	}
	return CategoryNone
}

// Available reports whether a role may appear in the given mode.
func Available(r Role, m Mode) bool {
	info, ok := catalog[r]
	if !ok {
		return false
	}
	switch m {
	case ModeQuick:
		return info.QuickMode
	case ModeClassic:
		return !classicExcluded[r]
	default:
		return true
	}
}

// Fallback returns the generic role used when a slot cannot hold its
// original role (mode availability, duplicate caps, ratio fixes).
func Fallback(t Team) Role {
	if t == TeamWolf {
		return Werewolf
	}
	return Villager
}

// Parse resolves a user-supplied token to a role identity. Matching is
// case-insensitive and ignores spaces, hyphens and underscores.
func Parse(token string) (Role, bool) {
	key := normalize(token)
	for r := range catalog {
		if normalize(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}
