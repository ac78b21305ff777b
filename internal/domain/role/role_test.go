package role

import "testing"

func TestSideOfIsTotal(t *testing.T) {
	for _, r := range All() {
		s := SideOf(r, false)
		if s == "" {
			t.Errorf("SideOf(%s) returned an empty side", r)
		}
		// A converted player always counts for the wolves.
		if got := SideOf(r, true); got != SideWolves {
			t.Errorf("SideOf(%s, converted) = %s, want %s", r, got, SideWolves)
		}
	}
}

func TestSideOfKnownRoles(t *testing.T) {
	cases := []struct {
		r    Role
		want Side
	}{
		{Villager, SideVillagers},
		{Seer, SideVillagers},
		{Cursed, SideVillagers},
		{Werewolf, SideWolves},
		{AlphaWolf, SideWolves},
		{Sorcerer, SideWolves},
		{WhiteWolf, SideWhiteWolf},
		{Jester, SideJester},
		{HeadHunter, SideHeadHunter},
		{SerialKiller, SideSerialKiller},
		{Cannibal, SideCannibal},
		{Flutist, SideFlutist},
		{Superspreader, SideSuperspreader},
		{Arsonist, SideSerialKiller},
		{Raider, SideSerialKiller},
	}
	for _, c := range cases {
		if got := SideOf(c.r, false); got != c.want {
			t.Errorf("SideOf(%s) = %s, want %s", c.r, got, c.want)
		}
	}
	if got := SideOf(Cursed, true); got != SideWolves {
		t.Errorf("SideOf(Cursed, converted) = %s, want %s", got, SideWolves)
	}
}

func TestIsSoloKiller(t *testing.T) {
	for _, s := range []Side{SideSerialKiller, SideCannibal, SideWhiteWolf} {
		if !IsSoloKiller(s) {
			t.Errorf("IsSoloKiller(%s) = false, want true", s)
		}
	}
	for _, s := range []Side{SideVillagers, SideWolves, SideJester, SideFlutist} {
		if IsSoloKiller(s) {
			t.Errorf("IsSoloKiller(%s) = true, want false", s)
		}
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		token string
		want  Role
		ok    bool
	}{
		{"werewolf", Werewolf, true},
		{"Aura Seer", AuraSeer, true},
		{"aura-seer", AuraSeer, true},
		{"aura_seer", AuraSeer, true},
		{"SERIALKILLER", SerialKiller, true},
		{"head hunter", HeadHunter, true},
		{"banana", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Parse(c.token)
		if ok != c.ok || got != c.want {
			t.Errorf("Parse(%q) = (%s, %v), want (%s, %v)", c.token, got, ok, c.want, c.ok)
		}
	}
}

func TestAvailability(t *testing.T) {
	if Available(Superspreader, ModeClassic) {
		t.Error("Superspreader should be excluded from classic mode")
	}
	if !Available(Superspreader, ModeChaos) {
		t.Error("Superspreader should be available in chaos mode")
	}
	if Available(Witch, ModeQuick) {
		t.Error("Witch should not be available in quick mode")
	}
	if !Available(Werewolf, ModeQuick) {
		t.Error("Werewolf must always be available")
	}
}

func TestModeMinPlayers(t *testing.T) {
	if got := ModeChaos.MinPlayers(); got != 8 {
		t.Errorf("chaos minimum = %d, want 8", got)
	}
	if got := ModeClassic.MinPlayers(); got != 5 {
		t.Errorf("classic minimum = %d, want 5", got)
	}
}

func TestFallbackKeepsTeam(t *testing.T) {
	if Fallback(TeamWolf) != Werewolf {
		t.Error("wolf fallback must be the generic Werewolf")
	}
	if Fallback(TeamVillage) != Villager || Fallback(TeamSolo) != Villager {
		t.Error("non-wolf fallback must be the plain Villager")
	}
}

func TestCatalogDescriptions(t *testing.T) {
	for _, r := range All() {
		info, ok := Get(r)
		if !ok {
			t.Fatalf("role %s missing from catalog", r)
		}
		if info.Description == "" {
			t.Errorf("role %s has no description", r)
		}
	}
}
