package engine

import (
	"testing"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

func TestRegistryOneSessionPerRoom(t *testing.T) {
	r := NewRegistry()
	s1 := testSession(newFakeChannel(), role.Villager)
	if err := r.Register(s1); err != nil {
		t.Fatal(err)
	}
	s2 := testSession(newFakeChannel(), role.Villager)
	if err := r.Register(s2); err == nil {
		t.Error("a second session in the same room must be rejected")
	}

	if got := r.Get("room-1"); got != s1 {
		t.Error("Get should return the registered session")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}

	r.Remove("room-1")
	if r.Get("room-1") != nil {
		t.Error("removed room should be free again")
	}
	if err := r.Register(s2); err != nil {
		t.Errorf("freed room should accept a new session: %v", err)
	}
}
