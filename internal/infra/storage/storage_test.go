package storage

import (
	"context"
	"testing"
	"time"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
	"github.com/wolfden-games/wolfden-server/internal/events"
)

func testDB(t *testing.T) *EventArchive {
	t.Helper()
	db, err := InitSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEventArchive(db)
}

func TestEventArchiveRoundTrip(t *testing.T) {
	archive := testDB(t)
	ctx := context.Background()

	in := events.GameEvent{
		ID: "ev-1", SessionID: "s-1", Timestamp: time.Now().UTC(),
		Type: events.EventTypeDeath, ActorID: "wolf-1", TargetID: "villager-3",
		Payload: "wolves", Round: 2, Public: true,
	}
	if err := archive.Append(in); err != nil {
		t.Fatal(err)
	}
	if err := archive.Append(events.GameEvent{
		ID: "ev-2", SessionID: "s-2", Timestamp: time.Now().UTC(),
		Type: events.EventTypeVote, Round: 1,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := archive.GetBySessionID(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events for s-1, want 1", len(got))
	}
	e := got[0]
	if e.ID != "ev-1" || e.Type != events.EventTypeDeath || e.TargetID != "villager-3" {
		t.Errorf("round trip mangled the event: %+v", e)
	}
	if e.Payload != "wolves" {
		t.Errorf("payload = %v, want wolves", e.Payload)
	}
	if !e.Public {
		t.Error("public flag lost in the round trip")
	}
}

func TestEventArchiveGetByRound(t *testing.T) {
	archive := testDB(t)
	ctx := context.Background()

	for round := 1; round <= 3; round++ {
		err := archive.Append(events.GameEvent{
			ID: "ev-" + string(rune('0'+round)), SessionID: "s-1",
			Timestamp: time.Now().UTC(), Type: events.EventTypePhaseChange,
			Payload: "night", Round: round,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := archive.GetByRound(ctx, "s-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Round != 2 {
		t.Errorf("got %+v, want only round 2", got)
	}
}

func TestProgressionLevels(t *testing.T) {
	db, err := InitSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewProgressionRepo(db)

	level, err := repo.GetLevel("p-1", role.Seer)
	if err != nil {
		t.Fatal(err)
	}
	if level != 0 {
		t.Errorf("fresh actor level = %d, want 0", level)
	}

	for i := 0; i < 3; i++ {
		if err := repo.RecordWin("p-1", role.Seer); err != nil {
			t.Fatal(err)
		}
	}
	level, err = repo.GetLevel("p-1", role.Seer)
	if err != nil {
		t.Fatal(err)
	}
	if level != 1 {
		t.Errorf("level after 3 wins = %d, want 1", level)
	}

	// Progression is tracked per role.
	level, err = repo.GetLevel("p-1", role.Witch)
	if err != nil {
		t.Fatal(err)
	}
	if level != 0 {
		t.Errorf("witch level = %d, want 0", level)
	}
}
