package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wolfden-games/wolfden-server/internal/events"
	"github.com/wolfden-games/wolfden-server/internal/platform/metrics"
)

// archivedEvent is the row shape of the events table.
type archivedEvent struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Timestamp time.Time `db:"timestamp"`
	EventType string    `db:"event_type"`
	ActorID   string    `db:"actor_id"`
	TargetID  string    `db:"target_id"`
	Payload   string    `db:"payload"`
	Round     int       `db:"round"`
	IsPublic  bool      `db:"is_public"`
}

// EventArchive persists game events. It satisfies events.EventPersister so
// the in-memory log writes through to it.
type EventArchive struct {
	db *sqlx.DB
}

func NewEventArchive(db *sqlx.DB) *EventArchive {
	return &EventArchive{db: db}
}

// Append writes one event to the archive.
func (r *EventArchive) Append(event events.GameEvent) error {
	start := time.Now()
	err := r.append(context.Background(), event)
	metrics.Get().RecordEventWrite(time.Since(start), err)
	return err
}

func (r *EventArchive) append(ctx context.Context, event events.GameEvent) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, session_id, timestamp, event_type, actor_id, target_id, payload, round, is_public)
		VALUES (:id, :session_id, :timestamp, :event_type, :actor_id, :target_id, :payload, :round, :is_public)
	`
	_, err = r.db.NamedExecContext(ctx, query, archivedEvent{
		ID:        event.ID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		TargetID:  event.TargetID,
		Payload:   string(payloadBytes),
		Round:     event.Round,
		IsPublic:  event.Public,
	})
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *EventArchive) getMany(ctx context.Context, query string, args ...interface{}) ([]events.GameEvent, error) {
	var rows []archivedEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]events.GameEvent, 0, len(rows))
	for _, row := range rows {
		e := events.GameEvent{
			ID:        row.ID,
			SessionID: row.SessionID,
			Timestamp: row.Timestamp,
			Type:      events.EventType(row.EventType),
			ActorID:   row.ActorID,
			TargetID:  row.TargetID,
			Round:     row.Round,
			Public:    row.IsPublic,
		}
		if err := json.Unmarshal([]byte(row.Payload), &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetBySessionID returns the full archived history of one session.
func (r *EventArchive) GetBySessionID(ctx context.Context, sessionID string) ([]events.GameEvent, error) {
	query := `SELECT id, session_id, timestamp, event_type, actor_id, target_id, payload, round, is_public FROM events WHERE session_id = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID)
}

// GetByRound returns one round's archived events.
func (r *EventArchive) GetByRound(ctx context.Context, sessionID string, round int) ([]events.GameEvent, error) {
	query := `SELECT id, session_id, timestamp, event_type, actor_id, target_id, payload, round, is_public FROM events WHERE session_id = ? AND round = ? ORDER BY timestamp ASC`
	return r.getMany(ctx, query, sessionID, round)
}
