// Package events provides the append-only log of session events: phase
// changes, deaths, votes and announcements. It feeds both the observer
// stream and the archived game record.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypePhaseChange  EventType = "PHASE_CHANGE"
	EventTypeRoleAssigned EventType = "ROLE_ASSIGNED"
	EventTypeDeath        EventType = "DEATH"
	EventTypeLynch        EventType = "LYNCH"
	EventTypeSave         EventType = "SAVE"
	EventTypeConversion   EventType = "CONVERSION"
	EventTypeResurrection EventType = "RESURRECTION"
	EventTypeNomination   EventType = "NOMINATION"
	EventTypeVote         EventType = "VOTE"
	EventTypeNoLynch      EventType = "NO_LYNCH"
	EventTypeGameEnd      EventType = "GAME_END"
	EventTypeSessionError EventType = "SESSION_ERROR"
)

// GameEvent represents an immutable record of something that happened in a
// session.
type GameEvent struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`
	TargetID  string      `json:"target_id"`
	Payload   interface{} `json:"payload"`
	Round     int         `json:"round"`
	// Public events may be pushed to observers; private ones stay in the
	// archive.
	Public bool `json:"public"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log with an optional write-through
// persister.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister != nil {
		// Write through to persistent storage off the hot path.
		go func(e GameEvent) {
			_ = el.persister.Append(e)
		}(event)
	}
}

// Replay returns the full history of events.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// GetByRound returns all events recorded for a specific round.
func (el *EventLog) GetByRound(round int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Round == round {
			result = append(result, e)
		}
	}
	return result
}

// GetByActor returns all events attributed to a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}
