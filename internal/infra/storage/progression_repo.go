package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wolfden-games/wolfden-server/internal/domain/role"
)

// winsPerLevel sets how many wins with a role advance one level.
const winsPerLevel = 3

// ProgressionRepo is the sqlite implementation of the role progression
// store the engine consults at session start.
type ProgressionRepo struct {
	db *sqlx.DB
}

func NewProgressionRepo(db *sqlx.DB) *ProgressionRepo {
	return &ProgressionRepo{db: db}
}

// GetLevel returns the actor's level with a role, 0 if they never played it.
func (r *ProgressionRepo) GetLevel(actorID string, rl role.Role) (int, error) {
	var level int
	err := r.db.Get(&level,
		`SELECT level FROM role_progression WHERE actor_id = ? AND role = ?`,
		actorID, string(rl))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read progression: %w", err)
	}
	return level, nil
}

// RecordWin bumps the actor's win count with a role and recomputes the level.
func (r *ProgressionRepo) RecordWin(actorID string, rl role.Role) error {
	query := `
		INSERT INTO role_progression (actor_id, role, level, wins, last_updated)
		VALUES (?, ?, 0, 1, ?)
		ON CONFLICT(actor_id, role) DO UPDATE SET
			wins = wins + 1,
			level = (wins + 1) / ?,
			last_updated = excluded.last_updated
	`
	if _, err := r.db.Exec(query, actorID, string(rl), time.Now(), winsPerLevel); err != nil {
		return fmt.Errorf("failed to record win: %w", err)
	}
	return nil
}
