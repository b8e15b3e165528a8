package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ CursorRepository = (*CursorRepo)(nil)

// CursorRepo stores named watermarks for coarse run scheduling
type CursorRepo struct {
	db *DB
}

func NewCursorRepository(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

func (r *CursorRepo) GetCursor(name string) (*time.Time, error) {
	var lastRunAt time.Time
	err := r.db.QueryRow(`
		SELECT last_run_at FROM cursors WHERE name = $1
	`, name).Scan(&lastRunAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	return &lastRunAt, nil
}

func (r *CursorRepo) SetCursor(name string, lastRunAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO cursors (name, last_run_at)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last_run_at = EXCLUDED.last_run_at
	`, name, lastRunAt)
	if err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}

	return nil
}
