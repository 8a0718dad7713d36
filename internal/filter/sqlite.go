package filter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const filterSchema = `
CREATE TABLE IF NOT EXISTS view_filters (
	view       TEXT PRIMARY KEY,
	search     TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);`

// SQLiteRepository is a [Repository] backed by a SQLite database file, so
// filters survive restarts of the process.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open filter database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(filterSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create filter schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Save implements [Repository].
func (r *SQLiteRepository) Save(ctx context.Context, view string, state State) error {
	state = state.Normalize()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO view_filters (view, search, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(view) DO UPDATE SET
			search = excluded.search,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		view, state.Search, state.Category, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save filter for %q: %w", view, err)
	}
	return nil
}

// Load implements [Repository].
func (r *SQLiteRepository) Load(ctx context.Context, view string) (State, bool, error) {
	var s State
	err := r.db.QueryRowContext(ctx,
		`SELECT search, category FROM view_filters WHERE view = ?`, view,
	).Scan(&s.Search, &s.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load filter for %q: %w", view, err)
	}
	return s, true, nil
}

// Delete implements [Repository].
func (r *SQLiteRepository) Delete(ctx context.Context, view string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM view_filters WHERE view = ?`, view); err != nil {
		return fmt.Errorf("delete filter for %q: %w", view, err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
