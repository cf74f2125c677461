// Package store archives runs and their population snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/ibs/ibs"
)

// ErrNotFound is returned when a run has no archived snapshot.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	seed       INTEGER NOT NULL,
	config     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	updates    INTEGER NOT NULL,
	generation REAL NOT NULL,
	state      TEXT NOT NULL,
	PRIMARY KEY (run_id, updates)
);
`

// Run describes an archived run.
type Run struct {
	ID        string
	Seed      uint64
	Config    string
	CreatedAt time.Time
	Snapshots int
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a new run and returns its id.
func (s *Store) CreateRun(ctx context.Context, seed uint64, config string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, config, created_at) VALUES (?, ?, ?, ?)`,
		id, int64(seed), config, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// SaveSnapshot stores a population state under runID. A state with the same
// update count replaces the earlier one.
func (s *Store) SaveSnapshot(ctx context.Context, runID string, st ibs.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, updates, generation, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, updates) DO UPDATE SET
			generation = excluded.generation,
			state = excluded.state
	`, runID, st.Updates, st.Generation, string(data))
	if err != nil {
		return fmt.Errorf("saving snapshot of run %s: %w", runID, err)
	}
	return nil
}

// LatestSnapshot returns the most advanced state archived for runID.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (ibs.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots WHERE run_id = ? ORDER BY updates DESC LIMIT 1`,
		runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ibs.State{}, fmt.Errorf("snapshot of run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return ibs.State{}, fmt.Errorf("loading snapshot of run %s: %w", runID, err)
	}
	var st ibs.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return ibs.State{}, fmt.Errorf("decode snapshot of run %s: %w", runID, err)
	}
	return st, nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.seed, r.config, r.created_at, COUNT(s.updates)
		FROM runs r LEFT JOIN snapshots s ON s.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seed, r.config, r.created_at, COUNT(s.updates)
		FROM runs r LEFT JOIN snapshots s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		seed    int64
		created string
	)
	if err := sc.Scan(&r.ID, &seed, &r.Config, &created, &r.Snapshots); err != nil {
		return Run{}, err
	}
	r.Seed = uint64(seed)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	return r, nil
}
