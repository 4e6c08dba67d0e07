// Package runlog keeps a SQLite ledger of played episodes and training runs.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fchimpan/paddle-pilot/internal/scene"
)

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id            TEXT PRIMARY KEY,
	ended_at      TEXT NOT NULL,
	status        TEXT NOT NULL,
	frames        INTEGER NOT NULL,
	observations  INTEGER NOT NULL,
	file          TEXT
);

CREATE TABLE IF NOT EXISTS train_runs (
	id            TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	sources       TEXT NOT NULL,
	files         INTEGER NOT NULL,
	row_count     INTEGER NOT NULL,
	train_rows    INTEGER NOT NULL,
	test_rows     INTEGER NOT NULL,
	accuracy      REAL,
	model_path    TEXT,
	saved         INTEGER NOT NULL,
	reason        TEXT
);
`

// timeLayout is fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Episode is one finished round. File is empty when nothing was recorded.
type Episode struct {
	ID           string
	EndedAt      time.Time
	Status       scene.Status
	Frames       int
	Observations int
	File         string
}

// TrainRun is one invocation of the training pipeline. Accuracy is nil
// when there was no held-out row; Reason says why a run stopped early.
type TrainRun struct {
	ID        string
	StartedAt time.Time
	Sources   []string
	Files     int
	Rows      int
	TrainRows int
	TestRows  int
	Accuracy  *float64
	ModelPath string
	Saved     bool
	Reason    string
}

// Store is the ledger database.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the ledger at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEpisode stores e, filling in the id and end time when unset.
func (s *Store) RecordEpisode(e Episode) (Episode, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.EndedAt.IsZero() {
		e.EndedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO episodes (id, ended_at, status, frames, observations, file)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.EndedAt.UTC().Format(timeLayout), string(e.Status), e.Frames, e.Observations, e.File,
	)
	if err != nil {
		return Episode{}, fmt.Errorf("insert episode: %w", err)
	}
	return e, nil
}

// RecordTrainRun stores r, filling in the id and start time when unset.
func (s *Store) RecordTrainRun(r TrainRun) (TrainRun, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return TrainRun{}, fmt.Errorf("marshal sources: %w", err)
	}
	var acc sql.NullFloat64
	if r.Accuracy != nil {
		acc = sql.NullFloat64{Float64: *r.Accuracy, Valid: true}
	}
	_, err = s.db.Exec(
		`INSERT INTO train_runs (id, started_at, sources, files, row_count, train_rows, test_rows, accuracy, model_path, saved, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(timeLayout), string(sources),
		r.Files, r.Rows, r.TrainRows, r.TestRows, acc, r.ModelPath, r.Saved, r.Reason,
	)
	if err != nil {
		return TrainRun{}, fmt.Errorf("insert train run: %w", err)
	}
	return r, nil
}

// RecentEpisodes returns up to limit episodes, newest first.
func (s *Store) RecentEpisodes(limit int) ([]Episode, error) {
	rows, err := s.db.Query(
		`SELECT id, ended_at, status, frames, observations, COALESCE(file, '')
		 FROM episodes ORDER BY ended_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		var (
			e       Episode
			endedAt string
			status  string
		)
		if err := rows.Scan(&e.ID, &endedAt, &status, &e.Frames, &e.Observations, &e.File); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if e.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		e.Status = scene.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentTrainRuns returns up to limit training runs, newest first.
func (s *Store) RecentTrainRuns(limit int) ([]TrainRun, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, sources, files, row_count, train_rows, test_rows, accuracy,
		        COALESCE(model_path, ''), saved, COALESCE(reason, '')
		 FROM train_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query train runs: %w", err)
	}
	defer rows.Close()

	var out []TrainRun
	for rows.Next() {
		var (
			r         TrainRun
			startedAt string
			sources   string
			acc       sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &startedAt, &sources, &r.Files, &r.Rows, &r.TrainRows, &r.TestRows,
			&acc, &r.ModelPath, &r.Saved, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan train run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		if acc.Valid {
			v := acc.Float64
			r.Accuracy = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Totals counts stored episodes by status.
func (s *Store) Totals() (map[scene.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM episodes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	out := make(map[scene.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		out[scene.Status(status)] = n
	}
	return out, rows.Err()
}
