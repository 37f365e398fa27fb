// Package store keeps a sqlite journal of handled requests and their steps.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/rahul/deskpilot/internal/plan"
)

// Run is one journaled request.
type Run struct {
	ID         string     `json:"id"`
	Request    string     `json:"request"`
	Plan       plan.Plan  `json:"plan"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StepRecord is one journaled progress event.
type StepRecord struct {
	RunID     string    `json:"run_id"`
	Index     int       `json:"step_index"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RunStore struct {
	DB *sql.DB
}

func NewRunStore(dbPath string) (*RunStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one connection keeps an in-memory database alive across calls
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			request TEXT NOT NULL,
			plan_json TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			message TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			step_index INTEGER NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, id);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &RunStore{DB: db}, nil
}

func (s *RunStore) Close() error {
	return s.DB.Close()
}

func (s *RunStore) StartRun(ctx context.Context, request string, p plan.Plan) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode plan: %w", err)
	}
	id := uuid.NewString()
	query := `INSERT INTO runs (id, request, plan_json, started_at) VALUES (?, ?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, id, request, string(data), time.Now().UnixNano()); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RunStore) RecordStep(ctx context.Context, runID string, step plan.Step) error {
	query := `INSERT INTO steps (run_id, step_index, action, status, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, runID, step.Index, string(step.Action), string(step.Status), step.Message, time.Now().UnixNano())
	return err
}

func (s *RunStore) FinishRun(ctx context.Context, runID, status, message string) error {
	query := `UPDATE runs SET status = ?, message = ?, finished_at = ? WHERE id = ?`
	res, err := s.DB.ExecContext(ctx, query, status, message, time.Now().UnixNano(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Recent returns the newest runs first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, request, plan_json, status, message, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			planJSON string
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Request, &planJSON, &r.Status, &r.Message, &started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(planJSON), &r.Plan); err != nil {
			return nil, fmt.Errorf("run %s has a corrupt plan: %w", r.ID, err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the events of a run in the order they were recorded.
func (s *RunStore) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	query := `SELECT run_id, step_index, action, status, message, created_at FROM steps WHERE run_id = ? ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var (
			st      StepRecord
			created int64
		)
		if err := rows.Scan(&st.RunID, &st.Index, &st.Action, &st.Status, &st.Message, &created); err != nil {
			return nil, err
		}
		st.CreatedAt = time.Unix(0, created)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}
