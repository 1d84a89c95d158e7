package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/tools"
)

// ErrNotFound is returned when a run or schedule does not exist.
var ErrNotFound = errors.New("not found")

// Store archives runs and holds research schedules in SQLite.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

var _ agent.Archive = (*Store)(nil)
var _ agent.ScheduleStore = (*Store)(nil)
var _ tools.ReportIndex = (*Store)(nil)

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized and lets ":memory:" databases work.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			goal TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			report TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS run_events (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			ordinal INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			goal TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			interval_seconds INTEGER NOT NULL DEFAULT 0,
			last_run INTEGER,
			status TEXT NOT NULL DEFAULT 'active'
		);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{DB: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) CreateRun(ctx context.Context, runID, goal string) error {
	query := `INSERT INTO runs (id, goal, status, started_at) VALUES (?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, runID, goal, StatusRunning, s.now().UnixMilli())
	return err
}

func (s *Store) AppendEvent(ctx context.Context, runID string, seq int, rec agent.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	query := `INSERT INTO run_events (run_id, seq, kind, ordinal, payload) VALUES (?, ?, ?, ?, ?)`
	_, err = s.DB.ExecContext(ctx, query, runID, seq, string(rec.Kind), rec.Ordinal, string(payload))
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID, report string, runErr error) error {
	status, errText := StatusDone, ""
	if runErr != nil {
		status, errText = StatusFailed, runErr.Error()
	}
	query := `UPDATE runs SET status = ?, report = ?, error = ?, finished_at = ? WHERE id = ?`
	res, err := s.DB.ExecContext(ctx, query, status, report, errText, s.now().UnixMilli(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, goal, status, report, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Goal, &r.Status, &r.Report, &r.Error, &started, &finished); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun returns an archived run with its events in emission order.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT payload FROM run_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return Run{}, err
		}
		var rec agent.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return Run{}, fmt.Errorf("run %s: corrupt event: %w", runID, err)
		}
		r.Events = append(r.Events, rec)
	}
	return r, rows.Err()
}

// ListRuns returns the most recent runs first, without their events.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
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

// SearchDocuments finds finished reports whose goal or text contains any of
// the query's words (three letters or longer), newest first.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]tools.Document, error) {
	var (
		conds []string
		args  []any
	)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) < 3 {
			continue
		}
		like := "%" + escapeLike(term) + "%"
		conds = append(conds, `lower(goal) LIKE ? ESCAPE '\' OR lower(report) LIKE ? ESCAPE '\'`)
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	args = append(args, StatusDone, limit)

	q := `SELECT id, goal, report FROM runs WHERE (` + strings.Join(conds, " OR ") + `) AND status = ? ORDER BY started_at DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []tools.Document
	for rows.Next() {
		var d tools.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
