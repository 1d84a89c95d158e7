package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rahul/seeker/internal/agent"
)

// AddSchedule stores a goal to run every interval; zero means run once.
// A new schedule is due on the next poll.
func (s *Store) AddSchedule(ctx context.Context, goal, target string, interval time.Duration) (int64, error) {
	query := `INSERT INTO schedules (goal, target, interval_seconds) VALUES (?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, goal, target, int64(interval/time.Second))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const scheduleColumns = `id, goal, target, interval_seconds, last_run`

func scanSchedules(rows *sql.Rows) ([]agent.ScheduledGoal, error) {
	defer rows.Close()
	var goals []agent.ScheduledGoal
	for rows.Next() {
		var (
			g        agent.ScheduledGoal
			interval int64
			lastRun  sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.Goal, &g.Target, &interval, &lastRun); err != nil {
			return nil, err
		}
		g.Interval = time.Duration(interval) * time.Second
		if lastRun.Valid {
			g.LastRun = time.UnixMilli(lastRun.Int64).UTC()
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *Store) ListSchedules(ctx context.Context) ([]agent.ScheduledGoal, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanSchedules(rows)
}

// DueSchedules returns the active schedules that never ran or whose interval has elapsed at now.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]agent.ScheduledGoal, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE status = 'active'
		AND (last_run IS NULL OR last_run + interval_seconds * 1000 <= ?)
		ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	return scanSchedules(rows)
}

func (s *Store) MarkScheduleRun(ctx context.Context, id int64, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE schedules SET last_run = ? WHERE id = ?`, at.UnixMilli(), id)
	return err
}

func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return nil
}
