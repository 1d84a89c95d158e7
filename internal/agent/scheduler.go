package agent

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ScheduledGoal is a research goal that runs on a timer.
type ScheduledGoal struct {
	ID       int64
	Goal     string
	Target   string // messenger address that receives the report
	Interval time.Duration
	LastRun  time.Time
}

// OneShot reports whether the goal runs once and is then removed.
func (g ScheduledGoal) OneShot() bool { return g.Interval == 0 }

type ScheduleStore interface {
	DueSchedules(ctx context.Context, now time.Time) ([]ScheduledGoal, error)
	MarkScheduleRun(ctx context.Context, id int64, at time.Time) error
	DeleteSchedule(ctx context.Context, id int64) error
}

// GoalRunner runs a goal to completion.
type GoalRunner interface {
	Run(ctx context.Context, goal string, sink Sink) (runID, report string, err error)
}

type Messenger interface {
	Send(target string, text string) error
}

type Scheduler struct {
	Runner   GoalRunner
	Store    ScheduleStore
	Gateway  Messenger
	Interval time.Duration

	now func() time.Time
}

func NewScheduler(runner GoalRunner, store ScheduleStore, gateway Messenger) *Scheduler {
	return &Scheduler{
		Runner:   runner,
		Store:    store,
		Gateway:  gateway,
		Interval: 30 * time.Second,
		now:      time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Goal scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	now := s.now()
	goals, err := s.Store.DueSchedules(ctx, now)
	if err != nil {
		log.Printf("Error polling schedules: %v", err)
		return
	}

	for _, g := range goals {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Executing scheduled goal %d for %s: %s", g.ID, g.Target, g.Goal)

		runID, report, err := s.Runner.Run(ctx, g.Goal, nil)

		if merr := s.Store.MarkScheduleRun(ctx, g.ID, now); merr != nil {
			log.Printf("Error updating last run for schedule %d: %v", g.ID, merr)
		}
		if g.OneShot() {
			if derr := s.Store.DeleteSchedule(ctx, g.ID); derr != nil {
				log.Printf("Error deleting one-shot schedule %d: %v", g.ID, derr)
			}
		}

		if s.Gateway == nil || g.Target == "" {
			continue
		}
		var msg string
		if err != nil {
			log.Printf("Error executing scheduled goal %d: %v", g.ID, err)
			msg = fmt.Sprintf("❌ Scheduled research failed (run %s)\n\n%s\n\n%v", runID, g.Goal, err)
		} else {
			msg = fmt.Sprintf("⏰ Scheduled research report (run %s)\n\n%s", runID, report)
		}
		if serr := s.Gateway.Send(g.Target, msg); serr != nil {
			log.Printf("Error delivering schedule %d to %s: %v", g.ID, g.Target, serr)
		}
	}
}
