package agent

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/rahul/seeker/internal/observability"
)

// Archive persists runs and their progress events.
type Archive interface {
	CreateRun(ctx context.Context, runID, goal string) error
	AppendEvent(ctx context.Context, runID string, seq int, rec Record) error
	FinishRun(ctx context.Context, runID, report string, runErr error) error
}

// Runner assigns each run an ID, tags the context with it, and records the
// run in Archive when one is set. Archive failures are logged, never fatal.
type Runner struct {
	Orchestrator *Orchestrator
	Archive      Archive
}

func NewRunner(o *Orchestrator, archive Archive) *Runner {
	return &Runner{Orchestrator: o, Archive: archive}
}

func (r *Runner) Run(ctx context.Context, goal string, sink Sink) (runID, report string, err error) {
	if strings.TrimSpace(goal) == "" {
		return "", "", ErrEmptyGoal
	}
	runID = uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	if r.Archive == nil {
		report, err = r.Orchestrator.Run(ctx, goal, sink)
		return runID, report, err
	}

	// Archive writes outlive a cancelled run.
	archiveCtx := context.WithoutCancel(ctx)
	if cerr := r.Archive.CreateRun(archiveCtx, runID, goal); cerr != nil {
		log.Printf("[Runner] failed to archive run %s: %v", runID, cerr)
		report, err = r.Orchestrator.Run(ctx, goal, sink)
		return runID, report, err
	}

	seq := 0
	record := func(e Event) error {
		seq++
		if aerr := r.Archive.AppendEvent(archiveCtx, runID, seq, Flatten(e)); aerr != nil {
			log.Printf("[Runner] failed to archive event %d of run %s: %v", seq, runID, aerr)
		}
		return nil
	}

	report, err = r.Orchestrator.Run(ctx, goal, Tee(record, sink))
	if ferr := r.Archive.FinishRun(archiveCtx, runID, report, err); ferr != nil {
		log.Printf("[Runner] failed to finish run %s: %v", runID, ferr)
	}
	return runID, report, err
}
