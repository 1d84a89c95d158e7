package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/rahul/seeker/internal/observability"
)

// Template identifiers understood by a Completer.
const (
	TemplatePlanning  = "planning"
	TemplateSynthesis = "synthesis"
	TemplateWorker    = "worker"
)

// Completer renders a named prompt template with vars and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, templateID string, vars map[string]any) (string, error)
}

// Orchestrator runs the plan -> execute -> synthesize pipeline for a goal.
// It keeps no per-run state, so one Orchestrator may serve concurrent runs
// when its Completer and Executor allow it.
type Orchestrator struct {
	provider   Completer
	executor   Executor
	runTimeout time.Duration
	catalog    string
	logger     *observability.Logger
	metrics    *observability.Metrics
}

type Option func(*Orchestrator)

// WithRunTimeout bounds a whole run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.runTimeout = d }
}

// WithToolCatalog sets the tool listing substituted into the planning template.
func WithToolCatalog(catalog string) Option {
	return func(o *Orchestrator) { o.catalog = catalog }
}

func WithLogger(l *observability.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(provider Completer, executor Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{provider: provider, executor: executor}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one goal end to end, pushing progress events into sink.
//
// Step failures are reported as StepErrorEvent and never stop the run. A failed
// planning or synthesis call ends the run with a *RunError and no FinalReportEvent.
// If sink returns an error or ctx is cancelled, Run stops before the next event
// and returns that error.
func (o *Orchestrator) Run(ctx context.Context, goal string, sink Sink) (string, error) {
	if strings.TrimSpace(goal) == "" {
		return "", ErrEmptyGoal
	}
	if sink == nil {
		sink = func(Event) error { return nil }
	}
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, o.runTimeout, ErrRunTimeout)
		defer cancel()
	}

	r := &run{Orchestrator: o, ctx: ctx, goal: goal, sink: sink, id: observability.RunID(ctx)}
	report, err := r.execute()
	r.enter("")
	o.metrics.RunFinished(err)
	if err != nil {
		o.logger.LogRun(r.id, goal, "failed", err)
		return "", err
	}
	o.logger.LogRun(r.id, goal, "done", nil)
	return report, nil
}

// Events is the pull form of Run: ranging over it drives the run, and breaking
// out of the loop abandons it. A fatal error is yielded once as the final pair.
func (o *Orchestrator) Events(ctx context.Context, goal string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		_, err := o.Run(ctx, goal, func(e Event) error {
			if !yield(e, nil) {
				return ErrStopped
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrStopped) {
			yield(nil, err)
		}
	}
}

// run is the state of a single Run call.
type run struct {
	*Orchestrator
	ctx   context.Context
	goal  string
	sink  Sink
	id    string
	phase Phase
	log   ExecutionLog
}

func (r *run) execute() (string, error) {
	r.enter(PhasePlanning)
	if err := r.interrupted(); err != nil {
		return "", err
	}
	if err := r.emit(StatusEvent{Message: "generating plan"}); err != nil {
		return "", err
	}
	plan, err := r.complete(PhasePlanning, TemplatePlanning, map[string]any{
		"goal":  r.goal,
		"tools": r.catalog,
	})
	if err != nil {
		return "", err
	}
	if err := r.emit(PlanReadyEvent{Plan: plan}); err != nil {
		return "", err
	}

	r.enter(PhaseExecuting)
	steps := ParsePlan(plan)
	r.logger.LogPlan(r.id, plan, len(steps))
	if len(steps) == 0 {
		log.Printf("[Orchestrator] plan contained no executable steps, synthesizing directly")
	}
	for _, step := range steps {
		if err := r.interrupted(); err != nil {
			return "", err
		}
		if err := r.emit(StatusEvent{Message: fmt.Sprintf("executing step %d: %s", step.Ordinal, step.Instruction)}); err != nil {
			return "", err
		}
		if err := r.step(step); err != nil {
			return "", err
		}
	}
	if err := r.interrupted(); err != nil {
		return "", err
	}

	r.enter(PhaseSynthesizing)
	if err := r.emit(StatusEvent{Message: "synthesizing report"}); err != nil {
		return "", err
	}
	report, err := r.complete(PhaseSynthesizing, TemplateSynthesis, map[string]any{
		"goal":    r.goal,
		"context": r.log.Context(),
	})
	if err != nil {
		return "", err
	}

	r.enter(PhaseDone)
	if err := r.emit(FinalReportEvent{Report: report}); err != nil {
		return "", err
	}
	return report, nil
}

func (r *run) step(step PlanStep) error {
	log.Printf("[Orchestrator] Step %d: %s", step.Ordinal, step.Instruction)
	out := r.executor.Execute(r.ctx, step)
	out.Step = step
	r.log = append(r.log, out)
	r.metrics.StepFinished(out.Err)

	if out.Failed() {
		log.Printf("[Orchestrator] Step %d failed: %v", step.Ordinal, out.Err)
		r.logger.LogStep(r.id, step.Ordinal, "failed", out.Message())
		return r.emit(StepErrorEvent{Ordinal: step.Ordinal, Message: out.Message()})
	}
	r.logger.LogStep(r.id, step.Ordinal, "completed", out.Text)
	return r.emit(StepResultEvent{Ordinal: step.Ordinal, Text: out.Text})
}

// complete performs a fatal-on-failure capability call.
func (r *run) complete(phase Phase, templateID string, vars map[string]any) (string, error) {
	if err := r.interrupted(); err != nil {
		return "", err
	}
	text, err := r.provider.Complete(r.ctx, templateID, vars)
	if err != nil {
		if timedOut(r.ctx) {
			err = fmt.Errorf("%w: %w", ErrRunTimeout, err)
		}
		return "", &RunError{Phase: phase, Err: err}
	}
	return text, nil
}

// interrupted reports why the run cannot make further progress, if it cannot.
func (r *run) interrupted() error {
	if r.ctx.Err() == nil {
		return nil
	}
	if timedOut(r.ctx) {
		return &RunError{Phase: r.phase, Err: ErrRunTimeout}
	}
	return r.ctx.Err()
}

func (r *run) emit(e Event) error {
	if err := r.sink(e); err != nil {
		return fmt.Errorf("deliver %s event: %w", e.Kind(), err)
	}
	return nil
}

func (r *run) enter(p Phase) {
	r.metrics.EnterPhase(string(r.phase), string(p))
	r.phase = p
}

func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrRunTimeout)
}
