package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reasoner answers a single instruction, invoking tools as it sees fit.
type Reasoner interface {
	Reason(ctx context.Context, instruction string) (string, error)
}

// Executor runs one plan step to exactly one outcome.
type Executor interface {
	Execute(ctx context.Context, step PlanStep) StepOutcome
}

// StepOutcome is the result of executing a PlanStep: Text on success, Err otherwise.
type StepOutcome struct {
	Step PlanStep
	Text string
	Err  error
}

func (o StepOutcome) Failed() bool { return o.Err != nil }

// Message is the failure text without the phase/step prefix.
func (o StepOutcome) Message() string {
	if o.Err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(o.Err, &be) && be.Err != nil {
		return be.Err.Error()
	}
	return o.Err.Error()
}

// LogEntry is how the outcome appears in the synthesis context.
func (o StepOutcome) LogEntry() string {
	if o.Err != nil {
		return fmt.Sprintf("Error on step %d: %s", o.Step.Ordinal, o.Message())
	}
	return o.Text
}

// ExecutionLog holds the outcomes of one run in ordinal order.
type ExecutionLog []StepOutcome

// Context joins every entry, failures included, with a blank line.
func (l ExecutionLog) Context() string {
	entries := make([]string, 0, len(l))
	for _, o := range l {
		entries = append(entries, o.LogEntry())
	}
	return strings.Join(entries, "\n\n")
}

// StepExecutor hands step instructions to a Reasoner.
// Failures never escape Execute; they become the outcome's Err.
type StepExecutor struct {
	Reasoner Reasoner
	// Timeout bounds a single step when positive.
	Timeout time.Duration
}

func NewStepExecutor(reasoner Reasoner, timeout time.Duration) *StepExecutor {
	return &StepExecutor{Reasoner: reasoner, Timeout: timeout}
}

func (e *StepExecutor) Execute(ctx context.Context, step PlanStep) (out StepOutcome) {
	out.Step = step

	var cancel context.CancelFunc
	if e.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	// Anything the reasoning loop scoped to ctx is released before the outcome is returned.
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out.Text = ""
			out.Err = e.fail(step, fmt.Errorf("reasoning loop panicked: %v", r))
		}
	}()

	if e.Reasoner == nil {
		out.Err = e.fail(step, errors.New("no reasoner configured"))
		return out
	}

	text, err := e.Reasoner.Reason(ctx, step.Instruction)
	if err != nil {
		// Name the run deadline rather than a bare "context deadline exceeded".
		if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		out.Err = e.fail(step, err)
		return out
	}
	out.Text = text
	return out
}

func (e *StepExecutor) fail(step PlanStep, err error) *BackendError {
	return &BackendError{Phase: PhaseExecuting, Step: step.Ordinal, Op: "reason", Err: err}
}
