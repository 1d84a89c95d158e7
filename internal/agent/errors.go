package agent

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyGoal     = errors.New("goal must not be empty")
	ErrStopped       = errors.New("progress stream abandoned by consumer")
	ErrRunTimeout    = errors.New("run timeout exceeded")
	ErrMaxIterations = errors.New("reasoning loop reached its iteration limit without an answer")
)

// Phase is a state of the orchestration state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"
)

// BackendError reports a failed capability call (completion, reasoning loop or tool).
type BackendError struct {
	Phase Phase
	Step  int    // plan step ordinal, 0 outside the executing phase
	Op    string // template id or "reason"
	Err   error
}

func (e *BackendError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s step %d: %s: %v", e.Phase, e.Step, e.Op, e.Err)
	}
	if e.Phase == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Phase, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// RunError is a fatal, run-level failure. No FinalReport is emitted when Run returns one.
type RunError struct {
	Phase Phase
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed during %s: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
