package store

import (
	"time"

	"github.com/rahul/seeker/internal/agent"
)

// RunStatus is the lifecycle state of an archived run.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// Run is an archived orchestration run.
type Run struct {
	ID         string         `json:"id"`
	Goal       string         `json:"goal"`
	Status     RunStatus      `json:"status"`
	Report     string         `json:"report,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Events     []agent.Record `json:"events,omitempty"`
}
