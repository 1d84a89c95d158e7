package agent

import (
	"fmt"
)

// EventKind names an Event variant on the wire and in logs.
type EventKind string

const (
	KindStatus      EventKind = "status"
	KindPlanReady   EventKind = "plan"
	KindStepResult  EventKind = "step_result"
	KindStepError   EventKind = "step_error"
	KindFinalReport EventKind = "final_report"
)

// Event is one unit of a run's progress stream. The set of variants is closed:
// StatusEvent, PlanReadyEvent, StepResultEvent, StepErrorEvent and FinalReportEvent.
type Event interface {
	Kind() EventKind
	isEvent()
}

type StatusEvent struct {
	Message string
}

type PlanReadyEvent struct {
	Plan string
}

type StepResultEvent struct {
	Ordinal int
	Text    string
}

type StepErrorEvent struct {
	Ordinal int
	Message string
}

// FinalReportEvent is always the last event of a successful run.
type FinalReportEvent struct {
	Report string
}

func (StatusEvent) Kind() EventKind      { return KindStatus }
func (PlanReadyEvent) Kind() EventKind   { return KindPlanReady }
func (StepResultEvent) Kind() EventKind  { return KindStepResult }
func (StepErrorEvent) Kind() EventKind   { return KindStepError }
func (FinalReportEvent) Kind() EventKind { return KindFinalReport }

func (StatusEvent) isEvent()      {}
func (PlanReadyEvent) isEvent()   {}
func (StepResultEvent) isEvent()  {}
func (StepErrorEvent) isEvent()   {}
func (FinalReportEvent) isEvent() {}

// Sink receives a run's events in emission order. Returning an error abandons the run.
type Sink func(Event) error

// Tee delivers every event to each non-nil sink in turn and stops at the first error.
func Tee(sinks ...Sink) Sink {
	return func(e Event) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s(e); err != nil {
				return err
			}
		}
		return nil
	}
}

// Record is the flat, serializable form of an Event.
type Record struct {
	Kind    EventKind `json:"kind"`
	Ordinal int       `json:"ordinal,omitempty"`
	Text    string    `json:"text"`
}

// Flatten converts e into its Record form.
func Flatten(e Event) Record {
	switch ev := e.(type) {
	case StatusEvent:
		return Record{Kind: KindStatus, Text: ev.Message}
	case PlanReadyEvent:
		return Record{Kind: KindPlanReady, Text: ev.Plan}
	case StepResultEvent:
		return Record{Kind: KindStepResult, Ordinal: ev.Ordinal, Text: ev.Text}
	case StepErrorEvent:
		return Record{Kind: KindStepError, Ordinal: ev.Ordinal, Text: ev.Message}
	case FinalReportEvent:
		return Record{Kind: KindFinalReport, Text: ev.Report}
	}
	panic(fmt.Sprintf("agent: unknown event type %T", e))
}

// Event rebuilds the Event a Record was flattened from.
func (r Record) Event() (Event, error) {
	switch r.Kind {
	case KindStatus:
		return StatusEvent{Message: r.Text}, nil
	case KindPlanReady:
		return PlanReadyEvent{Plan: r.Text}, nil
	case KindStepResult:
		return StepResultEvent{Ordinal: r.Ordinal, Text: r.Text}, nil
	case KindStepError:
		return StepErrorEvent{Ordinal: r.Ordinal, Message: r.Text}, nil
	case KindFinalReport:
		return FinalReportEvent{Report: r.Text}, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", r.Kind)
}
