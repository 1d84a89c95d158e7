package agent

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	events := []Event{
		StatusEvent{Message: "generating plan"},
		PlanReadyEvent{Plan: "1. a"},
		StepResultEvent{Ordinal: 1, Text: "found"},
		StepErrorEvent{Ordinal: 2, Message: "boom"},
		FinalReportEvent{Report: "report"},
	}
	for _, e := range events {
		data, err := json.Marshal(Flatten(e))
		if err != nil {
			t.Fatal(err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatal(err)
		}
		if rec.Kind != e.Kind() {
			t.Errorf("kind = %q, want %q", rec.Kind, e.Kind())
		}
		back, err := rec.Event()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(back, e) {
			t.Errorf("round trip = %#v, want %#v", back, e)
		}
	}

	if _, err := (Record{Kind: "bogus"}).Event(); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestTee(t *testing.T) {
	var a, b []Event
	stop := errors.New("stop")
	sink := Tee(
		func(e Event) error { a = append(a, e); return nil },
		nil,
		func(e Event) error {
			b = append(b, e)
			if e.Kind() == KindFinalReport {
				return stop
			}
			return nil
		},
	)

	if err := sink(StatusEvent{Message: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := sink(FinalReportEvent{Report: "r"}); !errors.Is(err, stop) {
		t.Errorf("error = %v, want %v", err, stop)
	}
	if len(a) != 2 || len(b) != 2 {
		t.Errorf("delivered %d and %d events", len(a), len(b))
	}
}
