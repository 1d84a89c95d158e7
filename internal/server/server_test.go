package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/observability"
	"github.com/rahul/seeker/internal/store"
)

type stubRunner struct {
	events  []agent.Event
	err     error
	sinkErr error
}

func (s *stubRunner) Run(ctx context.Context, goal string, sink agent.Sink) (string, string, error) {
	for _, e := range s.events {
		if err := sink(e); err != nil {
			s.sinkErr = err
			return "run-1", "", err
		}
	}
	return "run-1", "report", s.err
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestCreateRunStreamsEvents(t *testing.T) {
	runner := &stubRunner{events: []agent.Event{
		agent.StatusEvent{Message: "generating plan"},
		agent.StepErrorEvent{Ordinal: 2, Message: "boom"},
		agent.FinalReportEvent{Report: "report"},
	}}
	s := New(runner, nil, prometheus.NewRegistry())

	rec := post(t, s, `{"goal":"why is the sky blue"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	want := "event: status\ndata: {\"kind\":\"status\",\"text\":\"generating plan\"}\n\n" +
		"event: step_error\ndata: {\"kind\":\"step_error\",\"ordinal\":2,\"text\":\"boom\"}\n\n" +
		"event: final_report\ndata: {\"kind\":\"final_report\",\"text\":\"report\"}\n\n" +
		"event: done\ndata: {\"run_id\":\"run-1\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body =\n%s\nwant\n%s", got, want)
	}
}

func TestCreateRunErrorFrame(t *testing.T) {
	runner := &stubRunner{err: errors.New("run failed during planning: down")}
	s := New(runner, nil, prometheus.NewRegistry())

	body := post(t, s, `{"goal":"x"}`).Body.String()
	want := "event: error\ndata: {\"run_id\":\"run-1\",\"error\":\"run failed during planning: down\"}\n\n"
	if body != want {
		t.Errorf("body = %q", body)
	}
}

func TestCreateRunRejectsEmptyGoal(t *testing.T) {
	s := New(&stubRunner{}, nil, prometheus.NewRegistry())
	for _, body := range []string{`{"goal":"  "}`, `{}`, `not json`} {
		if rec := post(t, s, body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestCreateRunClientGone(t *testing.T) {
	runner := &stubRunner{events: []agent.Event{agent.StatusEvent{Message: "generating plan"}}}
	s := New(runner, nil, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"goal":"x"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "event: done") || strings.Contains(rec.Body.String(), "event: error") {
		t.Errorf("terminal frame written to a gone client: %q", rec.Body.String())
	}
}

func TestRunArchiveEndpoints(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	if err := st.CreateRun(ctx, "r1", "goal one"); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendEvent(ctx, "r1", 1, agent.Record{Kind: agent.KindFinalReport, Text: "rep"}); err != nil {
		t.Fatal(err)
	}
	if err := st.FinishRun(ctx, "r1", "rep", nil); err != nil {
		t.Fatal(err)
	}

	s := New(&stubRunner{}, st, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	var runs []store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" || runs[0].Status != store.StatusDone {
		t.Errorf("runs = %+v", runs)
	}

	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil))
	var run store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Report != "rep" || len(run.Events) != 1 {
		t.Errorf("run = %+v", run)
	}

	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg).RunFinished(nil)
	s := New(&stubRunner{}, nil, reg)

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `seeker_runs_total{outcome="ok"} 1`) {
		t.Errorf("metrics missing run counter:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("runs without archive = %d", rec.Code)
	}
}
