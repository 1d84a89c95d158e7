package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/seeker/internal/agent"
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeMessenger) Start() error { return nil }
func (f *fakeMessenger) Stop() error  { return nil }
func (f *fakeMessenger) Send(chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID+"|"+text)
	return nil
}

func TestRelayForwardsReadableEvents(t *testing.T) {
	m := &fakeMessenger{}
	sink := NewRelay(m, "42", 0).Sink()

	events := []agent.Event{
		agent.StatusEvent{Message: "generating plan"},
		agent.PlanReadyEvent{Plan: "1. a\n2. b"},
		agent.StepResultEvent{Ordinal: 1, Text: "found"},
		agent.StepErrorEvent{Ordinal: 2, Message: "timeout"},
		agent.FinalReportEvent{Report: "the report"},
	}
	for _, e := range events {
		if err := sink(e); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{
		"42|📋 Research plan\n\n1. a\n2. b",
		"42|⚠️ Step 2 failed: timeout",
		"42|the report",
	}
	if strings.Join(m.sent, "\n--\n") != strings.Join(want, "\n--\n") {
		t.Errorf("sent = %q", m.sent)
	}
}

func TestRelayFailAndSendError(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRelay(m, "7", 0)
	if err := r.Fail(errors.New("run failed during planning: down")); err != nil {
		t.Fatal(err)
	}
	if m.sent[0] != "7|❌ Research failed: run failed during planning: down" {
		t.Errorf("sent = %q", m.sent)
	}

	m.err = errors.New("chat gone")
	sink := r.Sink()
	if err := sink(agent.PlanReadyEvent{Plan: "1. a"}); err != nil {
		t.Errorf("undelivered plan stopped the run: %v", err)
	}
	if err := sink(agent.StepErrorEvent{Ordinal: 1, Message: "x"}); err != nil {
		t.Errorf("undelivered step error stopped the run: %v", err)
	}
	if err := sink(agent.FinalReportEvent{Report: "x"}); !errors.Is(err, m.err) {
		t.Errorf("error = %v", err)
	}
}

func TestSplit(t *testing.T) {
	if got := split("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("split(short) = %q", got)
	}

	text := "line one\nline two\nline three"
	got := split(text, 12)
	for _, part := range got {
		if len([]rune(part)) > 12 {
			t.Errorf("part %q longer than 12", part)
		}
	}
	if strings.Join(got, "\n") != text {
		t.Errorf("split lost text: %q", got)
	}

	runes := split(strings.Repeat("é", 25), 10)
	if len(runes) != 3 || runes[2] != strings.Repeat("é", 5) {
		t.Errorf("rune split = %q", runes)
	}
}

func TestRouter(t *testing.T) {
	tg := &fakeMessenger{}
	r := NewRouter()
	r.Register("telegram", tg, TelegramMaxLen)

	if err := r.Send("telegram:99", "hi"); err != nil {
		t.Fatal(err)
	}
	if tg.sent[0] != "99|hi" {
		t.Errorf("sent = %q", tg.sent)
	}
	if err := r.Send("discord:1", "hi"); err == nil {
		t.Error("expected error for unregistered gateway")
	}
	for _, bad := range []string{"", "telegram", ":1", "telegram:"} {
		if _, _, err := ParseTarget(bad); err == nil {
			t.Errorf("ParseTarget(%q) accepted", bad)
		}
	}
}

// limitMessenger rejects messages over max runes, as the chat platforms do.
type limitMessenger struct {
	fakeMessenger
	max int
}

func (l *limitMessenger) Send(chatID, text string) error {
	if n := utf8.RuneCountInString(text); n > l.max {
		return fmt.Errorf("message too long: %d", n)
	}
	return l.fakeMessenger.Send(chatID, text)
}

func TestRouterSplitsToGatewayLimit(t *testing.T) {
	dc := &limitMessenger{max: DiscordMaxLen}
	r := NewRouter()
	r.Register("discord", dc, DiscordMaxLen)

	report := strings.Repeat("Findings about the topic.\n", 150)
	if err := r.Send("discord:42", report); err != nil {
		t.Fatal(err)
	}
	if len(dc.sent) < 2 {
		t.Fatalf("sent %d messages, want the report split", len(dc.sent))
	}
	parts := make([]string, len(dc.sent))
	for i, msg := range dc.sent {
		parts[i] = strings.TrimPrefix(msg, "42|")
	}
	if strings.Join(parts, "\n") != report {
		t.Error("split report does not reassemble to the original")
	}
}

type dueOnce struct {
	mu   sync.Mutex
	goal *agent.ScheduledGoal
}

func (d *dueOnce) DueSchedules(ctx context.Context, now time.Time) ([]agent.ScheduledGoal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.goal == nil {
		return nil, nil
	}
	g := *d.goal
	d.goal = nil
	return []agent.ScheduledGoal{g}, nil
}

func (d *dueOnce) MarkScheduleRun(ctx context.Context, id int64, at time.Time) error { return nil }
func (d *dueOnce) DeleteSchedule(ctx context.Context, id int64) error             { return nil }

type reportRunner struct{ report string }

func (r reportRunner) Run(ctx context.Context, goal string, sink agent.Sink) (string, string, error) {
	return "run-9", r.report, nil
}

func TestScheduledReportIsSplitForGateway(t *testing.T) {
	dc := &limitMessenger{max: DiscordMaxLen}
	router := NewRouter()
	router.Register("discord", dc, DiscordMaxLen)

	report := strings.Repeat("é", 4000)
	due := &dueOnce{goal: &agent.ScheduledGoal{ID: 1, Goal: "weekly digest", Target: "discord:42", Interval: time.Hour}}
	s := agent.NewScheduler(reportRunner{report: report}, due, router)
	s.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		dc.mu.Lock()
		n := len(dc.sent)
		dc.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("scheduled report was never delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	dc.mu.Lock()
	defer dc.mu.Unlock()
	if len(dc.sent) < 3 {
		t.Fatalf("sent %d messages, want the report split in at least 3", len(dc.sent))
	}
	total := 0
	for _, msg := range dc.sent {
		total += strings.Count(msg, "é")
	}
	if total != 4000 {
		t.Errorf("delivered %d of 4000 report runes", total)
	}
}

func TestTelegramSender(t *testing.T) {
	tests := []struct {
		msg  *tgbotapi.Message
		want string
	}{
		{&tgbotapi.Message{From: &tgbotapi.User{UserName: "ada"}}, "ada"},
		{&tgbotapi.Message{SenderChat: &tgbotapi.Chat{Title: "news"}}, "news"},
		{&tgbotapi.Message{}, "unknown"},
	}
	for _, tt := range tests {
		if got := sender(tt.msg); got != tt.want {
			t.Errorf("sender() = %q, want %q", got, tt.want)
		}
	}
}

type stubRunner struct {
	events []agent.Event
	err    error
	goals  []string
}

func (s *stubRunner) Run(ctx context.Context, goal string, sink agent.Sink) (string, string, error) {
	s.goals = append(s.goals, goal)
	for _, e := range s.events {
		if err := sink(e); err != nil {
			return "run-1", "", err
		}
	}
	return "run-1", "", s.err
}

type scheduleCall struct {
	goal, target string
	interval     time.Duration
}

type stubSchedules struct{ calls []scheduleCall }

func (s *stubSchedules) AddSchedule(ctx context.Context, goal, target string, interval time.Duration) (int64, error) {
	s.calls = append(s.calls, scheduleCall{goal, target, interval})
	return int64(len(s.calls)), nil
}

func TestHandlerRunsGoal(t *testing.T) {
	runner := &stubRunner{
		events: []agent.Event{agent.PlanReadyEvent{Plan: "1. a"}, agent.FinalReportEvent{Report: "done"}},
	}
	m := &fakeMessenger{}
	h := &Handler{Runner: runner}

	h.Handle(context.Background(), "telegram", m, "5", "  what is new in Go?  ", 0)
	if len(runner.goals) != 1 || runner.goals[0] != "what is new in Go?" {
		t.Errorf("goals = %q", runner.goals)
	}
	if len(m.sent) != 2 || m.sent[1] != "5|done" {
		t.Errorf("sent = %q", m.sent)
	}
}

func TestHandlerReportsFatalError(t *testing.T) {
	runner := &stubRunner{
		events: []agent.Event{agent.StatusEvent{Message: "generating plan"}},
		err:    errors.New("run failed during planning: down"),
	}
	m := &fakeMessenger{}
	(&Handler{Runner: runner}).Handle(context.Background(), "discord", m, "c1", "goal", 0)

	if len(m.sent) != 1 || !strings.HasPrefix(m.sent[0], "c1|❌") {
		t.Errorf("sent = %q", m.sent)
	}
}

func TestHandlerCommands(t *testing.T) {
	runner := &stubRunner{}
	schedules := &stubSchedules{}
	m := &fakeMessenger{}
	h := &Handler{Runner: runner, Schedules: schedules}

	h.Handle(context.Background(), "telegram", m, "5", "/help", 0)
	h.Handle(context.Background(), "telegram", m, "5", "/schedule 24h latest Go news", 0)
	h.Handle(context.Background(), "telegram", m, "5", "/schedule soon", 0)
	h.Handle(context.Background(), "telegram", m, "5", "   ", 0)

	if len(runner.goals) != 0 {
		t.Errorf("commands started runs: %q", runner.goals)
	}
	if len(schedules.calls) != 1 {
		t.Fatalf("schedules = %+v", schedules.calls)
	}
	if c := schedules.calls[0]; c.goal != "latest Go news" || c.target != "telegram:5" || c.interval != 24*time.Hour {
		t.Errorf("schedule = %+v", c)
	}
	if len(m.sent) != 3 {
		t.Fatalf("sent = %q", m.sent)
	}
	if !strings.Contains(m.sent[1], "Scheduled #1") || !strings.Contains(m.sent[2], "Usage") {
		t.Errorf("replies = %q", m.sent)
	}
}

func TestConsoleRendersEvents(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	c := NewConsole(&buf)
	sink := c.Sink()

	for _, e := range []agent.Event{
		agent.StatusEvent{Message: "generating plan"},
		agent.PlanReadyEvent{Plan: "1. a"},
		agent.StepResultEvent{Ordinal: 1, Text: "found a"},
		agent.StepErrorEvent{Ordinal: 2, Message: "boom"},
		agent.FinalReportEvent{Report: "final words"},
	} {
		if err := sink(e); err != nil {
			t.Fatal(err)
		}
	}
	c.Fail(errors.New("late failure"))

	out := buf.String()
	for _, want := range []string{"· generating plan", "1. a", "✓ step 1", "found a", "step 2 failed: boom", "final words", "❌ Research failed: late failure"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := JSONLines(&buf)
	if err := sink(agent.StepErrorEvent{Ordinal: 3, Message: "x"}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != `{"kind":"step_error","ordinal":3,"text":"x"}`+"\n" {
		t.Errorf("line = %q", got)
	}
}
