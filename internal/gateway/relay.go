package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rahul/seeker/internal/agent"
)

// Relay forwards the parts of a run worth reading in a chat: the plan, failed
// steps and the report. Status lines and step results stay out of the chat.
type Relay struct {
	Messenger Messenger
	ChatID    string
	// MaxLen splits long messages; zero means no limit.
	MaxLen int
}

func NewRelay(m Messenger, chatID string, maxLen int) *Relay {
	return &Relay{Messenger: m, ChatID: chatID, MaxLen: maxLen}
}

// Format renders e as a chat message. ok is false for events that are not relayed.
func Format(e agent.Event) (text string, ok bool) {
	switch ev := e.(type) {
	case agent.PlanReadyEvent:
		return "📋 Research plan\n\n" + ev.Plan, true
	case agent.StepErrorEvent:
		return fmt.Sprintf("⚠️ Step %d failed: %s", ev.Ordinal, ev.Message), true
	case agent.FinalReportEvent:
		return ev.Report, true
	}
	return "", false
}

// FormatFailure renders a fatal run error.
func FormatFailure(err error) string {
	return fmt.Sprintf("❌ Research failed: %v", err)
}

// Sink relays events into the chat. Only a report that could not be delivered
// is returned as an error; a lost plan or step notice does not stop the research.
func (r *Relay) Sink() agent.Sink {
	return func(e agent.Event) error {
		text, ok := Format(e)
		if !ok {
			return nil
		}
		err := r.send(text)
		if err != nil && e.Kind() != agent.KindFinalReport {
			log.Printf("[Gateway] dropped %s message for %s: %v", e.Kind(), r.ChatID, err)
			return nil
		}
		return err
	}
}

func (r *Relay) Fail(err error) error {
	return r.send(FormatFailure(err))
}

func (r *Relay) send(text string) error {
	for _, part := range split(text, r.MaxLen) {
		if err := r.Messenger.Send(r.ChatID, part); err != nil {
			return err
		}
	}
	return nil
}

// split cuts text into chunks of at most max runes, preferring line breaks.
func split(text string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	var parts []string
	for utf8.RuneCountInString(text) > max {
		cut := byteOffset(text, max)
		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

// ScheduleAdder stores recurring goals requested from a chat.
type ScheduleAdder interface {
	AddSchedule(ctx context.Context, goal, target string, interval time.Duration) (int64, error)
}

const helpText = `Send me a research question and I will plan it, research each step and write a report.

/schedule <interval> <question> runs the question every interval (e.g. /schedule 24h latest Go release notes).
/help shows this message.`

// Handler turns chat messages into research runs.
type Handler struct {
	Runner    agent.GoalRunner
	Schedules ScheduleAdder
}

// Handle answers one incoming message. Research runs block until the report is sent.
func (h *Handler) Handle(ctx context.Context, gateway string, m Messenger, chatID, text string, maxLen int) {
	text = strings.TrimSpace(text)
	relay := NewRelay(m, chatID, maxLen)

	switch {
	case text == "":
		return
	case text == "/start" || text == "/help":
		h.reply(relay, helpText)
		return
	case strings.HasPrefix(text, "/schedule"):
		h.reply(relay, h.schedule(ctx, Target(gateway, chatID), strings.TrimSpace(strings.TrimPrefix(text, "/schedule"))))
		return
	}

	runID, _, err := h.Runner.Run(ctx, text, relay.Sink())
	if err != nil {
		log.Printf("[Gateway] run %s for %s:%s failed: %v", runID, gateway, chatID, err)
		if ferr := relay.Fail(err); ferr != nil {
			log.Printf("[Gateway] failed to report error to %s:%s: %v", gateway, chatID, ferr)
		}
	}
}

func (h *Handler) schedule(ctx context.Context, target, args string) string {
	if h.Schedules == nil {
		return "Scheduling is not enabled."
	}
	every, goal, _ := strings.Cut(args, " ")
	interval, err := time.ParseDuration(every)
	goal = strings.TrimSpace(goal)
	if err != nil || interval <= 0 || goal == "" {
		return "Usage: /schedule <interval> <question>, e.g. /schedule 24h latest Go release notes"
	}
	id, err := h.Schedules.AddSchedule(ctx, goal, target, interval)
	if err != nil {
		log.Printf("[Gateway] failed to add schedule for %s: %v", target, err)
		return "❌ Could not save the schedule."
	}
	return fmt.Sprintf("⏰ Scheduled #%d every %s: %s", id, interval, goal)
}

func (h *Handler) reply(r *Relay, text string) {
	if err := r.send(text); err != nil {
		log.Printf("[Gateway] reply to %s failed: %v", r.ChatID, err)
	}
}
