package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeRun         EventType = "run"
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCost        EventType = "cost"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLogger writes events to out and mirrors LLM exchanges to dir/llm.jsonl.
// An empty dir disables the mirror.
func NewLogger(out io.Writer, dir string) *Logger {
	l := &Logger{
		out:     out,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if dir != "" {
		l.llmLogPath = filepath.Join(dir, "llm.jsonl")
	}
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": %q}", "failed to marshal event: "+err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		_, _ = l.out.Write(append(data, '\n'))
	}
	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

// Simple rotation: keep one .old file
func (l *Logger) rotateLogs() {
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogRun(runID, goal, status string, err error) {
	data := map[string]string{"goal": goal, "status": status}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeRun, RunID: runID, Data: data})
}

func (l *Logger) LogPlan(runID, plan string, steps int) {
	l.Log(Event{
		Type:  EventTypePlan,
		RunID: runID,
		Data: map[string]any{
			"plan":  plan,
			"steps": steps,
		},
	})
}

func (l *Logger) LogStep(runID string, step int, status, detail string) {
	l.Log(Event{
		Type:  EventTypeStep,
		RunID: runID,
		Step:  step,
		Data: map[string]string{
			"status": status,
			"detail": detail,
		},
	})
}

func (l *Logger) LogToolCall(runID, tool, args string) {
	l.Log(Event{
		Type:  EventTypeToolCall,
		RunID: runID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(runID, tool string, size int, err error) {
	data := map[string]any{"tool": tool, "bytes": size}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeToolResult, RunID: runID, Data: data})
}

func (l *Logger) LogPolicyCheck(runID, tool, effect, reason string) {
	l.Log(Event{
		Type:  EventTypePolicyCheck,
		RunID: runID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(runID, template string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:  EventTypeCost,
		RunID: runID,
		Data: map[string]any{
			"template":          template,
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(runID, template string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Data: map[string]any{
			"template":   template,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}

type runIDKey struct{}

// WithRunID tags ctx with the run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunID returns the run tag carried by ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
