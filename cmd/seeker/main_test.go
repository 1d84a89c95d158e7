package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/seeker/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "test-key", Model: "gpt-4o-mini", Enabled: true},
		},
		Agent:     config.AgentConfig{MaxIterations: 4, PromptsDir: filepath.Join(dir, "prompts")},
		Tools:     config.ToolsConfig{Search: "duckduckgo", SearchResults: 5, FetchLimit: 2000, Recall: true},
		Memory:    config.MemoryConfig{Type: "sqlite", Path: filepath.Join(dir, "data", "seeker.db")},
		Telemetry: config.TelemetryConfig{LogDir: filepath.Join(dir, "logs")},
	}
}

func TestNewApp(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	for _, name := range []string{"search", "scraper", "recall"} {
		if a.registry.Get(name) == nil {
			t.Errorf("tool %s not registered", name)
		}
	}
	if a.registry.Get("browser") != nil {
		t.Error("browser registered while disabled")
	}
	if a.runner == nil || a.runner.Archive == nil || a.store == nil {
		t.Error("runner not wired to the archive")
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers = nil
	var cerr *config.ConfigurationError
	if _, err := newApp(context.Background(), cfg); !errors.As(err, &cerr) {
		t.Errorf("error = %v, want ConfigurationError", err)
	}

	cfg = testConfig(t)
	cfg.Memory.Type = "none"
	if _, err := newApp(context.Background(), cfg); !errors.As(err, &cerr) || cerr.Key != "tools.recall" {
		t.Errorf("recall without store error = %v", err)
	}
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Type = "none"
	if st, err := openStore(cfg); st != nil || err != nil {
		t.Errorf("openStore(none) = %v, %v", st, err)
	}
	cfg.Memory.Type = "postgres"
	if _, err := openStore(cfg); err == nil {
		t.Error("unsupported store accepted")
	}
}

func TestScheduleCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"memory": {"type": "sqlite", "path": "` + filepath.ToSlash(filepath.Join(dir, "seeker.db")) + `"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append([]string{"--config", path}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if out := run("schedule", "add", "--every", "12h", "--target", "telegram:42", "latest", "Go", "release"); !strings.Contains(out, "scheduled #1") {
		t.Errorf("add output = %q", out)
	}
	out := run("schedule", "list")
	if !strings.Contains(out, "12h0m0s") || !strings.Contains(out, "telegram:42") || !strings.Contains(out, "latest Go release") {
		t.Errorf("list output = %q", out)
	}
	run("schedule", "remove", "1")
	if out := run("schedule", "list"); strings.Contains(out, "latest Go release") {
		t.Errorf("schedule not removed: %q", out)
	}
	if out := run("runs", "list"); !strings.HasPrefix(out, "ID") {
		t.Errorf("runs output = %q", out)
	}
}
