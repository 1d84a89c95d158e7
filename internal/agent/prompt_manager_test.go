package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManagerBuiltins(t *testing.T) {
	pm, err := NewPromptManager("")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{TemplatePlanning, TemplateSynthesis, TemplateWorker} {
		if !pm.Has(id) {
			t.Errorf("built-in template %q missing", id)
		}
	}

	plan, err := pm.Render(TemplatePlanning, map[string]any{"goal": "Why is the sky blue?", "tools": "- search: web search"})
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{
		"Why is the sky blue?",
		"- search: web search",
		"Synthesize all collected information into a final, comprehensive report.",
	} {
		if !strings.Contains(plan, part) {
			t.Errorf("planning prompt missing %q", part)
		}
	}

	synth, err := pm.Render(TemplateSynthesis, map[string]any{"goal": "G", "context": "step one\n\nstep two"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Index(synth, "G") > strings.Index(synth, "step one\n\nstep two") {
		t.Error("goal should be rendered before the collected information")
	}
}

func TestPromptManagerDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	pack := "templates:\n  worker:\n    template: \"Custom worker for {{.name}}\"\n    variables: [name]\n"
	if err := os.WriteFile(filepath.Join(dir, PromptFile), []byte(pack), 0644); err != nil {
		t.Fatal(err)
	}

	pm, err := NewPromptManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pm.Render(TemplateWorker, map[string]any{"name": "seeker"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Custom worker for seeker" {
		t.Errorf("worker prompt = %q", got)
	}
	if !pm.Has(TemplatePlanning) {
		t.Error("override dropped built-in planning template")
	}
}

func TestPromptManagerMissingDirectory(t *testing.T) {
	if _, err := NewPromptManager(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing prompts dir should fall back to built-ins: %v", err)
	}
}

func TestPromptManagerInvalidPack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PromptFile), []byte("templates:\n  planning:\n    template: \"\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPromptManager(dir); err == nil {
		t.Fatal("expected error for empty template")
	}
}

func TestPromptManagerUnknownTemplate(t *testing.T) {
	pm, err := NewPromptManager("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pm.Render("nope", nil); err == nil {
		t.Fatal("expected error")
	}
}
