package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptPack []byte

// PromptFile is the name of the template pack looked up in the prompts directory.
const PromptFile = "prompts.yaml"

type promptPack struct {
	Templates map[string]struct {
		Template  string   `yaml:"template"`
		Variables []string `yaml:"variables"`
	} `yaml:"templates"`
}

// PromptManager holds the named prompt templates. Templates from the built-in
// pack are overridden by the ones found in Directory/prompts.yaml.
type PromptManager struct {
	Directory string
	templates map[string]prompts.PromptTemplate
}

func NewPromptManager(dir string) (*PromptManager, error) {
	pm := &PromptManager{Directory: dir, templates: make(map[string]prompts.PromptTemplate)}
	if err := pm.load(defaultPromptPack); err != nil {
		return nil, fmt.Errorf("built-in prompts: %w", err)
	}
	if dir == "" {
		return pm, nil
	}

	path := filepath.Join(dir, PromptFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return pm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	if err := pm.load(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pm, nil
}

func (pm *PromptManager) load(data []byte) error {
	var pack promptPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return err
	}
	for id, t := range pack.Templates {
		if t.Template == "" {
			return fmt.Errorf("template %q is empty", id)
		}
		pm.templates[id] = prompts.PromptTemplate{
			Template:       t.Template,
			InputVariables: t.Variables,
			TemplateFormat: prompts.TemplateFormatGoTemplate,
		}
	}
	return nil
}

// Render fills template id with vars.
func (pm *PromptManager) Render(id string, vars map[string]any) (string, error) {
	t, ok := pm.templates[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", id)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return t.Format(vars)
}

// Has reports whether template id is defined.
func (pm *PromptManager) Has(id string) bool {
	_, ok := pm.templates[id]
	return ok
}
