package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/seeker/internal/observability"
	"github.com/rahul/seeker/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// Route is the model serving one prompt template.
type Route struct {
	Model       llms.Model
	ModelName   string
	Temperature float64
}

// LLMProvider is the Completer backed by language models: it renders a template
// from the prompt pack and sends it as a single human message.
type LLMProvider struct {
	Prompts  *PromptManager
	Routes   map[string]Route
	Fallback Route
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

func NewLLMProvider(prompts *PromptManager, fallback Route) *LLMProvider {
	return &LLMProvider{
		Prompts:  prompts,
		Routes:   make(map[string]Route),
		Fallback: fallback,
	}
}

// Route sends templateID to r instead of the fallback model.
func (p *LLMProvider) Route(templateID string, r Route) *LLMProvider {
	p.Routes[templateID] = r
	return p
}

func (p *LLMProvider) route(templateID string) Route {
	if r, ok := p.Routes[templateID]; ok && r.Model != nil {
		return r
	}
	return p.Fallback
}

func (p *LLMProvider) Complete(ctx context.Context, templateID string, vars map[string]any) (string, error) {
	prompt, err := p.Prompts.Render(templateID, vars)
	if err != nil {
		return "", &BackendError{Op: templateID, Err: fmt.Errorf("render prompt: %w", err)}
	}

	r := p.route(templateID)
	if r.Model == nil {
		return "", &BackendError{Op: templateID, Err: errors.New("no model configured")}
	}

	var opts []llms.CallOption
	if r.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(r.Temperature))
	}

	start := time.Now()
	resp, err := r.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("model returned no choices")
	}
	p.Metrics.ObserveCapability(templateID, time.Since(start), err)
	if err != nil {
		return "", &BackendError{Op: templateID, Err: err}
	}

	choice := resp.Choices[0]
	runID := observability.RunID(ctx)
	p.Logger.LogLLM(runID, templateID, prompt, choice.Content, nil)
	promptTokens, completionTokens := usage(choice.GenerationInfo)
	p.Logger.LogCost(runID, templateID, promptTokens, completionTokens, r.ModelName)
	return choice.Content, nil
}

// usage reads token counts reported by the openai and anthropic clients.
func usage(info map[string]any) (prompt, completion int) {
	for _, k := range []string{"PromptTokens", "InputTokens"} {
		if v, ok := info[k].(int); ok {
			prompt = v
			break
		}
	}
	for _, k := range []string{"CompletionTokens", "OutputTokens"} {
		if v, ok := info[k].(int); ok {
			completion = v
			break
		}
	}
	return prompt, completion
}

// NewModel builds the language model client for a configured provider.
func NewModel(name string, p config.ProviderConfig) (llms.Model, error) {
	if p.APIKey == "" {
		return nil, &config.ConfigurationError{Key: fmt.Sprintf("providers.%s.api_key", name), Reason: "not set"}
	}

	kind := p.Type
	if kind == "" {
		kind = "openai"
		if name == "anthropic" {
			kind = "anthropic"
		}
	}

	switch kind {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(p.APIKey),
			anthropic.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		return anthropic.New(opts...)
	}
	return nil, &config.ConfigurationError{Key: fmt.Sprintf("providers.%s.type", name), Reason: fmt.Sprintf("unsupported type %q", kind)}
}
