package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/rahul/seeker/internal/governance"
	"github.com/rahul/seeker/internal/observability"
	"github.com/rahul/seeker/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

// DefaultMaxIterations bounds the model turns of one reasoning loop.
const DefaultMaxIterations = 10

// ReActReasoner is a tool-calling reasoning loop: the model either answers or
// asks for tool calls whose results are fed back until it answers.
type ReActReasoner struct {
	Model         llms.Model
	Registry      *tools.Registry
	Prompts       *PromptManager
	Policy        governance.PolicyEngine
	Logger        *observability.Logger
	Metrics       *observability.Metrics
	MaxIterations int
}

func NewReActReasoner(model llms.Model, registry *tools.Registry, prompts *PromptManager) *ReActReasoner {
	return &ReActReasoner{
		Model:         model,
		Registry:      registry,
		Prompts:       prompts,
		MaxIterations: DefaultMaxIterations,
	}
}

// Reason returns the model's final answer for instruction. Tool failures are
// shown to the model as observations; a model failure or running out of
// iterations is returned as an error, never as a partial answer.
func (b *ReActReasoner) Reason(ctx context.Context, instruction string) (string, error) {
	runID := observability.RunID(ctx)

	var messages []llms.MessageContent
	if b.Prompts != nil && b.Prompts.Has(TemplateWorker) {
		systemPrompt, err := b.Prompts.Render(TemplateWorker, nil)
		if err != nil {
			log.Printf("Warning: Failed to render worker prompt: %v", err)
		} else if systemPrompt != "" {
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, instruction))

	var opts []llms.CallOption
	if defs := b.toolDefinitions(); len(defs) > 0 {
		opts = append(opts, llms.WithTools(defs))
	}

	maxSteps := b.MaxIterations
	if maxSteps <= 0 {
		maxSteps = DefaultMaxIterations
	}

	for i := 0; i < maxSteps; i++ {
		resp, err := b.Model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("model returned no choices")
		}
		choice := resp.Choices[0]
		b.Logger.LogLLM(runID, TemplateWorker, instruction, choice.Content, choice.ToolCalls)

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		// No tool calls means this is the final answer.
		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			result := b.callTool(ctx, runID, i+1, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrMaxIterations, maxSteps)
}

// callTool runs one tool call and returns the observation text for the model.
func (b *ReActReasoner) callTool(ctx context.Context, runID string, iteration int, name, args string) string {
	var tool tools.Tool
	if b.Registry != nil {
		tool = b.Registry.Get(name)
	}
	if tool == nil {
		b.Metrics.ToolCalled(name, fmt.Errorf("unknown tool"))
		return fmt.Sprintf("Error: Tool %s not found", name)
	}

	if b.Policy != nil {
		res, err := b.Policy.Evaluate(ctx, governance.Request{Tool: name, Arguments: args, RunID: runID})
		if err != nil {
			return fmt.Sprintf("Error: policy check failed: %v", err)
		}
		b.Logger.LogPolicyCheck(runID, name, string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			return "Error: " + res.Reason
		}
	}

	log.Printf("[Iteration %d] Executing tool %s with args: %s", iteration, name, args)
	b.Logger.LogToolCall(runID, name, args)
	res, err := tool.Execute(ctx, args)
	b.Metrics.ToolCalled(name, err)
	b.Logger.LogToolResult(runID, name, len(res), err)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return res
}

func (b *ReActReasoner) toolDefinitions() []llms.Tool {
	if b.Registry == nil {
		return nil
	}
	var defs []llms.Tool
	for _, t := range b.Registry.List() {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
