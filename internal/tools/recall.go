package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a previously produced report that can be recalled.
type Document struct {
	ID      string
	Title   string
	Content string
}

// ReportIndex finds archived reports matching a keyword query.
type ReportIndex interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error)
}

// RecallTool lets the reasoning loop reuse findings from earlier runs.
type RecallTool struct {
	Index ReportIndex
	Limit int
}

func NewRecallTool(index ReportIndex) *RecallTool {
	return &RecallTool{Index: index, Limit: 3}
}

func (r *RecallTool) Name() string {
	return "recall"
}

func (r *RecallTool) Description() string {
	return "Search reports produced by earlier research runs for a keyword or phrase."
}

func (r *RecallTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Keyword or phrase to look for in earlier reports",
			},
		},
		"required": []string{"query"},
	}
}

func (r *RecallTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("invalid input: query is required")
	}

	docs, err := r.Index.SearchDocuments(ctx, args.Query, r.Limit)
	if err != nil {
		return "", fmt.Errorf("recall failed: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Sprintf("No earlier reports mention %q.", args.Query), nil
	}

	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, fmt.Sprintf("REPORT %s: %s\n%s", d.ID, d.Title, Clean(d.Content, DefaultFetchLimit)))
	}
	return strings.Join(blocks, "\n\n"), nil
}
