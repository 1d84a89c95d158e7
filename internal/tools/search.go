package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// DefaultSearchResults is how many ranked results a search returns.
const DefaultSearchResults = 5

// Result is one ranked search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// Searcher is a web search backend returning results already flattened to text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

type SearchTool struct {
	backend Searcher
}

func NewSearchTool(backend Searcher) *SearchTool {
	return &SearchTool{backend: backend}
}

func (s *SearchTool) Name() string {
	return "search"
}

func (s *SearchTool) Description() string {
	return "Search the web for real-time information. Returns ranked results with URL, title and a content snippet."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant web pages",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("invalid input: query is required")
	}

	res, err := s.backend.Search(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return res, nil
}

// FormatResults flattens ranked results, best first, one block per hit.
func FormatResults(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("URL: %s\nTitle: %s\nContent: %s", r.URL, r.Title, r.Snippet))
	}
	return strings.Join(blocks, "\n\n")
}

// DuckDuckGo searches through the langchaingo DuckDuckGo tool.
type DuckDuckGo struct {
	client *duckduckgo.Tool
}

func NewDuckDuckGo(maxResults int) (*DuckDuckGo, error) {
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &DuckDuckGo{client: ddg}, nil
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	raw, err := d.client.Call(ctx, query)
	if err != nil {
		return "", err
	}
	results := parseDuckDuckGo(raw)
	if len(results) == 0 {
		return "No results found.", nil
	}
	return FormatResults(results), nil
}

// parseDuckDuckGo reads the "Title:/Description:/URL:" blocks the langchaingo tool returns.
func parseDuckDuckGo(raw string) []Result {
	var results []Result
	for _, block := range strings.Split(raw, "\n\n") {
		var r Result
		var field *string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "Title: "):
				r.Title, field = strings.TrimPrefix(line, "Title: "), &r.Title
			case strings.HasPrefix(line, "Description: "):
				r.Snippet, field = strings.TrimPrefix(line, "Description: "), &r.Snippet
			case strings.HasPrefix(line, "URL: "):
				r.URL, field = strings.TrimPrefix(line, "URL: "), &r.URL
			case field != nil && strings.TrimSpace(line) != "":
				*field += " " + strings.TrimSpace(line)
			}
		}
		if r.URL == "" && r.Title == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}

// Brave searches through the Brave Search web API.
type Brave struct {
	APIKey     string
	MaxResults int
	Endpoint   string
	Client     *http.Client
}

func NewBrave(apiKey string, maxResults int) *Brave {
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	return &Brave{
		APIKey:     apiKey,
		MaxResults: maxResults,
		Endpoint:   "https://api.search.brave.com/res/v1/web/search",
		Client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (b *Brave) Search(ctx context.Context, query string) (string, error) {
	results, err := b.Discover(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}
	return FormatResults(results), nil
}

// Discover returns at most MaxResults ranked hits for query.
func (b *Brave) Discover(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprintf("%d", b.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search: status code %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave search: decode response: %w", err)
	}

	var out []Result
	for i, r := range raw.Web.Results {
		if i >= b.MaxResults {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
