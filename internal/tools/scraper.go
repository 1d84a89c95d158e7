package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxBodyBytes = 5 << 20

type ScraperTool struct {
	UserAgent string
	Limit     int
	Client    *http.Client
}

func NewScraperTool(limit int) *ScraperTool {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	return &ScraperTool{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Limit:     limit,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ScraperTool) Name() string {
	return "scraper"
}

func (s *ScraperTool) Description() string {
	return "Fetch a webpage URL and return its main content as plain text (truncated)."
}

func (s *ScraperTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full URL of the webpage to scrape (e.g., https://example.com/article)",
			},
		},
		"required": []string{"url"},
	}
}

func (s *ScraperTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	parsedURL, err := url.Parse(args.URL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid url %q", args.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	return Clean(extractText(body, parsedURL), s.Limit), nil
}

// extractText prefers the readability article and falls back to the whole
// document with every tag stripped.
func extractText(body []byte, pageURL *url.URL) string {
	p := bluemonday.StrictPolicy()

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && article.TextContent != "" {
		text := html.UnescapeString(p.Sanitize(article.TextContent))
		if article.Title != "" {
			text = article.Title + "\n" + text
		}
		return text
	}
	return html.UnescapeString(p.Sanitize(string(body)))
}
