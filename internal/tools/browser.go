package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/microcosm-cc/bluemonday"
)

// BrowserTool renders a page in headless Chrome and returns its visible text.
// Use it for pages that build their content with JavaScript.
type BrowserTool struct {
	Limit   int
	Timeout time.Duration
	// ExecPath overrides the Chrome binary; empty means chromedp's lookup.
	ExecPath string
}

func NewBrowserTool(limit int) *BrowserTool {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	return &BrowserTool{Limit: limit, Timeout: 45 * time.Second}
}

func (b *BrowserTool) Name() string {
	return "browser"
}

func (b *BrowserTool) Description() string {
	return "Render a webpage in a headless browser (runs JavaScript) and return its visible text (truncated). Slower than scraper; use when scraper returns little or no content."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to render",
			},
			"wait_selector": map[string]any{
				"type":        "string",
				"description": "Optional CSS selector to wait for before reading the page",
			},
		},
		"required": []string{"url"},
	}
}

func (b *BrowserTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL          string `json:"url"`
		WaitSelector string `json:"wait_selector"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if u, err := url.Parse(args.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", args.URL)
	}
	if args.WaitSelector == "" {
		args.WaitSelector = "body"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	// The browser lives only for this call.
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	actionCtx, cancel := context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	var title, text string
	err := chromedp.Run(actionCtx,
		chromedp.Navigate(args.URL),
		chromedp.WaitVisible(args.WaitSelector, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser render failed: %w", err)
	}

	content := html.UnescapeString(bluemonday.StrictPolicy().Sanitize(text))
	if title != "" {
		content = title + "\n" + content
	}
	return Clean(content, b.Limit), nil
}
