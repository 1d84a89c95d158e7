package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a tool call to be evaluated.
type Request struct {
	Tool      string
	Arguments string
	RunID     string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// Rules is the configured policy of a research deployment.
type Rules struct {
	DeniedTools    []string
	DeniedPatterns []string
	// DeniedHosts keeps page fetches away from these hosts and their subdomains.
	DeniedHosts []string
}

// DefaultPolicyEngine denies tools by name, page fetches by host and arguments
// by pattern; everything else is allowed.
type DefaultPolicyEngine struct {
	DeniedTools map[string]bool
	DeniedHosts []string
	DeniedRegex []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedTools: make(map[string]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
	}
}

// NewPolicyEngine builds an engine from configured rules.
func NewPolicyEngine(rules Rules) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, name := range rules.DeniedTools {
		e.DenyTool(name)
	}
	for _, host := range rules.DeniedHosts {
		e.DenyHost(host)
	}
	for _, pattern := range rules.DeniedPatterns {
		if err := e.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("governance: bad pattern %q: %w", pattern, err)
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyTool(name string) {
	e.DeniedTools[name] = true
}

// DenyHost blocks calls whose "url" argument points at host or a subdomain of it.
func (e *DefaultPolicyEngine) DenyHost(host string) {
	host = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "."))
	if host != "" {
		e.DeniedHosts = append(e.DeniedHosts, host)
	}
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedTools[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tool '%s' is restricted by system policy", req.Tool),
		}, nil
	}

	if host := targetHost(req.Arguments); host != "" {
		for _, denied := range e.DeniedHosts {
			if host == denied || strings.HasSuffix(host, "."+denied) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("Pages on %s may not be fetched", host),
				}, nil
			}
		}
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Arguments) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Arguments match restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// targetHost is the lowercased host of the call's "url" argument, if it has one.
func targetHost(arguments string) string {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.URL == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
