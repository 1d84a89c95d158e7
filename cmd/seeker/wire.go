package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rahul/seeker/internal/agent"
	"github.com/rahul/seeker/internal/governance"
	"github.com/rahul/seeker/internal/observability"
	"github.com/rahul/seeker/internal/store"
	"github.com/rahul/seeker/internal/tools"
	"github.com/rahul/seeker/pkg/config"
	"github.com/tmc/langchaingo/llms"
)

// app is everything a run needs, built once from the config.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *tools.Registry
	runner   *agent.Runner
	gatherer *prometheus.Registry

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

// openStore opens the run archive, or returns nil when memory.type is "none".
func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.Memory.Type {
	case "none":
		return nil, nil
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Memory.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		return store.NewStore(cfg.Memory.Path)
	}
	return nil, &config.ConfigurationError{Key: "memory.type", Reason: fmt.Sprintf("unsupported type %q", cfg.Memory.Type)}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if st != nil {
		a.store = st
		a.closers = append(a.closers, st.Close)
	}

	logger, err := a.newLogger()
	if err != nil {
		return nil, err
	}

	a.gatherer = prometheus.NewRegistry()
	a.gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(a.gatherer)

	prompts, err := agent.NewPromptManager(cfg.Agent.PromptsDir)
	if err != nil {
		return nil, err
	}

	models := map[string]llms.Model{}
	route := func(name string) (agent.Route, error) {
		provider, p, err := cfg.Provider(name)
		if err != nil {
			return agent.Route{}, err
		}
		m, cached := models[provider]
		if !cached {
			if m, err = agent.NewModel(provider, p); err != nil {
				return agent.Route{}, err
			}
			models[provider] = m
		}
		return agent.Route{Model: m, ModelName: p.Model, Temperature: p.Temperature}, nil
	}
	fallback, err := route("")
	if err != nil {
		return nil, err
	}
	planning, err := route(cfg.Routing.Planning)
	if err != nil {
		return nil, err
	}
	executing, err := route(cfg.Routing.Executor)
	if err != nil {
		return nil, err
	}
	synthesis, err := route(cfg.Routing.Synthesis)
	if err != nil {
		return nil, err
	}

	if err := a.registerTools(ctx); err != nil {
		return nil, err
	}

	policy, err := governance.NewPolicyEngine(governance.Rules{
		DeniedTools:    cfg.Governance.DeniedTools,
		DeniedPatterns: cfg.Governance.DeniedPatterns,
		DeniedHosts:    cfg.Governance.DeniedHosts,
	})
	if err != nil {
		return nil, &config.ConfigurationError{Key: "governance.denied_patterns", Reason: err.Error()}
	}

	reasoner := agent.NewReActReasoner(executing.Model, a.registry, prompts)
	reasoner.Policy = policy
	reasoner.Logger = logger
	reasoner.Metrics = metrics
	if cfg.Agent.MaxIterations > 0 {
		reasoner.MaxIterations = cfg.Agent.MaxIterations
	}

	provider := agent.NewLLMProvider(prompts, fallback).
		Route(agent.TemplatePlanning, planning).
		Route(agent.TemplateSynthesis, synthesis)
	provider.Logger = logger
	provider.Metrics = metrics

	orch := agent.NewOrchestrator(provider, agent.NewStepExecutor(reasoner, cfg.Agent.StepTimeout),
		agent.WithRunTimeout(cfg.Agent.RunTimeout),
		agent.WithToolCatalog(a.registry.Catalog()),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)

	var archive agent.Archive
	if a.store != nil {
		archive = a.store
	}
	a.runner = agent.NewRunner(orch, archive)

	ok = true
	return a, nil
}

// newLogger writes structured events to <log_dir>/events.jsonl.
func (a *app) newLogger() (*observability.Logger, error) {
	dir := a.cfg.Telemetry.LogDir
	if dir == "" {
		return observability.NewLogger(nil, ""), nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	a.closers = append(a.closers, f.Close)
	return observability.NewLogger(f, dir), nil
}

func (a *app) registerTools(ctx context.Context) error {
	cfg := a.cfg.Tools
	a.registry = tools.NewRegistry()

	var cache tools.Cache
	if a.cfg.Cache.Enabled {
		rc, err := tools.NewRedisCache(ctx, a.cfg.Cache.Addr, a.cfg.Cache.Password, a.cfg.Cache.DB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rc.Close)
		cache = rc
	}
	register := func(t tools.Tool) {
		a.registry.Register(tools.Cached(t, cache, a.cfg.Cache.TTL))
	}

	var backend tools.Searcher
	switch cfg.Search {
	case "brave":
		backend = tools.NewBrave(cfg.BraveAPIKey, cfg.SearchResults)
	default:
		ddg, err := tools.NewDuckDuckGo(cfg.SearchResults)
		if err != nil {
			return fmt.Errorf("search backend: %w", err)
		}
		backend = ddg
	}
	register(tools.NewSearchTool(backend))
	register(tools.NewScraperTool(cfg.FetchLimit))

	if cfg.Browser {
		b := tools.NewBrowserTool(cfg.FetchLimit)
		b.ExecPath = cfg.BrowserPath
		register(b)
	}
	if cfg.Recall {
		if a.store == nil {
			return &config.ConfigurationError{Key: "tools.recall", Reason: "requires memory.type sqlite"}
		}
		a.registry.Register(tools.NewRecallTool(a.store))
	}
	return nil
}

var errNoStore = errors.New("run archive is disabled (memory.type is none)")
