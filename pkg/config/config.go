package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Gateways   map[string]GatewayConfig  `mapstructure:"gateways"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Routing    RoutingConfig             `mapstructure:"routing"`
	Agent      AgentConfig               `mapstructure:"agent"`
	Tools      ToolsConfig               `mapstructure:"tools"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Governance GovernanceConfig          `mapstructure:"governance"`
	Memory     MemoryConfig              `mapstructure:"memory"`
	Server     ServerConfig              `mapstructure:"server"`
	Telemetry  TelemetryConfig           `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token"`
	Enabled bool   `mapstructure:"enabled"`
}

type ProviderConfig struct {
	// Type selects the client: "openai" (any OpenAI-compatible API) or "anthropic".
	// Empty means "anthropic" for a provider named anthropic and "openai" otherwise.
	Type        string  `mapstructure:"type"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	Enabled     bool    `mapstructure:"enabled"`
}

// RoutingConfig names the provider used for each role. Empty means the default provider.
type RoutingConfig struct {
	Planning  string `mapstructure:"planning"`
	Executor  string `mapstructure:"executor"`
	Synthesis string `mapstructure:"synthesis"`
}

type AgentConfig struct {
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	MaxIterations int           `mapstructure:"max_iterations"`
	PromptsDir    string        `mapstructure:"prompts_dir"`
}

type ToolsConfig struct {
	Search        string `mapstructure:"search"` // duckduckgo or brave
	BraveAPIKey   string `mapstructure:"brave_api_key"`
	SearchResults int    `mapstructure:"search_results"`
	FetchLimit    int    `mapstructure:"fetch_limit"`
	Browser       bool   `mapstructure:"browser"`
	BrowserPath   string `mapstructure:"browser_path"`
	Recall        bool   `mapstructure:"recall"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type GovernanceConfig struct {
	DeniedTools    []string `mapstructure:"denied_tools"`
	DeniedPatterns []string `mapstructure:"denied_patterns"`
	DeniedHosts    []string `mapstructure:"denied_hosts"`
}

type MemoryConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type TelemetryConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

// ConfigurationError reports a missing or invalid setting. It is raised before any run starts.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

var defaultBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "seeker")
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.prompts_dir", "./prompts")
	v.SetDefault("tools.search", "duckduckgo")
	v.SetDefault("tools.search_results", 5)
	v.SetDefault("tools.fetch_limit", 2000)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("memory.type", "sqlite")
	v.SetDefault("memory.path", "seeker.db")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("telemetry.log_dir", "logs")
}

// LoadConfig reads the JSON config at path (or ./config.json, ./config/config.json
// when path is empty) and applies SEEKER_* environment overrides. A missing file
// is only an error when path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SEEKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	cfg.applyEnvKeys()
	return &cfg, nil
}

// applyEnvKeys fills empty provider keys from <NAME>_API_KEY and empty base URLs
// from the well-known endpoints.
func (c *Config) applyEnvKeys() {
	for name, p := range c.Providers {
		if p.APIKey == "" {
			p.APIKey = os.Getenv(strings.ToUpper(name) + "_API_KEY")
		}
		if p.BaseURL == "" {
			p.BaseURL = defaultBaseURLs[name]
		}
		c.Providers[name] = p
	}
	if c.Tools.BraveAPIKey == "" {
		c.Tools.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
}

// GetDefaultProvider returns the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// Provider resolves a routing entry to a provider, falling back to the default one.
func (c *Config) Provider(route string) (string, ProviderConfig, error) {
	if route == "" {
		name, p := c.GetDefaultProvider()
		if name == "" {
			return "", ProviderConfig{}, &ConfigurationError{Key: "providers", Reason: "no enabled provider found"}
		}
		return name, p, nil
	}
	p, ok := c.Providers[route]
	if !ok || !p.Enabled {
		return "", ProviderConfig{}, &ConfigurationError{Key: "routing", Reason: fmt.Sprintf("provider %q is not configured or not enabled", route)}
	}
	return route, p, nil
}

// GetGateway returns the named gateway config if it is enabled and has a token.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}

// Validate checks every setting a run depends on.
func (c *Config) Validate() error {
	for _, route := range []struct{ key, name string }{
		{"routing.planning", c.Routing.Planning},
		{"routing.executor", c.Routing.Executor},
		{"routing.synthesis", c.Routing.Synthesis},
	} {
		name, p, err := c.Provider(route.name)
		if err != nil {
			var cerr *ConfigurationError
			if errors.As(err, &cerr) && cerr.Key == "routing" {
				cerr.Key = route.key
			}
			return err
		}
		if p.APIKey == "" {
			return &ConfigurationError{
				Key:    fmt.Sprintf("providers.%s.api_key", name),
				Reason: fmt.Sprintf("not set (use the config file or %s_API_KEY)", strings.ToUpper(name)),
			}
		}
		if p.Model == "" {
			return &ConfigurationError{Key: fmt.Sprintf("providers.%s.model", name), Reason: "not set"}
		}
		switch p.Type {
		case "", "openai", "anthropic":
		default:
			return &ConfigurationError{Key: fmt.Sprintf("providers.%s.type", name), Reason: fmt.Sprintf("unsupported type %q", p.Type)}
		}
	}

	switch c.Tools.Search {
	case "duckduckgo":
	case "brave":
		if c.Tools.BraveAPIKey == "" {
			return &ConfigurationError{Key: "tools.brave_api_key", Reason: "required when tools.search is brave"}
		}
	default:
		return &ConfigurationError{Key: "tools.search", Reason: fmt.Sprintf("unsupported search backend %q", c.Tools.Search)}
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return &ConfigurationError{Key: "cache.addr", Reason: "required when cache is enabled"}
	}
	if c.Agent.RunTimeout < 0 || c.Agent.StepTimeout < 0 {
		return &ConfigurationError{Key: "agent", Reason: "timeouts must not be negative"}
	}
	return nil
}
