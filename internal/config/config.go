package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pefman/w40k-odds/internal/form"
	"gopkg.in/yaml.v3"
)

// Config is the viewer configuration. The logging block of the same file is read by the
// logger package.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Page       PageConfig       `yaml:"page"`
	History    HistoryConfig    `yaml:"history"`
}

// ServerConfig holds the HTTP and websocket settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AllowedOrigins is a list of origins allowed to open a websocket.
	// Empty list enforces same-origin policy. "*" allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum inbound websocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// SimulationConfig points at the external simulation service.
type SimulationConfig struct {
	BaseURL        string `yaml:"base_url"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PageConfig selects the page variant and its constrained controls.
type PageConfig struct {
	Variant string `yaml:"variant"`

	// Widgets switches individual widgets on or off on top of the variant preset,
	// keyed by widget name (pdf, token, range, tables, shots, cdf, tree).
	Widgets map[string]bool `yaml:"widgets"`

	Controls form.Controls `yaml:"controls"`
}

// HistoryConfig controls how submissions are written into the page URL.
type HistoryConfig struct {
	// Mode is "reload" (back/forward reloads the page) or "snapshot".
	Mode string `yaml:"mode"`

	// Param is "q" (?q=<state>) or "raw" (?<state>). Empty uses the variant default.
	Param string `yaml:"param"`

	// SnapshotCapacity bounds the per-session snapshot cache.
	SnapshotCapacity int `yaml:"snapshot_capacity"`
}

const (
	HistoryReload   = "reload"
	HistorySnapshot = "snapshot"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                   ":8082",
			AllowedOrigins:         []string{}, // Same-origin only by default
			MaxMessageSize:         64 << 10,
			ShutdownTimeoutSeconds: 10,
		},
		Simulation: SimulationConfig{
			BaseURL:        "http://localhost:8080",
			Endpoint:       "simulate.json",
			TimeoutSeconds: 8,
		},
		Page: PageConfig{
			Variant: "simulate",
		},
		History: HistoryConfig{
			Mode:             HistoryReload,
			SnapshotCapacity: 32,
		},
	}
}

// LoadConfig loads the configuration from a YAML file and applies the environment
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return DefaultConfig(), err
			}
		case !os.IsNotExist(err):
			return config, err
		}
	}

	config.applyEnv()
	return config, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() {
	if p := os.Getenv("PORT"); p != "" {
		if !strings.Contains(p, ":") {
			p = ":" + p
		}
		c.Server.Addr = p
	}
	c.Simulation.BaseURL = getenv("SIM_API_BASE", c.Simulation.BaseURL)
	c.Simulation.Endpoint = getenv("SIM_ENDPOINT", c.Simulation.Endpoint)
	if s := os.Getenv("SIM_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			c.Simulation.TimeoutSeconds = n
		}
	}
	c.Page.Variant = getenv("PAGE_VARIANT", c.Page.Variant)
	c.History.Mode = strings.ToLower(getenv("HISTORY_MODE", c.History.Mode))
}

// Timeout is the simulation round trip bound.
func (c SimulationConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ShutdownTimeout is the graceful shutdown bound.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// IsOriginAllowed checks if the given origin may open a websocket.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *ServerConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	return strings.TrimSuffix(originHost, "/") == requestHost
}
