package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "taskgraph.yml"

// Config models taskgraph.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url" json:"base_url"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
		Token   string        `yaml:"token" json:"-"`
	} `yaml:"api" json:"api"`
	Server struct {
		Addr         string   `yaml:"addr" json:"addr"`
		BasePath     string   `yaml:"base_path" json:"base_path"`
		CORSOrigins  []string `yaml:"cors_origins" json:"cors_origins"`
		DefaultLimit int      `yaml:"default_limit" json:"default_limit"`
		JWTSecret    string   `yaml:"jwt_secret" json:"-"`
	} `yaml:"server" json:"server"`
	Graph struct {
		Width         float64 `yaml:"width" json:"width"`
		Height        float64 `yaml:"height" json:"height"`
		DanglingEdges string  `yaml:"dangling_edges" json:"dangling_edges"`
	} `yaml:"graph" json:"graph"`
	Notifications struct {
		Duration time.Duration `yaml:"duration" json:"duration"`
	} `yaml:"notifications" json:"notifications"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret" json:"-"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config %s not found; create one with taskgraph config init", path)
	}
	return cfg, err
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := FromFile(Path(workspace))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("config.api.timeout must not be negative")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.DefaultLimit < 0 {
		return fmt.Errorf("config.server.default_limit must not be negative")
	}
	if c.Graph.Width <= 0 || c.Graph.Height <= 0 {
		return fmt.Errorf("config.graph.width and config.graph.height must be positive")
	}
	switch c.Graph.DanglingEdges {
	case "", "keep", "drop":
	default:
		return fmt.Errorf("config.graph.dangling_edges must be keep or drop")
	}
	if c.Notifications.Duration < 0 {
		return fmt.Errorf("config.notifications.duration must not be negative")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhook %s has empty event type", hook.URL)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `api:
  base_url: http://localhost:8000
  timeout: 10s

server:
  addr: 127.0.0.1:8000
  base_path: ""
  cors_origins: ["*"]
  default_limit: 100

graph:
  width: 500
  height: 300
  dangling_edges: keep

notifications:
  duration: 6s
`
