// Package config loads commitcast settings from defaults, an optional TOML
// file, COMMITCAST_ environment variables and an optional AWS Secrets Manager
// secret, in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates sections: COMMITCAST_GITHUB__TOKEN sets github.token.
const EnvPrefix = "COMMITCAST_"

// DefaultConfigFile is loaded when no path is given and the file exists
const DefaultConfigFile = "commitcast.toml"

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	// Repos are "owner/name" or "gitlab:group/name" identifiers
	Repos []string `koanf:"repos"`

	GitHub struct {
		Token   string `koanf:"token"`
		BaseURL string `koanf:"base_url"`
	} `koanf:"github"`

	GitLab struct {
		Token   string `koanf:"token"`
		BaseURL string `koanf:"base_url"`
	} `koanf:"gitlab"`

	AI struct {
		// Provider is openai, anthropic, googleai, ollama or cohere
		Provider    string  `koanf:"provider"`
		APIKey      string  `koanf:"api_key"`
		BaseURL     string  `koanf:"base_url"`
		Model       string  `koanf:"model"`
		Temperature float64 `koanf:"temperature"`
		MaxTokens   int     `koanf:"max_tokens"`
	} `koanf:"ai"`

	Publish struct {
		// Platform is twitter or bluesky
		Platform string `koanf:"platform"`
	} `koanf:"publish"`

	Twitter struct {
		AccessToken string `koanf:"access_token"`
		BaseURL     string `koanf:"base_url"`
	} `koanf:"twitter"`

	Bluesky struct {
		Handle      string `koanf:"handle"`
		AppPassword string `koanf:"app_password"`
		PDSURL      string `koanf:"pds_url"`
	} `koanf:"bluesky"`

	Post struct {
		CharLimit      int    `koanf:"char_limit"`
		DefaultProject string `koanf:"default_project"`
	} `koanf:"post"`

	Poll struct {
		Enabled     bool `koanf:"enabled"`
		CommitCount int  `koanf:"commit_count"`
		WatchCount  int  `koanf:"watch_count"`
		IntervalMS  int  `koanf:"interval_ms"`
	} `koanf:"poll"`

	Display struct {
		MaxSummaryLength int `koanf:"max_summary_length"`
	} `koanf:"display"`

	Discord struct {
		// ChannelID receives auto-drafts from the watcher
		ChannelID string `koanf:"channel_id"`
		// Webhooks maps channel IDs to incoming webhook URLs
		Webhooks map[string]string `koanf:"webhooks"`
	} `koanf:"discord"`

	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	AWS struct {
		SecretName string `koanf:"secret_name"`
		Region     string `koanf:"region"`
	} `koanf:"aws"`
}

// defaults are loaded first and overridden by every other source
var defaults = map[string]interface{}{
	"post.char_limit":            280,
	"post.default_project":       "Project",
	"poll.enabled":               true,
	"poll.commit_count":          5,
	"poll.watch_count":           1,
	"poll.interval_ms":           30000,
	"display.max_summary_length": 800,
	"server.port":                8080,
	"ai.provider":                "openai",
	"publish.platform":           "twitter",
	"log.level":                  "info",
	"log.format":                 "console",
}

// Option customizes Load
type Option func(*loader)

type loader struct {
	secrets SecretsGetter
}

// WithSecretsClient uses getter instead of a client built from the default
// AWS credential chain.
func WithSecretsClient(getter SecretsGetter) Option {
	return func(l *loader) {
		l.secrets = getter
	}
}

// Load reads the configuration. An empty path falls back to DefaultConfigFile
// when it exists; an explicit path must exist.
func Load(ctx context.Context, path string, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if secretName := k.String("aws.secret_name"); secretName != "" {
		overlay, err := l.loadSecret(ctx, secretName, k.String("aws.region"))
		if err != nil {
			return nil, err
		}
		if err := k.Load(confmap.Provider(overlay, "."), nil); err != nil {
			return nil, fmt.Errorf("error merging secret %s: %w", secretName, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.normalize()

	return &cfg, nil
}

// envKey maps COMMITCAST_POLL__INTERVAL_MS to poll.interval_ms
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) normalize() {
	var repos []string
	for _, entry := range c.Repos {
		for _, r := range strings.Split(entry, ",") {
			if r = strings.TrimSpace(r); r != "" {
				repos = append(repos, r)
			}
		}
	}
	c.Repos = repos
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.Publish.Platform = strings.ToLower(strings.TrimSpace(c.Publish.Platform))
}

// PollInterval returns the watcher period
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	if c.Post.CharLimit < 1 {
		return fmt.Errorf("%w: post.char_limit must be at least 1, got %d", ErrInvalidConfig, c.Post.CharLimit)
	}
	if c.Poll.CommitCount < 1 {
		return fmt.Errorf("%w: poll.commit_count must be at least 1, got %d", ErrInvalidConfig, c.Poll.CommitCount)
	}
	if c.Poll.WatchCount < 1 {
		return fmt.Errorf("%w: poll.watch_count must be at least 1, got %d", ErrInvalidConfig, c.Poll.WatchCount)
	}
	if c.Poll.IntervalMS <= 0 {
		return fmt.Errorf("%w: poll.interval_ms must be positive, got %d", ErrInvalidConfig, c.Poll.IntervalMS)
	}
	if c.Display.MaxSummaryLength < 1 {
		return fmt.Errorf("%w: display.max_summary_length must be at least 1", ErrInvalidConfig)
	}

	switch c.AI.Provider {
	case "openai", "anthropic", "googleai", "ollama", "cohere":
	default:
		return fmt.Errorf("%w: unknown ai.provider %q", ErrInvalidConfig, c.AI.Provider)
	}

	switch c.Publish.Platform {
	case "twitter", "bluesky":
	default:
		return fmt.Errorf("%w: unknown publish.platform %q", ErrInvalidConfig, c.Publish.Platform)
	}

	return nil
}

// ValidateServe adds the checks for running the API and watcher
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Repos) == 0 {
		return fmt.Errorf("%w: repos must list at least one repository", ErrInvalidConfig)
	}
	if c.Poll.Enabled && c.Discord.ChannelID == "" {
		return fmt.Errorf("%w: discord.channel_id is required when polling is enabled", ErrInvalidConfig)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d is out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}
