package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"m2kqa/internal/qa"
)

// Config is the m2kqa configuration file.
type Config struct {
	Server             string        `yaml:"server"`
	Token              string        `yaml:"token,omitempty"`
	HTTPTimeout        time.Duration `yaml:"http_timeout,omitempty"`
	PollRetries        int           `yaml:"poll_retries"`
	PollDelay          time.Duration `yaml:"poll_delay"`
	OutputPollInterval time.Duration `yaml:"output_poll_interval,omitempty"`
	MinServerVersion   string        `yaml:"min_server_version,omitempty"`
	Serve              ServeConfig   `yaml:"serve"`
	Notify             NotifyConfig  `yaml:"notify,omitempty"`
}

// ServeConfig configures `m2kqa serve`.
type ServeConfig struct {
	Bind   string   `yaml:"bind,omitempty"`
	Tokens []string `yaml:"tokens,omitempty"`
}

// NotifyConfig selects where `m2kqa serve` reports sessions that wait for
// an answer, complete or fail.
type NotifyConfig struct {
	Desktop         bool   `yaml:"desktop,omitempty"`
	Webhook         string `yaml:"webhook,omitempty"`
	WebhookFormat   string `yaml:"webhook_format,omitempty"` // slack, json or custom
	WebhookTemplate string `yaml:"webhook_template,omitempty"`
	Hook            string `yaml:"hook,omitempty"` // script run with the event on stdin
}

const (
	DefaultServer             = "http://localhost:8080"
	DefaultBind               = ":3456"
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultOutputPollInterval = 5 * time.Second
)

// ConfigPath is the file Load and Save use. It defaults to
// $XDG_CONFIG_HOME/m2kqa/config.yaml; the --config flag overrides it.
var ConfigPath = filepath.Join(xdg.ConfigHome, "m2kqa", "config.yaml")

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Server:             DefaultServer,
		HTTPTimeout:        DefaultHTTPTimeout,
		PollRetries:        qa.DefaultPollRetries,
		PollDelay:          qa.DefaultPollDelay,
		OutputPollInterval: DefaultOutputPollInterval,
		Serve:              ServeConfig{Bind: DefaultBind},
	}
}

// envOverrides are read from M2KQA_* variables. Pointers stay nil when the
// variable is unset.
type envOverrides struct {
	Server      *string        `envconfig:"SERVER"`
	Token       *string        `envconfig:"TOKEN"`
	PollRetries *int           `envconfig:"POLL_RETRIES"`
	PollDelay   *time.Duration `envconfig:"POLL_DELAY"`
	ServeBind   *string        `envconfig:"SERVE_BIND"`
}

// LoadConfig reads ConfigPath, fills in defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	return LoadFrom(ConfigPath)
}

// LoadFrom is LoadConfig for an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("m2kqa", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.Server != nil {
		cfg.Server = *env.Server
	}
	if env.Token != nil {
		cfg.Token = *env.Token
	}
	if env.PollRetries != nil {
		cfg.PollRetries = *env.PollRetries
	}
	if env.PollDelay != nil {
		cfg.PollDelay = *env.PollDelay
	}
	if env.ServeBind != nil {
		cfg.Serve.Bind = *env.ServeBind
	}
	return nil
}

func (c *Config) fillDefaults() {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PollDelay <= 0 {
		c.PollDelay = qa.DefaultPollDelay
	}
	if c.OutputPollInterval <= 0 {
		c.OutputPollInterval = DefaultOutputPollInterval
	}
	if c.Serve.Bind == "" {
		c.Serve.Bind = DefaultBind
	}
}

// Validate checks values a user may have typed by hand.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server %q is not an http(s) URL", c.Server)
	}
	if c.PollRetries < 0 {
		return fmt.Errorf("poll_retries must not be negative")
	}
	switch c.Notify.WebhookFormat {
	case "", "slack", "json":
	case "custom":
		if c.Notify.WebhookTemplate == "" {
			return fmt.Errorf("notify.webhook_format custom needs notify.webhook_template")
		}
	default:
		return fmt.Errorf("notify.webhook_format %q is not slack, json or custom", c.Notify.WebhookFormat)
	}
	return nil
}

// SessionOptions converts the polling settings for qa.NewSession. A
// configured retry count of zero disables retries.
func (c *Config) SessionOptions() qa.Options {
	retries := c.PollRetries
	if retries == 0 {
		retries = -1
	}
	return qa.Options{PollRetries: retries, PollDelay: c.PollDelay}
}

// SaveConfig writes cfg to ConfigPath with owner-only permissions, since the
// file may hold tokens.
func SaveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ConfigPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(ConfigPath, data, 0o600)
}

// setters maps `config set` keys to the field they change.
var setters = map[string]func(*Config, string) error{
	"server": func(c *Config, v string) error { c.Server = v; return nil },
	"token":  func(c *Config, v string) error { c.Token = v; return nil },
	"http-timeout": func(c *Config, v string) error {
		return setDuration(&c.HTTPTimeout, v)
	},
	"poll-retries": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("poll-retries must be a non-negative integer")
		}
		c.PollRetries = n
		return nil
	},
	"poll-delay": func(c *Config, v string) error {
		return setDuration(&c.PollDelay, v)
	},
	"output-poll-interval": func(c *Config, v string) error {
		return setDuration(&c.OutputPollInterval, v)
	},
	"min-server-version": func(c *Config, v string) error { c.MinServerVersion = v; return nil },
	"serve-bind":         func(c *Config, v string) error { c.Serve.Bind = v; return nil },
	"notify-desktop": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("notify-desktop must be true or false")
		}
		c.Notify.Desktop = b
		return nil
	},
	"notify-webhook":          func(c *Config, v string) error { c.Notify.Webhook = v; return nil },
	"notify-webhook-format":   func(c *Config, v string) error { c.Notify.WebhookFormat = v; return nil },
	"notify-webhook-template": func(c *Config, v string) error { c.Notify.WebhookTemplate = v; return nil },
	"notify-hook":             func(c *Config, v string) error { c.Notify.Hook = v; return nil },
	"serve-tokens": func(c *Config, v string) error {
		c.Serve.Tokens = nil
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Serve.Tokens = append(c.Serve.Tokens, t)
			}
		}
		return nil
	},
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%q is not a positive duration", v)
	}
	*dst = d
	return nil
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set changes one key of the file at ConfigPath. Environment overrides are
// not written back.
func Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	cfg := Default()
	data, err := os.ReadFile(ConfigPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", ConfigPath, err)
		}
	}
	if err := set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return SaveConfig(cfg)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Token != "" {
		out.Token = "********"
	}
	if out.Notify.Webhook != "" {
		out.Notify.Webhook = "********"
	}
	out.Serve.Tokens = make([]string, len(c.Serve.Tokens))
	for i := range out.Serve.Tokens {
		out.Serve.Tokens[i] = "********"
	}
	return &out
}
