package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Target describes a single monitored endpoint.
type Target struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// PollConfig controls how often targets are probed and for how long.
type PollConfig struct {
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
}

// StorageConfig holds check journal settings. An empty path disables it.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Poll    PollConfig    `yaml:"poll"`
	Targets []Target      `yaml:"targets"`
	Storage StorageConfig `yaml:"storage"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Log     LogConfig     `yaml:"log"`
}

const (
	DefaultAddress  = ":3000"
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultCooldown = 5 * time.Minute
)

// Load reads, parses, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies defaults and environment
// overrides, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if port := os.Getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(cfg.Server.Address)
		if err != nil {
			host = ""
		}
		cfg.Server.Address = net.JoinHostPort(host, port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Poll.Interval.Duration == 0 {
		c.Poll.Interval = Duration{DefaultInterval}
	}
	if c.Poll.Timeout.Duration == 0 {
		c.Poll.Timeout = Duration{min(DefaultTimeout, c.Poll.Interval.Duration)}
	}
	if c.Alerts.Webhook.Cooldown.Duration == 0 {
		c.Alerts.Webhook.Cooldown = Duration{DefaultCooldown}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	for i := range c.Targets {
		if c.Targets[i].Name == "" {
			c.Targets[i].Name = c.Targets[i].URL
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Targets,
			validation.Required.Error("at least one target must be configured"),
			validation.Each(validation.By(validateTarget)),
		),
		validation.Field(&c.Poll, validation.By(validatePoll)),
		validation.Field(&c.Server, validation.By(validateServer)),
		validation.Field(&c.Log, validation.By(validateLog)),
		validation.Field(&c.Alerts, validation.By(validateAlerts)),
	)
	if err != nil {
		return err
	}

	names := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if names[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		names[t.Name] = true
	}
	return nil
}

func validateTarget(value interface{}) error {
	t, ok := value.(Target)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a Target")
	}
	if t.URL == "" {
		return validation.NewError("validation_empty_url", "target url is required")
	}
	return validateHTTPURL(t.URL)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}

func validatePoll(value interface{}) error {
	p, ok := value.(PollConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a PollConfig")
	}
	if p.Interval.Duration < 0 {
		return validation.NewError("validation_invalid_interval", "interval must be positive")
	}
	if p.Timeout.Duration < 0 {
		return validation.NewError("validation_invalid_timeout", "timeout must be positive")
	}
	if p.Timeout.Duration > p.Interval.Duration {
		return validation.NewError("validation_invalid_timeout", "timeout must not exceed interval")
	}
	return nil
}

func validateServer(value interface{}) error {
	s, ok := value.(ServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServerConfig")
	}
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return validation.NewError("validation_invalid_hostport", "address must be in host:port format")
	}
	return nil
}

func validateLog(value interface{}) error {
	l, ok := value.(LogConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a LogConfig")
	}
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

func validateAlerts(value interface{}) error {
	a, ok := value.(AlertsConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an AlertsConfig")
	}
	if a.Webhook.URL == "" {
		return nil
	}
	return validateHTTPURL(a.Webhook.URL)
}
