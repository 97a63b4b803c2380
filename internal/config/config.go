// ABOUTME: YAML configuration with ${VAR} environment expansion and defaults
// ABOUTME: One Config drives the server, the sweeps and every transport

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Reminders RemindersConfig `yaml:"reminders"`
	Court     CourtConfig     `yaml:"court"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Sources   []SourceConfig  `yaml:"sources"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener for the Twilio webhook.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemindersConfig tunes the batch sweeps.
type RemindersConfig struct {
	// DaysOut sends reminders for events within this many whole days.
	DaysOut int `yaml:"days_out"`
	// UnboundTTLDays is how many days an unmatched case number is retried
	// before the registration expires.
	UnboundTTLDays int `yaml:"unbound_ttl_days"`
	// TimeZone interprets zoneless event dates, e.g. "America/Chicago".
	TimeZone string `yaml:"time_zone"`
	// SweepInterval is how often both sweeps run under the serve command.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// Workers bounds concurrent registration processing per sweep.
	Workers int `yaml:"workers"`
}

// CourtConfig carries text the composer puts in outgoing messages.
type CourtConfig struct {
	PublicURL string `yaml:"public_url"`
	Title     string `yaml:"title"`
}

// TwilioConfig configures the SMS transport.
type TwilioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	Phone      string `yaml:"phone"`
}

// SourceConfig describes one court case-data API.
type SourceConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Format string `yaml:"format"`
	APIKey string `yaml:"api_key"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "courtbot.db"
	}
	if c.Reminders.DaysOut <= 0 {
		c.Reminders.DaysOut = 2
	}
	if c.Reminders.UnboundTTLDays <= 0 {
		c.Reminders.UnboundTTLDays = 7
	}
	if c.Reminders.TimeZone == "" {
		c.Reminders.TimeZone = "Local"
	}
	if c.Reminders.SweepInterval <= 0 {
		c.Reminders.SweepInterval = time.Hour
	}
	if c.Reminders.Workers <= 0 {
		c.Reminders.Workers = 4
	}
	if c.Court.Title == "" {
		c.Court.Title = "Courtbot"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Twilio.Enabled {
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.Phone == "" {
			return fmt.Errorf("twilio is enabled but account_sid, auth_token or phone is missing")
		}
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources[%d] (%s): url is required", i, src.Name)
		}
		switch src.Format {
		case "", "json", "csv":
		default:
			return fmt.Errorf("sources[%d] (%s): unknown format %q", i, src.Name, src.Format)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Location resolves the configured reminder time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminders.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.Reminders.TimeZone, err)
	}
	return loc, nil
}

// UnboundTTL returns the unbound retry window as a duration.
func (c *Config) UnboundTTL() time.Duration {
	return time.Duration(c.Reminders.UnboundTTLDays) * 24 * time.Hour
}
