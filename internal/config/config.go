// ABOUTME: Configuration loading and parsing for ticketbot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ticketbot configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Assistant AssistantConfig `yaml:"assistant"`
	Odoo      OdooConfig      `yaml:"odoo"`
	Session   SessionConfig   `yaml:"session"`
	Intents   IntentsConfig   `yaml:"intents"`
	Forms     FormsConfig     `yaml:"forms"`
	Replies   RepliesConfig   `yaml:"replies"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds session storage configuration.
// Driver is "sqlite" (durable) or "memory" (development fallback).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// RedisConfig holds the optional Redis-backed queue tracker configuration.
// When Addr is empty the in-memory tracker is used.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WhatsAppConfig holds the messaging API credentials
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	AppSecret     string `yaml:"app_secret"`
	PhoneNumberID string `yaml:"phone_number_id"`
	Version       string `yaml:"version"`
	VerifyToken   string `yaml:"verify_token"`
	BaseURL       string `yaml:"base_url"` // override for tests; defaults to the Graph API
}

// AssistantConfig holds the AI backend configuration
type AssistantConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	HistoryLimit int    `yaml:"history_limit"`
}

// OdooConfig holds the ticket/lead backend webhook URLs
type OdooConfig struct {
	TicketsURL string `yaml:"tickets_url"`
	LeadsURL   string `yaml:"leads_url"`
	TeamID     int    `yaml:"team_id"`
}

// SessionConfig holds session lifecycle tuning
type SessionConfig struct {
	TTL            time.Duration `yaml:"-"`
	BackendTimeout time.Duration `yaml:"-"`
	HistoryLimit   int           `yaml:"history_limit"`

	// Raw string values for YAML unmarshaling
	TTLRaw            string `yaml:"ttl"`
	BackendTimeoutRaw string `yaml:"backend_timeout"`
}

// IntentsConfig holds the recognized keyword sets. Matching is
// case-insensitive on the whole trimmed message.
type IntentsConfig struct {
	StartTicket []string `yaml:"start_ticket"`
	StartLead   []string `yaml:"start_lead"`
	Cancel      []string `yaml:"cancel"`
	Skip        []string `yaml:"skip"`
	Confirm     []string `yaml:"confirm"`
	End         []string `yaml:"end"`
	Greeting    []string `yaml:"greeting"`
}

// FieldConfig describes one form field: its key in the collected form data,
// the prompt sent when the field becomes current, and whether the skip
// keyword is accepted.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Prompt   string `yaml:"prompt"`
	Optional bool   `yaml:"optional"`
}

// FormsConfig holds the ordered field tables for the guided flows
type FormsConfig struct {
	Ticket []FieldConfig `yaml:"ticket"`
	Lead   []FieldConfig `yaml:"lead"`
}

// RepliesConfig holds bot-visible reply texts
type RepliesConfig struct {
	Welcome       string `yaml:"welcome"`
	Apology       string `yaml:"apology"`
	Unsupported   string `yaml:"unsupported"`
	Farewell      string `yaml:"farewell"`
	Cancelled     string `yaml:"cancelled"`
	ConfirmPrompt string `yaml:"confirm_prompt"`
	SubmitOK      string `yaml:"submit_ok"`
	SubmitFailed  string `yaml:"submit_failed"`
}

// DashboardConfig holds the operator dashboard API configuration
type DashboardConfig struct {
	Enabled      bool   `yaml:"enabled"`
	JWTSecret    string `yaml:"jwt_secret"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"` // bcrypt

	TokenTTL    time.Duration `yaml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session.ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}

	if cfg.Session.BackendTimeoutRaw != "" {
		cfg.Session.BackendTimeout, err = time.ParseDuration(cfg.Session.BackendTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing session.backend_timeout %q: %w", cfg.Session.BackendTimeoutRaw, err)
		}
	}

	if cfg.Dashboard.TokenTTLRaw != "" {
		cfg.Dashboard.TokenTTL, err = time.ParseDuration(cfg.Dashboard.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dashboard.token_ttl %q: %w", cfg.Dashboard.TokenTTLRaw, err)
		}
	}

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// These are the only fatal errors in the system; everything at runtime is
// handled at the router boundary.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.WhatsApp.AppSecret == "" {
		return fmt.Errorf("whatsapp.app_secret is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("whatsapp.verify_token is required")
	}
	if c.WhatsApp.AccessToken == "" {
		return fmt.Errorf("whatsapp.access_token is required")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.phone_number_id is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "memory":
		// No path needed, sessions are lost on restart.
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"memory\", got %q", c.Database.Driver)
	}

	if c.Dashboard.Enabled {
		if c.Dashboard.JWTSecret == "" {
			return fmt.Errorf("dashboard.jwt_secret is required when the dashboard is enabled")
		}
		if c.Dashboard.Username == "" || c.Dashboard.PasswordHash == "" {
			return fmt.Errorf("dashboard.username and dashboard.password_hash are required when the dashboard is enabled")
		}
	}

	for i, f := range c.Forms.Ticket {
		if f.Name == "" {
			return fmt.Errorf("forms.ticket[%d].name is required", i)
		}
	}
	for i, f := range c.Forms.Lead {
		if f.Name == "" {
			return fmt.Errorf("forms.lead[%d].name is required", i)
		}
	}

	return nil
}
