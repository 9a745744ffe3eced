// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mailer.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultHTTPTimeout bounds every HTTP request a transport makes.
const defaultHTTPTimeout = 30 * time.Second

// defaultDSN is used when no transport is configured at all.
const defaultDSN = "stdout://default"

// Config holds the complete application configuration.
type Config struct {
	Mailer  MailerConfig  `yaml:"mailer"`
	Graph   GraphConfig   `yaml:"graph"`
	SES     SESConfig     `yaml:"ses"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// MailerConfig selects the transport by DSN.
type MailerConfig struct {
	DSN string `yaml:"dsn"`
}

// GraphConfig holds Microsoft Graph API credentials, used when no DSN is set.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SESConfig holds AWS SES configuration, used when no DSN and no Graph
// credentials are set.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.normalizeFileValues()

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// SESConfigured returns true if an SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// ResolveDSN returns the configured DSN. Without one it assembles a DSN from
// the Graph section, then the SES section, and finally falls back to the
// stdout transport.
func (c *Config) ResolveDSN() string {
	switch {
	case c.Mailer.DSN != "":
		return c.Mailer.DSN
	case c.GraphConfigured():
		u := url.URL{
			Scheme: "microsoft-graph-api",
			User:   url.UserPassword(c.Graph.ClientID, c.Graph.ClientSecret),
			Host:   c.Graph.TenantID,
		}
		return u.String()
	case c.SESConfigured():
		u := url.URL{Scheme: "ses", Host: c.SES.Region}
		if c.SES.AccessKeyID != "" && c.SES.SecretAccessKey != "" {
			u.User = url.UserPassword(c.SES.AccessKeyID, c.SES.SecretAccessKey)
		}
		return u.String()
	default:
		return defaultDSN
	}
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Timeout = defaultHTTPTimeout
	c.Logging.Level = "info"
}

// normalizeFileValues applies the rules the environment layer enforces to
// values read from YAML: a non-positive timeout keeps the default and the
// log level is lower-cased.
func (c *Config) normalizeFileValues() {
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = defaultHTTPTimeout
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("MAILER_DSN"); v != "" {
		c.Mailer.DSN = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.HTTP.Timeout = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
