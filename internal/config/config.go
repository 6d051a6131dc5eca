// Package config provides configuration for the console client.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// REST API settings
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Realtime channel settings
	ChannelURL           string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration

	// NATS transport settings (used when ChannelURL has a nats:// scheme)
	InboundSubject  string
	OutboundSubject string
	NATSCAFile      string
	NATSCertFile    string
	NATSKeyFile     string
	NATSToken       string

	// Local status server
	StatusAddr           string
	StatusAllowedOrigins []string
	StatusRateLimit      int
	StatusRateWindow     time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// fileConfig mirrors Config for the optional YAML file. Durations are strings ("5s").
type fileConfig struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Channel struct {
		URL                  string `yaml:"url"`
		ReconnectInterval    string `yaml:"reconnect_interval"`
		MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
		HandshakeTimeout     string `yaml:"handshake_timeout"`
		WriteTimeout         string `yaml:"write_timeout"`
		InboundSubject       string `yaml:"inbound_subject"`
		OutboundSubject      string `yaml:"outbound_subject"`
	} `yaml:"channel"`
	NATS struct {
		CAFile   string `yaml:"ca_file"`
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
		Token    string `yaml:"token"`
	} `yaml:"nats"`
	Status struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RateLimit      int      `yaml:"rate_limit"`
		RateWindow     string   `yaml:"rate_window"`
	} `yaml:"status"`
	LogLevel string `yaml:"log_level"`
	Tracing  struct {
		Endpoint string `yaml:"endpoint"`
		Enabled  *bool  `yaml:"enabled"`
	} `yaml:"tracing"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:           "http://localhost:8080/api",
		APITimeout:           10 * time.Second,
		ChannelURL:           "ws://localhost:8080/ws",
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		InboundSubject:       "chat.client.in",
		OutboundSubject:      "chat.client.out",
		StatusAddr:           "127.0.0.1:9090",
		StatusAllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		StatusRateLimit:      120,
		StatusRateWindow:     time.Minute,
		LogLevel:             "info",
		TracingEndpoint:      "localhost:4318",
	}
}

// Load builds the configuration: defaults, then CONFIG_FILE (YAML), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	if c.ChannelURL == "" {
		errs = append(errs, errors.New("CHANNEL_URL is required"))
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, errors.New("CHANNEL_RECONNECT_INTERVAL must be positive"))
	}
	if c.MaxReconnectAttempts <= 0 {
		errs = append(errs, errors.New("CHANNEL_MAX_RECONNECT_ATTEMPTS must be positive"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("CHANNEL_HANDSHAKE_TIMEOUT must be positive"))
	}
	if c.StatusRateLimit <= 0 || c.StatusRateWindow <= 0 {
		errs = append(errs, errors.New("STATUS_RATE_LIMIT and STATUS_RATE_WINDOW must be positive"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("API_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&c.APIBaseURL, fc.API.BaseURL)
	setString(&c.APIToken, fc.API.Token)
	setString(&c.ChannelURL, fc.Channel.URL)
	setString(&c.InboundSubject, fc.Channel.InboundSubject)
	setString(&c.OutboundSubject, fc.Channel.OutboundSubject)
	setString(&c.NATSCAFile, fc.NATS.CAFile)
	setString(&c.NATSCertFile, fc.NATS.CertFile)
	setString(&c.NATSKeyFile, fc.NATS.KeyFile)
	setString(&c.NATSToken, fc.NATS.Token)
	setString(&c.StatusAddr, fc.Status.Addr)
	if len(fc.Status.AllowedOrigins) > 0 {
		c.StatusAllowedOrigins = fc.Status.AllowedOrigins
	}
	if fc.Status.RateLimit != 0 {
		c.StatusRateLimit = fc.Status.RateLimit
	}
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.TracingEndpoint, fc.Tracing.Endpoint)

	if fc.Channel.MaxReconnectAttempts != 0 {
		c.MaxReconnectAttempts = fc.Channel.MaxReconnectAttempts
	}
	if fc.Tracing.Enabled != nil {
		c.TracingEnabled = *fc.Tracing.Enabled
	}

	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.API.Timeout, &c.APITimeout, "api.timeout"},
		{fc.Channel.ReconnectInterval, &c.ReconnectInterval, "channel.reconnect_interval"},
		{fc.Channel.HandshakeTimeout, &c.HandshakeTimeout, "channel.handshake_timeout"},
		{fc.Channel.WriteTimeout, &c.WriteTimeout, "channel.write_timeout"},
		{fc.Status.RateWindow, &c.StatusRateWindow, "status.rate_window"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return nil
}

func (c *Config) applyEnv() {
	// REST API
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.APIToken = getEnv("API_TOKEN", c.APIToken)
	c.APITimeout = getDurationEnv("API_TIMEOUT", c.APITimeout)

	// Channel
	c.ChannelURL = getEnv("CHANNEL_URL", c.ChannelURL)
	c.ReconnectInterval = getDurationEnv("CHANNEL_RECONNECT_INTERVAL", c.ReconnectInterval)
	c.MaxReconnectAttempts = getIntEnv("CHANNEL_MAX_RECONNECT_ATTEMPTS", c.MaxReconnectAttempts)
	c.HandshakeTimeout = getDurationEnv("CHANNEL_HANDSHAKE_TIMEOUT", c.HandshakeTimeout)
	c.WriteTimeout = getDurationEnv("CHANNEL_WRITE_TIMEOUT", c.WriteTimeout)
	c.InboundSubject = getEnv("CHANNEL_INBOUND_SUBJECT", c.InboundSubject)
	c.OutboundSubject = getEnv("CHANNEL_OUTBOUND_SUBJECT", c.OutboundSubject)

	// NATS
	c.NATSCAFile = getEnv("NATS_CA_FILE", c.NATSCAFile)
	c.NATSCertFile = getEnv("NATS_CERT_FILE", c.NATSCertFile)
	c.NATSKeyFile = getEnv("NATS_KEY_FILE", c.NATSKeyFile)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)

	// Status server
	c.StatusAddr = getEnv("STATUS_ADDR", c.StatusAddr)
	c.StatusAllowedOrigins = getListEnv("STATUS_ALLOWED_ORIGINS", c.StatusAllowedOrigins)
	c.StatusRateLimit = getIntEnv("STATUS_RATE_LIMIT", c.StatusRateLimit)
	c.StatusRateWindow = getDurationEnv("STATUS_RATE_WINDOW", c.StatusRateWindow)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Tracing
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingEnabled = getBoolEnv("TRACING_ENABLED", c.TracingEnabled)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
