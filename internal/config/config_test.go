package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReconnectInterval != 5*time.Second {
		t.Fatalf("expected 5s reconnect interval, got %s", cfg.ReconnectInterval)
	}
	if cfg.MaxReconnectAttempts != 10 {
		t.Fatalf("expected 10 attempts, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Fatalf("expected 10s handshake timeout, got %s", cfg.HandshakeTimeout)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	body := `
api:
  base_url: http://file.example/api
  timeout: 3s
channel:
  url: wss://file.example/ws
  reconnect_interval: 250ms
  max_reconnect_attempts: 4
  handshake_timeout: 2s
log_level: debug
tracing:
  enabled: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHANNEL_URL", "ws://env.example/ws")
	t.Setenv("CHANNEL_HANDSHAKE_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://file.example/api" {
		t.Fatalf("expected file base url, got %q", cfg.APIBaseURL)
	}
	if cfg.ChannelURL != "ws://env.example/ws" {
		t.Fatalf("expected env to override file, got %q", cfg.ChannelURL)
	}
	if cfg.ReconnectInterval != 250*time.Millisecond || cfg.MaxReconnectAttempts != 4 {
		t.Fatalf("unexpected reconnect policy: %s x%d", cfg.ReconnectInterval, cfg.MaxReconnectAttempts)
	}
	if cfg.HandshakeTimeout != 750*time.Millisecond {
		t.Fatalf("expected env handshake timeout, got %s", cfg.HandshakeTimeout)
	}
	if cfg.APITimeout != 3*time.Second || cfg.LogLevel != "debug" || !cfg.TracingEnabled {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("channel:\n  reconnect_interval: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "channel.reconnect_interval") {
		t.Fatalf("expected reconnect_interval error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ChannelURL = ""
	cfg.MaxReconnectAttempts = 0
	cfg.HandshakeTimeout = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "CHANNEL_URL") || !strings.Contains(err.Error(), "CHANNEL_MAX_RECONNECT_ATTEMPTS") ||
		!strings.Contains(err.Error(), "CHANNEL_HANDSHAKE_TIMEOUT") {
		t.Fatalf("expected every problem reported, got %v", err)
	}
}

func TestStatusOriginsFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STATUS_ALLOWED_ORIGINS", " http://a.local , ,http://b.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.StatusAllowedOrigins) != 2 || cfg.StatusAllowedOrigins[1] != "http://b.local" {
		t.Fatalf("unexpected origins %q", cfg.StatusAllowedOrigins)
	}
}
