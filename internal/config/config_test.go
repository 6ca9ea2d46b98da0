package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"freqtrade-mcp/internal/domain"
)

var configEnvKeys = []string{
	"FREQTRADE_API_URL",
	"FREQTRADE_USERNAME",
	"FREQTRADE_PASSWORD",
	"FREQTRADE_TIMEOUT_SECS",
	"FREQTRADE_POLL_SECS",
	"TRADING_MODE",
	"MCP_SERVER_NAME",
	"MCP_SERVER_VERSION",
	"MCP_TRANSPORT",
	"MCP_HOST",
	"MCP_PORT",
	"MCP_AUTH_TOKEN",
	"MCP_REQUEST_TIMEOUT_SECS",
	"MCP_RATE_LIMIT_PER_MIN",
	"MCP_ALLOWED_ORIGINS",
	"LOG_LEVEL",
	"LOG_DIR",
	"JOURNAL_BACKEND",
	"REDIS_URL",
	"DATABASE_URL",
	"JOURNAL_MAX_ENTRIES",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg := Load()
	if cfg.FreqtradeAPIURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected default api url: %s", cfg.FreqtradeAPIURL)
	}
	if cfg.Mode != domain.ModeDemo {
		t.Fatalf("expected demo mode by default, got %s", cfg.Mode)
	}
	if cfg.MCPTransport != TransportStdio || cfg.MCPHost != "localhost" || cfg.MCPPort != 8005 {
		t.Fatalf("unexpected MCP defaults: %s %s:%d", cfg.MCPTransport, cfg.MCPHost, cfg.MCPPort)
	}
	if cfg.MCPServerName != "FreqtradeMCP" || cfg.MCPServerVersion != "0.1.0" {
		t.Fatalf("unexpected server identity: %s %s", cfg.MCPServerName, cfg.MCPServerVersion)
	}
	if cfg.FreqtradePollSecs != 30 {
		t.Fatalf("unexpected default poll interval: %d", cfg.FreqtradePollSecs)
	}
	if cfg.FreqtradeTimeoutSecs != 10 || cfg.MCPRequestTimeoutSecs != 15 || cfg.MCPRateLimitPerMin != 60 {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.JournalBackend != JournalNone || cfg.JournalMaxEntries != 500 {
		t.Fatalf("unexpected journal defaults: %s %d", cfg.JournalBackend, cfg.JournalMaxEntries)
	}
	if cfg.HasCredentials() {
		t.Fatal("expected no default credentials")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate in demo mode: %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("FREQTRADE_API_URL", "http://freqtrade:8080/")
	t.Setenv("FREQTRADE_USERNAME", "bot")
	t.Setenv("FREQTRADE_PASSWORD", "secret")
	t.Setenv("FREQTRADE_TIMEOUT_SECS", "3")
	t.Setenv("FREQTRADE_POLL_SECS", "0")
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("MCP_TRANSPORT", "http")
	t.Setenv("MCP_HOST", "0.0.0.0")
	t.Setenv("MCP_PORT", "9000")
	t.Setenv("MCP_AUTH_TOKEN", "token")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JOURNAL_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("JOURNAL_MAX_ENTRIES", "25")
	t.Setenv("MCP_ALLOWED_ORIGINS", "http://localhost:3000, ,https://agent.example")

	cfg := Load()
	if cfg.FreqtradeAPIURL != "http://freqtrade:8080" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.FreqtradeAPIURL)
	}
	if cfg.Mode != domain.ModeLive || !cfg.HasCredentials() || cfg.FreqtradeTimeoutSecs != 3 {
		t.Fatalf("unexpected freqtrade settings: %+v", cfg)
	}
	if cfg.FreqtradePollSecs != 0 {
		t.Fatalf("expected poll disabled, got %d", cfg.FreqtradePollSecs)
	}
	if cfg.MCPTransport != TransportStreamableHTTP || cfg.MCPHost != "0.0.0.0" || cfg.MCPPort != 9000 {
		t.Fatalf("unexpected transport settings: %+v", cfg)
	}
	if len(cfg.MCPAllowedOrigins) != 2 || cfg.MCPAllowedOrigins[1] != "https://agent.example" {
		t.Fatalf("unexpected allowed origins: %v", cfg.MCPAllowedOrigins)
	}
	if cfg.LogLevel != "DEBUG" || cfg.JournalBackend != JournalRedis || cfg.JournalMaxEntries != 25 {
		t.Fatalf("unexpected ambient settings: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MCP_TRANSPORT", "carrier-pigeon")
	t.Setenv("MCP_PORT", "-1")
	t.Setenv("TRADING_MODE", "paper")

	cfg := Load()
	if cfg.MCPTransport != TransportStdio || cfg.MCPPort != 8005 || cfg.Mode != domain.ModeDemo {
		t.Fatalf("expected invalid values to fall back to defaults: %+v", cfg)
	}
}

func TestValidateLiveRequiresCredentials(t *testing.T) {
	clearConfigEnv(t)
	cfg := Load()
	cfg.Mode = domain.ModeLive

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for nil config, got %v", err)
	}
}

func TestValidateJournalBackendRequiresURL(t *testing.T) {
	clearConfigEnv(t)
	cfg := Load()
	cfg.JournalBackend = JournalPostgres

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DatabaseURL") {
		t.Fatalf("expected DatabaseURL validation error, got %v", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "mcp.yaml")
	body := "freqtrade_api_url: http://file:8080\nfreqtrade_username: from-file\nmcp_transport: http\nmcp_port: 7000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MCP_PORT", "7100")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FreqtradeAPIURL != "http://file:8080" || cfg.FreqtradeUsername != "from-file" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.MCPTransport != TransportStreamableHTTP {
		t.Fatalf("expected transport alias normalized, got %s", cfg.MCPTransport)
	}
	if cfg.MCPPort != 7100 {
		t.Fatalf("expected env to override file, got %d", cfg.MCPPort)
	}
	if cfg.MCPServerName != "FreqtradeMCP" {
		t.Fatalf("expected defaults for keys missing from file, got %s", cfg.MCPServerName)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestLoadFileWithoutPathUsesEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MCP_PORT", "7200")

	cfg, err := LoadFile("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MCPPort != 7200 || cfg.FreqtradeAPIURL != "http://127.0.0.1:8080" {
		t.Fatalf("expected defaults plus env, got %+v", cfg)
	}
}

func TestPrintHidesSecrets(t *testing.T) {
	clearConfigEnv(t)
	cfg := Load()
	cfg.FreqtradeUsername = "bot"
	cfg.FreqtradePassword = "hunter2"

	var buf bytes.Buffer
	cfg.Print(&buf)
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked: %s", out)
	}
	if !strings.Contains(out, "Password: <set>") || !strings.Contains(out, "Mode: demo") {
		t.Fatalf("unexpected output: %s", out)
	}
}
