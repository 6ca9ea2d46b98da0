package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"freqtrade-mcp/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"

	JournalNone     = "none"
	JournalRedis    = "redis"
	JournalPostgres = "postgres"
)

type Config struct {
	FreqtradeAPIURL      string `yaml:"freqtrade_api_url" validate:"required,url"`
	FreqtradeUsername    string `yaml:"freqtrade_username"`
	FreqtradePassword    string `yaml:"freqtrade_password"`
	FreqtradeTimeoutSecs int    `yaml:"freqtrade_timeout_secs" validate:"gt=0"`
	// FreqtradePollSecs is the live-mode reachability check interval; 0 disables it.
	FreqtradePollSecs int `yaml:"freqtrade_poll_secs" validate:"gte=0"`

	Mode domain.Mode `yaml:"trading_mode" validate:"oneof=demo live"`

	MCPServerName         string `yaml:"mcp_server_name" validate:"required"`
	MCPServerVersion      string `yaml:"mcp_server_version" validate:"required"`
	MCPTransport          string `yaml:"mcp_transport" validate:"oneof=stdio streamable-http"`
	MCPHost               string `yaml:"mcp_host" validate:"required"`
	MCPPort               int    `yaml:"mcp_port" validate:"gt=0,lte=65535"`
	MCPAuthToken          string `yaml:"mcp_auth_token"`
	MCPRequestTimeoutSecs int    `yaml:"mcp_request_timeout_secs" validate:"gt=0"`
	MCPRateLimitPerMin    int    `yaml:"mcp_rate_limit_per_min" validate:"gt=0"`
	// MCPAllowedOrigins enables CORS on the HTTP transport for the listed origins.
	MCPAllowedOrigins []string `yaml:"mcp_allowed_origins" validate:"dive,required"`

	LogLevel string `yaml:"log_level" validate:"oneof=DEBUG INFO WARN WARNING ERROR"`
	LogDir   string `yaml:"log_dir"`

	JournalBackend    string `yaml:"journal_backend" validate:"oneof=none redis postgres"`
	RedisURL          string `yaml:"redis_url" validate:"required_if=JournalBackend redis"`
	DatabaseURL       string `yaml:"database_url" validate:"required_if=JournalBackend postgres"`
	JournalMaxEntries int    `yaml:"journal_max_entries" validate:"gt=0"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func Defaults() *Config {
	return &Config{
		FreqtradeAPIURL:       "http://127.0.0.1:8080",
		FreqtradeTimeoutSecs:  10,
		FreqtradePollSecs:     30,
		Mode:                  domain.ModeDemo,
		MCPServerName:         "FreqtradeMCP",
		MCPServerVersion:      "0.1.0",
		MCPTransport:          TransportStdio,
		MCPHost:               "localhost",
		MCPPort:               8005,
		MCPRequestTimeoutSecs: 15,
		MCPRateLimitPerMin:    60,
		LogLevel:              "INFO",
		JournalBackend:        JournalNone,
		JournalMaxEntries:     500,
	}
}

// Load builds the configuration from defaults overridden by environment variables.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile applies a YAML file on top of the defaults, then environment variables.
func LoadFile(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Load(), nil
	}
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.MCPTransport = NormalizeTransport(cfg.MCPTransport)
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("FREQTRADE_API_URL")); v != "" {
		c.FreqtradeAPIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("FREQTRADE_USERNAME"); v != "" {
		c.FreqtradeUsername = v
	}
	if v := os.Getenv("FREQTRADE_PASSWORD"); v != "" {
		c.FreqtradePassword = v
	}
	if v := strings.TrimSpace(os.Getenv("FREQTRADE_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.FreqtradeTimeoutSecs = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("FREQTRADE_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.FreqtradePollSecs = n
		} else {
			log.Printf("Warning: invalid FREQTRADE_POLL_SECS=%q, keeping %d", v, c.FreqtradePollSecs)
		}
	}

	if v := strings.TrimSpace(os.Getenv("TRADING_MODE")); v != "" {
		mode, err := domain.ParseMode(v)
		if err != nil {
			log.Printf("Warning: %v, keeping %s", err, c.Mode)
		} else {
			c.Mode = mode
		}
	}

	if v := strings.TrimSpace(os.Getenv("MCP_SERVER_NAME")); v != "" {
		c.MCPServerName = v
	}
	if v := strings.TrimSpace(os.Getenv("MCP_SERVER_VERSION")); v != "" {
		c.MCPServerVersion = v
	}
	if v := strings.TrimSpace(os.Getenv("MCP_TRANSPORT")); v != "" {
		transport := NormalizeTransport(v)
		if transport != TransportStdio && transport != TransportStreamableHTTP {
			log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", v)
			transport = TransportStdio
		}
		c.MCPTransport = transport
	}
	if v := strings.TrimSpace(os.Getenv("MCP_HOST")); v != "" {
		c.MCPHost = v
	}
	if v := strings.TrimSpace(os.Getenv("MCP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MCPPort = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MCP_AUTH_TOKEN")); v != "" {
		c.MCPAuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MCPRequestTimeoutSecs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MCPRateLimitPerMin = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MCP_ALLOWED_ORIGINS")); v != "" {
		c.MCPAllowedOrigins = splitList(v)
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_DIR")); v != "" {
		c.LogDir = v
	}

	if v := strings.TrimSpace(os.Getenv("JOURNAL_BACKEND")); v != "" {
		c.JournalBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("JOURNAL_MAX_ENTRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.JournalMaxEntries = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.OTLPEndpoint = v
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeTransport maps accepted aliases onto the canonical transport names.
func NormalizeTransport(transport string) string {
	switch t := strings.ToLower(strings.TrimSpace(transport)); t {
	case "", TransportStdio:
		return TransportStdio
	case "http", TransportStreamableHTTP:
		return TransportStreamableHTTP
	default:
		return t
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and, in live mode, that Freqtrade credentials are present.
// Missing credentials are reported as domain.ErrNotConfigured.
func (c *Config) Validate() error {
	if c == nil {
		return domain.ErrNotConfigured
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Mode == domain.ModeLive && !c.HasCredentials() {
		return fmt.Errorf("%w: FREQTRADE_USERNAME and FREQTRADE_PASSWORD are required in live mode", domain.ErrNotConfigured)
	}
	return nil
}

func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.FreqtradeUsername) != "" && c.FreqtradePassword != ""
}

// Print writes the effective configuration without secrets.
func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "Freqtrade MCP Server Configuration:")
	fmt.Fprintf(w, "   Server: %s v%s\n", c.MCPServerName, c.MCPServerVersion)
	fmt.Fprintf(w, "   Mode: %s\n", c.Mode)
	fmt.Fprintf(w, "   Transport: %s\n", c.MCPTransport)
	if c.MCPTransport == TransportStreamableHTTP {
		fmt.Fprintf(w, "   HTTP: %s:%d\n", c.MCPHost, c.MCPPort)
		fmt.Fprintf(w, "   HTTP auth: %s\n", setOrUnset(c.MCPAuthToken))
	}
	fmt.Fprintf(w, "   Freqtrade API: %s\n", c.FreqtradeAPIURL)
	fmt.Fprintf(w, "   Username: %s\n", c.FreqtradeUsername)
	fmt.Fprintf(w, "   Password: %s\n", setOrUnset(c.FreqtradePassword))
	fmt.Fprintf(w, "   Journal: %s\n", c.JournalBackend)
	fmt.Fprintf(w, "   Log Level: %s\n", c.LogLevel)
}

func setOrUnset(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "<set>"
}
