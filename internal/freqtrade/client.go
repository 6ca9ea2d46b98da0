package freqtrade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"freqtrade-mcp/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	apiPrefix          = "/api/v1"
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 16 << 20
	defaultTradesLimit = 50
	maxTradesLimit     = 500
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to the Freqtrade REST API using HTTP Basic Auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	tracer   trace.Tracer
}

// APIError is a non-auth rejection returned by Freqtrade. Detail holds the upstream reason verbatim.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("freqtrade %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

func NewClient(tracer trace.Tracer, cfg Config) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("freqtrade")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	base = strings.TrimSuffix(base, apiPrefix)
	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		tracer:   tracer,
	}
}

func (c *Client) configured() bool {
	return c != nil && c.baseURL != "" && strings.TrimSpace(c.username) != "" && c.password != ""
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/ping", nil, nil)
	return err
}

func (c *Client) PairCandles(ctx context.Context, pair, timeframe string, limit int) (any, error) {
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("timeframe", timeframe)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.do(ctx, http.MethodGet, "/pair_candles", q, nil)
}

func (c *Client) Status(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/status", nil, nil)
}

func (c *Client) Profit(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/profit", nil, nil)
}

func (c *Client) Performance(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/performance", nil, nil)
}

func (c *Client) Balance(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/balance", nil, nil)
}

func (c *Client) Whitelist(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/whitelist", nil, nil)
}

func (c *Client) Blacklist(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/blacklist", nil, nil)
}

func (c *Client) Trades(ctx context.Context, limit int) (any, error) {
	if limit <= 0 {
		limit = defaultTradesLimit
	}
	if limit > maxTradesLimit {
		limit = maxTradesLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return c.do(ctx, http.MethodGet, "/trades", q, nil)
}

func (c *Client) ShowConfig(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/show_config", nil, nil)
}

func (c *Client) Locks(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodGet, "/locks", nil, nil)
}

func (c *Client) StartBot(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodPost, "/start", nil, nil)
}

func (c *Client) StopBot(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodPost, "/stop", nil, nil)
}

func (c *Client) ReloadConfig(ctx context.Context) (any, error) {
	return c.do(ctx, http.MethodPost, "/reload_config", nil, nil)
}

func (c *Client) AddBlacklist(ctx context.Context, pair string) (any, error) {
	return c.do(ctx, http.MethodPost, "/blacklist", nil, map[string]any{"blacklist": []string{pair}})
}

func (c *Client) DeleteBlacklist(ctx context.Context, pair string) (any, error) {
	q := url.Values{}
	q.Set("pairs_to_delete", pair)
	return c.do(ctx, http.MethodDelete, "/blacklist", q, nil)
}

func (c *Client) DeleteLock(ctx context.Context, lockID int) (any, error) {
	return c.do(ctx, http.MethodDelete, "/locks/"+strconv.Itoa(lockID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	if !c.configured() {
		return nil, domain.ErrNotConfigured
	}

	ctx, span := c.tracer.Start(ctx, "freqtrade."+strings.ToLower(method)+"."+strings.Trim(strings.ReplaceAll(path, "/", "."), "."))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("freqtrade.path", path),
	)

	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrUpstreamUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: read %s response: %w", domain.ErrUpstreamUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		span.SetStatus(codes.Error, "authentication failed")
		return nil, fmt.Errorf("%w (HTTP %d on %s)", domain.ErrAuthenticationFailed, resp.StatusCode, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Detail: errorDetail(raw)}
		span.SetStatus(codes.Error, apiErr.Detail)
		return nil, apiErr
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

// errorDetail extracts FastAPI's "detail"/"error" field, falling back to the raw body.
func errorDetail(raw []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			return s
		}
		if payload.Detail != nil {
			if b, err := json.Marshal(payload.Detail); err == nil {
				return string(b)
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response"
	}
	return text
}

// IsAPIError reports whether err carries an upstream rejection.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
