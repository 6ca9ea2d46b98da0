package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"freqtrade-mcp/internal/demo"
	"freqtrade-mcp/internal/domain"
	"freqtrade-mcp/internal/freqtrade"
	"freqtrade-mcp/internal/service"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type cannedResponse struct {
	status int
	body   string
}

// fakeUpstream stands in for a Freqtrade REST API and counts every request it sees.
type fakeUpstream struct {
	mu        sync.Mutex
	hits      []string
	responses map[string]cannedResponse
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits = append(f.hits, r.Method+" "+r.URL.Path)
	resp, ok := f.responses[strings.TrimPrefix(r.URL.Path, "/api/v1")]
	f.mu.Unlock()

	if !ok {
		resp = cannedResponse{status: http.StatusOK, body: `{}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (f *fakeUpstream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hits)
}

type memJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *memJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append([]domain.JournalEntry{entry}, j.entries...)
	return nil
}

func (j *memJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit > 0 && len(j.entries) > limit {
		return append([]domain.JournalEntry(nil), j.entries[:limit]...), nil
	}
	return append([]domain.JournalEntry(nil), j.entries...), nil
}

type testEnv struct {
	srv      *sdkmcp.Server
	upstream *fakeUpstream
	journal  *memJournal
	apiURL   string
}

func newTestEnv(t *testing.T, mode domain.Mode, responses map[string]cannedResponse) *testEnv {
	t.Helper()
	upstream := &fakeUpstream{responses: responses}
	ts := httptest.NewServer(upstream)
	t.Cleanup(ts.Close)

	client := freqtrade.NewClient(nil, freqtrade.Config{
		BaseURL:  ts.URL,
		Username: "bot",
		Password: "secret",
		Timeout:  time.Second,
	})
	journal := &memJournal{}
	svc := service.NewTrading(nil, mode, client, demo.NewSimulator(nil), service.TradingOptions{Journal: journal})
	srv := NewServer(nil, svc, ServerConfig{RequestTimeout: time.Second, APIURL: ts.URL})
	return &testEnv{srv: srv, upstream: upstream, journal: journal, apiURL: ts.URL}
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func connectEnv(t *testing.T, ctx context.Context, env *testEnv) *sdkmcp.ClientSession {
	t.Helper()
	session, shutdown, err := connectInMemory(ctx, env.srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		shutdown()
	})
	return session
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func toolText(res *sdkmcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if text, ok := c.(*sdkmcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func decodeToolJSON(t *testing.T, res *sdkmcp.CallToolResult, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(toolText(res)), out); err != nil {
		t.Fatalf("decode tool result: %v (text=%q)", err, toolText(res))
	}
}
