package mcp

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"freqtrade-mcp/internal/domain"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolsListAndInvoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeDemo, nil)
	session := connectEnv(t, ctx, env)

	tools, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"fetch_market_data", "place_trade", "start_bot", "stop_bot", "fetch_profit", "fetch_performance",
		"fetch_bot_status", "fetch_balance", "fetch_whitelist", "fetch_blacklist", "fetch_trades",
		"fetch_config", "fetch_locks", "reload_config", "add_blacklist", "delete_blacklist", "delete_lock",
	} {
		if !names[want] {
			t.Fatalf("missing tool %s", want)
		}
	}

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "fetch_market_data",
		Arguments: map[string]any{"pair": "btc/usdt", "timeframe": "1h", "limit": 20},
	})
	if err != nil {
		t.Fatalf("call tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(res))
	}
	var market fetchMarketDataOutput
	decodeToolJSON(t, res, &market)
	if market.Pair != "BTC/USDT" || market.Timeframe != "1h" || market.Mode != domain.ModeDemo {
		t.Fatalf("unexpected market data output: %+v", market)
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "place_trade",
		Arguments: map[string]any{"pair": "BTC/USDT", "side": "buy", "amount": 0.001},
	})
	if err != nil {
		t.Fatalf("place trade failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected place trade error: %s", toolText(res))
	}
	var trade placeTradeOutput
	decodeToolJSON(t, res, &trade)
	if trade.Action != string(domain.ActionEnterLong) || trade.Side != "buy" {
		t.Fatalf("unexpected trade output: %+v", trade)
	}
	ack, ok := trade.Result.(map[string]any)
	if !ok || ack["dry_run"] != true {
		t.Fatalf("expected simulated acknowledgment, got %#v", trade.Result)
	}

	if env.upstream.count() != 0 {
		t.Fatalf("demo mode reached upstream: %v", env.upstream.hits)
	}
	if len(env.journal.entries) != 1 || env.journal.entries[0].Tool != "place_trade" {
		t.Fatalf("expected place_trade journal entry, got %+v", env.journal.entries)
	}
}

func TestToolsDemoStartStopIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeDemo, nil)
	session := connectEnv(t, ctx, env)

	for _, name := range []string{"start_bot", "start_bot", "stop_bot", "stop_bot", "fetch_profit", "fetch_performance"} {
		res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: map[string]any{}})
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if res.IsError {
			t.Fatalf("unexpected %s error: %s", name, toolText(res))
		}
	}
	if env.upstream.count() != 0 {
		t.Fatalf("demo mode reached upstream: %v", env.upstream.hits)
	}
}

func TestToolsDemoExitWithoutOpenTradeAcknowledged(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeDemo, nil)
	session := connectEnv(t, ctx, env)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "place_trade",
		Arguments: map[string]any{"pair": "BTC/USDT", "side": "sell", "amount": 0.01},
	})
	if err != nil {
		t.Fatalf("place_trade failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected synthetic acknowledgment, got error: %s", toolText(res))
	}
	var out struct {
		Mode   string         `json:"mode"`
		Result map[string]any `json:"result"`
	}
	decodeToolJSON(t, res, &out)
	if out.Mode != "demo" || out.Result["status"] != "simulated" || out.Result["note"] != "no open trade" {
		t.Fatalf("unexpected acknowledgment: %+v", out)
	}
	if ids, ok := out.Result["exited_trade_ids"].([]any); !ok || len(ids) != 0 {
		t.Fatalf("expected empty exited_trade_ids, got %#v", out.Result["exited_trade_ids"])
	}
	if env.upstream.count() != 0 {
		t.Fatalf("demo mode reached upstream: %v", env.upstream.hits)
	}
}

func TestToolsValidationFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeLive, nil)
	session := connectEnv(t, ctx, env)

	cases := []struct {
		name string
		args map[string]any
	}{
		{"fetch_market_data", map[string]any{"pair": "BTCUSDT", "timeframe": "1h"}},
		{"fetch_market_data", map[string]any{"pair": "BTC/USDT", "timeframe": "7m"}},
		{"place_trade", map[string]any{"pair": "BTC/USDT", "side": "hodl"}},
		{"place_trade", map[string]any{"pair": "BTC/USDT", "side": "buy", "price": -1}},
		{"place_trade", map[string]any{"pair": "BTC/USDT", "side": "buy", "amount": -5}},
		{"delete_lock", map[string]any{"lock_id": 0}},
		{"add_blacklist", map[string]any{"pair": ""}},
	}
	for _, tc := range cases {
		res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: tc.name, Arguments: tc.args})
		if err != nil {
			t.Fatalf("%s: unexpected protocol error: %v", tc.name, err)
		}
		if !res.IsError {
			t.Fatalf("%s %v: expected tool-level validation error", tc.name, tc.args)
		}
	}
	if env.upstream.count() != 0 {
		t.Fatalf("invalid input reached upstream: %v", env.upstream.hits)
	}
}

func TestToolsLiveSurfacesRejectionVerbatim(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeLive, map[string]cannedResponse{
		"/show_config": {status: http.StatusOK, body: `{"trading_mode":"spot"}`},
		"/forceenter":  {status: http.StatusBadRequest, body: `{"detail":"Pair XRP/USDT is not in the whitelist"}`},
	})
	session := connectEnv(t, ctx, env)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "place_trade",
		Arguments: map[string]any{"pair": "XRP/USDT", "side": "long"},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected rejection to surface as a tool error")
	}
	if !strings.Contains(toolText(res), "Pair XRP/USDT is not in the whitelist") {
		t.Fatalf("expected verbatim rejection, got %q", toolText(res))
	}
	if env.upstream.count() != 2 {
		t.Fatalf("expected show_config and forceenter, got %v", env.upstream.hits)
	}
	if len(env.journal.entries) != 1 || env.journal.entries[0].Outcome != domain.OutcomeError {
		t.Fatalf("expected error journal entry, got %+v", env.journal.entries)
	}
}

func TestToolsLiveAuthenticationFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeLive, map[string]cannedResponse{
		"/profit": {status: http.StatusUnauthorized, body: `{"detail":"Unauthorized"}`},
	})
	session := connectEnv(t, ctx, env)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "fetch_profit", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError || !strings.Contains(toolText(res), domain.ErrAuthenticationFailed.Error()) {
		t.Fatalf("expected authentication failure, got %q", toolText(res))
	}
	if env.upstream.count() != 1 {
		t.Fatalf("expected exactly one upstream attempt, got %v", env.upstream.hits)
	}
}

func TestToolsLiveForwardsReads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	env := newTestEnv(t, domain.ModeLive, map[string]cannedResponse{
		"/trades": {status: http.StatusOK, body: `{"trades":[{"trade_id":7}],"trades_count":1}`},
	})
	session := connectEnv(t, ctx, env)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "fetch_trades", Arguments: map[string]any{"limit": 5}})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(res))
	}
	var out freqtradeOutput
	decodeToolJSON(t, res, &out)
	body, ok := out.Result.(map[string]any)
	if !ok || body["trades_count"] != float64(1) {
		t.Fatalf("expected upstream body passed through, got %#v", out.Result)
	}
	if out.Mode != domain.ModeLive {
		t.Fatalf("expected live mode, got %s", out.Mode)
	}
}

func TestToolsNilService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv := NewServer(nil, nil, ServerConfig{RequestTimeout: time.Second})
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "start_bot", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error without a service")
	}
}
