package freqtrade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"freqtrade-mcp/internal/domain"
)

// PlaceTrade opens a position via /forceenter or closes every open trade on the pair via /forceexit.
func (c *Client) PlaceTrade(ctx context.Context, req domain.TradeRequest) (any, error) {
	pair, err := c.resolvePair(ctx, req.Pair)
	if err != nil {
		return nil, err
	}

	if req.Action.IsEntry() {
		body := map[string]any{
			"pair":      pair,
			"side":      req.Action.Direction(),
			"entry_tag": req.ResolvedEnterTag(),
		}
		if req.Price != nil {
			body["price"] = *req.Price
		}
		if req.Amount > 0 {
			body["stakeamount"] = req.Amount
		}
		return c.do(ctx, http.MethodPost, "/forceenter", nil, body)
	}

	ids, err := c.openTradeIDs(ctx, req.Pair, pair)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no open trade for %s", req.Pair)
	}

	results := make([]any, 0, len(ids))
	for _, id := range ids {
		body := map[string]any{"tradeid": strconv.Itoa(id)}
		if req.Amount > 0 {
			body["amount"] = req.Amount
		}
		res, err := c.do(ctx, http.MethodPost, "/forceexit", nil, body)
		if err != nil {
			return nil, fmt.Errorf("force exit trade %d: %w", id, err)
		}
		results = append(results, res)
	}
	return map[string]any{"pair": pair, "exited_trade_ids": ids, "results": results}, nil
}

// resolvePair appends the settle currency when the bot trades futures. A rejected
// /show_config leaves the pair unchanged; transport and auth failures abort.
func (c *Client) resolvePair(ctx context.Context, pair string) (string, error) {
	cfg, err := c.ShowConfig(ctx)
	if err != nil {
		if IsAPIError(err) {
			return pair, nil
		}
		return "", err
	}
	if tradingMode(cfg) == "futures" {
		return domain.FuturesPair(pair), nil
	}
	return pair, nil
}

func tradingMode(cfg any) string {
	m, ok := cfg.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"trading_mode", "trading-mode"} {
		if v, ok := m[key].(string); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

type openTrade struct {
	TradeID int    `json:"trade_id"`
	Pair    string `json:"pair"`
	IsOpen  bool   `json:"is_open"`
}

func (c *Client) openTradeIDs(ctx context.Context, pairs ...string) ([]int, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	var trades []openTrade
	if err := json.Unmarshal(raw, &trades); err != nil {
		return nil, fmt.Errorf("decode /status response: %w", err)
	}

	ids := make([]int, 0, 1)
	for _, t := range trades {
		if !t.IsOpen {
			continue
		}
		for _, pair := range pairs {
			if t.Pair == pair {
				ids = append(ids, t.TradeID)
				break
			}
		}
	}
	return ids, nil
}
