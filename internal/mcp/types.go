package mcp

import (
	"fmt"
	"strings"

	"freqtrade-mcp/internal/domain"
)

const (
	defaultCandleLimit = 100
	maxCandleLimit     = 1500
	defaultTradeLimit  = 50
	maxTradeLimit      = 500
)

type emptyInput struct{}

// freqtradeOutput wraps the Freqtrade JSON body untouched.
type freqtradeOutput struct {
	Mode   domain.Mode `json:"mode"`
	Result any         `json:"result"`
}

type fetchMarketDataInput struct {
	Pair      string `json:"pair" jsonschema:"trading pair, e.g. BTC/USDT or BTC/USDT:USDT"`
	Timeframe string `json:"timeframe" jsonschema:"candle timeframe: 1m, 5m, 15m, 1h, 4h, 1d, ..."`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of candles to return, max 1500"`
}

type fetchMarketDataOutput struct {
	Mode      domain.Mode `json:"mode"`
	Pair      string      `json:"pair"`
	Timeframe string      `json:"timeframe"`
	Data      any         `json:"data"`
}

type placeTradeInput struct {
	Pair     string   `json:"pair" jsonschema:"trading pair, e.g. BTC/USDT"`
	Side     string   `json:"side" jsonschema:"buy/long/enter_long, short/enter_short to open; sell/exit/close to close"`
	Amount   float64  `json:"amount,omitempty" jsonschema:"stake amount for entries, partial amount for exits; 0 uses the bot default"`
	Price    *float64 `json:"price,omitempty" jsonschema:"optional limit price; omitted places a market order"`
	EnterTag string   `json:"enter_tag,omitempty" jsonschema:"optional entry tag recorded by Freqtrade"`
}

type placeTradeOutput struct {
	Mode   domain.Mode `json:"mode"`
	Pair   string      `json:"pair"`
	Side   string      `json:"side"`
	Action string      `json:"action"`
	Result any         `json:"result"`
}

type fetchTradesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of trades to return, max 500"`
}

type pairInput struct {
	Pair string `json:"pair" jsonschema:"trading pair, e.g. BTC/USDT"`
}

type deleteLockInput struct {
	LockID int `json:"lock_id" jsonschema:"id of the pair lock to delete"`
}

type modeOutput struct {
	Mode    domain.Mode `json:"mode"`
	APIURL  string      `json:"api_url,omitempty"`
	Forward bool        `json:"forwards_upstream"`
}

type sidesOutput struct {
	OpenLong  []string `json:"open_long"`
	OpenShort []string `json:"open_short"`
	Close     []string `json:"close"`
}

type journalOutput struct {
	Entries []domain.JournalEntry `json:"entries"`
}

func normalizePair(pair string) (string, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return "", fmt.Errorf("pair is required")
	}
	if _, _, _, ok := domain.SplitPair(pair); !ok {
		return "", fmt.Errorf("invalid pair %q: expected BASE/QUOTE or BASE/QUOTE:SETTLE", pair)
	}
	return pair, nil
}

func normalizeTimeframe(timeframe string) (string, error) {
	timeframe = strings.TrimSpace(timeframe)
	if timeframe == "" {
		return "", fmt.Errorf("timeframe is required")
	}
	if _, ok := domain.TimeframeDuration(timeframe); !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	return timeframe, nil
}

func normalizeCandleLimit(limit int) int {
	if limit <= 0 {
		return defaultCandleLimit
	}
	if limit > maxCandleLimit {
		return maxCandleLimit
	}
	return limit
}

func normalizeTradeLimit(limit int) int {
	if limit <= 0 {
		return defaultTradeLimit
	}
	if limit > maxTradeLimit {
		return maxTradeLimit
	}
	return limit
}

func normalizeTradeRequest(in placeTradeInput) (domain.TradeRequest, error) {
	pair, err := normalizePair(in.Pair)
	if err != nil {
		return domain.TradeRequest{}, err
	}
	action, err := domain.ParseSide(in.Side)
	if err != nil {
		return domain.TradeRequest{}, err
	}
	if in.Amount < 0 {
		return domain.TradeRequest{}, fmt.Errorf("amount must be >= 0")
	}
	if in.Price != nil && *in.Price <= 0 {
		return domain.TradeRequest{}, fmt.Errorf("price must be > 0")
	}
	return domain.TradeRequest{
		Pair:     pair,
		Action:   action,
		Amount:   in.Amount,
		Price:    in.Price,
		EnterTag: strings.TrimSpace(in.EnterTag),
	}, nil
}

func normalizeLockID(id int) (int, error) {
	if id <= 0 {
		return 0, fmt.Errorf("lock_id must be a positive integer")
	}
	return id, nil
}
