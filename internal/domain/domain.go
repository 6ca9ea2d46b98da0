package domain

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeDemo Mode = "demo"
	ModeLive Mode = "live"
)

func (m Mode) IsValid() bool {
	return m == ModeDemo || m == ModeLive
}

func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if mode == "" {
		return ModeDemo, nil
	}
	if !mode.IsValid() {
		return "", fmt.Errorf("unsupported trading mode: %s", raw)
	}
	return mode, nil
}

// TradeAction is what a place_trade side alias resolves to.
type TradeAction string

const (
	ActionEnterLong  TradeAction = "enter_long"
	ActionEnterShort TradeAction = "enter_short"
	ActionExit       TradeAction = "exit"
)

// IsEntry reports whether the action opens a new position.
func (a TradeAction) IsEntry() bool {
	return a == ActionEnterLong || a == ActionEnterShort
}

// Direction returns the Freqtrade forceenter side for entry actions.
func (a TradeAction) Direction() string {
	switch a {
	case ActionEnterLong:
		return "long"
	case ActionEnterShort:
		return "short"
	default:
		return ""
	}
}

var (
	OpenLongAliases  = []string{"buy", "long", "enter_long"}
	OpenShortAliases = []string{"short", "enter_short"}
	CloseAliases     = []string{"sell", "exit", "close", "exit_long", "exit_short"}
)

func ParseSide(side string) (TradeAction, error) {
	normalized := strings.ToLower(strings.TrimSpace(side))
	if normalized == "" {
		return "", fmt.Errorf("side is required")
	}
	for _, alias := range OpenLongAliases {
		if normalized == alias {
			return ActionEnterLong, nil
		}
	}
	for _, alias := range OpenShortAliases {
		if normalized == alias {
			return ActionEnterShort, nil
		}
	}
	for _, alias := range CloseAliases {
		if normalized == alias {
			return ActionExit, nil
		}
	}
	return "", fmt.Errorf("invalid side %q: use one of buy/long/enter_long, short/enter_short, sell/exit/close", side)
}

const (
	EnterTagMarket = "mcp-market"
	EnterTagLimit  = "mcp-limit"
)

// TradeRequest is a validated place_trade invocation.
type TradeRequest struct {
	Pair     string
	Action   TradeAction
	Amount   float64
	Price    *float64
	EnterTag string
}

// ResolvedEnterTag returns the caller's tag or the order-type default.
func (r TradeRequest) ResolvedEnterTag() string {
	if tag := strings.TrimSpace(r.EnterTag); tag != "" {
		return tag
	}
	if r.Price != nil {
		return EnterTagLimit
	}
	return EnterTagMarket
}

var SupportedTimeframes = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w"}

// TimeframeDuration returns the candle width for a supported timeframe.
func TimeframeDuration(timeframe string) (time.Duration, bool) {
	switch timeframe {
	case "1m":
		return time.Minute, true
	case "3m":
		return 3 * time.Minute, true
	case "5m":
		return 5 * time.Minute, true
	case "15m":
		return 15 * time.Minute, true
	case "30m":
		return 30 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "2h":
		return 2 * time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "6h":
		return 6 * time.Hour, true
	case "8h":
		return 8 * time.Hour, true
	case "12h":
		return 12 * time.Hour, true
	case "1d":
		return 24 * time.Hour, true
	case "3d":
		return 72 * time.Hour, true
	case "1w":
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// SplitPair splits "BTC/USDT" or "BTC/USDT:USDT" into base, quote and settle currency.
func SplitPair(pair string) (base, quote, settle string, ok bool) {
	base, rest, found := strings.Cut(pair, "/")
	if !found || base == "" || rest == "" {
		return "", "", "", false
	}
	quote, settle, _ = strings.Cut(rest, ":")
	if quote == "" {
		return "", "", "", false
	}
	return base, quote, settle, true
}

// FuturesPair appends the settle currency when the pair has none.
func FuturesPair(pair string) string {
	_, quote, settle, ok := SplitPair(pair)
	if !ok || settle != "" {
		return pair
	}
	return pair + ":" + quote
}

type JournalOutcome string

const (
	OutcomeOK    JournalOutcome = "ok"
	OutcomeError JournalOutcome = "error"
)

// JournalEntry records one state-changing tool invocation.
type JournalEntry struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Mode      Mode           `json:"mode"`
	Pair      string         `json:"pair,omitempty"`
	Side      string         `json:"side,omitempty"`
	Amount    float64        `json:"amount,omitempty"`
	Outcome   JournalOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
