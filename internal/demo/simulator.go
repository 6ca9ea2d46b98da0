// Package demo serves every Freqtrade operation from local state so the adapter can run without
// a Freqtrade instance. Nothing in this package performs network I/O.
package demo

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"freqtrade-mcp/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultCandles = 100
	maxCandles     = 1500
	stakeCurrency  = "USDT"
	paperBalance   = 1000.0
)

type simTrade struct {
	ID        int
	Pair      string
	Direction string
	Stake     float64
	OpenRate  float64
	OpenedAt  time.Time
	ClosedAt  *time.Time
	CloseRate float64
	EnterTag  string
}

// Simulator is a concurrency-safe stand-in for a dry-run Freqtrade bot.
type Simulator struct {
	mu        sync.Mutex
	now       func() time.Time
	running   bool
	nextID    int
	trades    []*simTrade
	blacklist []string
	whitelist []string
}

func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{
		now:       now,
		nextID:    1,
		whitelist: []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT", "XRP/USDT"},
	}
}

func (s *Simulator) Ping(ctx context.Context) error {
	return nil
}

// PairCandles returns deterministic candles: the same pair and timeframe always produce the same series shape.
func (s *Simulator) PairCandles(ctx context.Context, pair, timeframe string, limit int) (any, error) {
	width, ok := domain.TimeframeDuration(timeframe)
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}
	if limit <= 0 {
		limit = defaultCandles
	}
	if limit > maxCandles {
		limit = maxCandles
	}

	end := s.now().UTC().Truncate(width)
	start := end.Add(-time.Duration(limit-1) * width)
	data := make([][]any, 0, limit)
	for i := 0; i < limit; i++ {
		openTime := start.Add(time.Duration(i) * width)
		o, h, l, c, v := syntheticOHLCV(pair, timeframe, openTime.Unix()/int64(width/time.Second))
		data = append(data, []any{openTime.Format("2006-01-02 15:04:05"), o, h, l, c, v})
	}

	return map[string]any{
		"pair":           pair,
		"timeframe":      timeframe,
		"columns":        []string{"date", "open", "high", "low", "close", "volume"},
		"data":           data,
		"length":         len(data),
		"data_start":     start.Format("2006-01-02 15:04:05"),
		"data_stop":      end.Format("2006-01-02 15:04:05"),
		"dry_run":        true,
		"demo":           true,
		"stake_currency": stakeCurrency,
	}, nil
}

func syntheticOHLCV(pair, timeframe string, step int64) (open, high, low, close, volume float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pair))
	seed := float64(h.Sum64()%10_000) + 50
	_, _ = h.Write([]byte(timeframe))
	phase := float64(h.Sum64() % 360)

	x := float64(step) + phase
	open = round(seed * (1 + 0.05*math.Sin(x/12)))
	close = round(seed * (1 + 0.05*math.Sin((x+1)/12)))
	spread := seed * 0.01 * (1 + math.Abs(math.Cos(x/5)))
	high = round(math.Max(open, close) + spread)
	low = round(math.Min(open, close) - spread)
	volume = round(1000 * (1.5 + math.Sin(x/3)))
	return open, high, low, close, volume
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func (s *Simulator) lastClose(pair string) float64 {
	_, _, _, c, _ := syntheticOHLCV(pair, "1h", s.now().Unix()/3600)
	return c
}

// PlaceTrade records a simulated entry or closes the simulated open trades on the pair.
func (s *Simulator) PlaceTrade(ctx context.Context, req domain.TradeRequest) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	ack := map[string]any{
		"order_id":  uuid.NewString(),
		"pair":      req.Pair,
		"dry_run":   true,
		"demo":      true,
		"timestamp": now.Format(time.RFC3339),
	}

	if req.Action.IsEntry() {
		rate := s.lastClose(req.Pair)
		if req.Price != nil {
			rate = *req.Price
		}
		trade := &simTrade{
			ID:        s.nextID,
			Pair:      req.Pair,
			Direction: req.Action.Direction(),
			Stake:     req.Amount,
			OpenRate:  rate,
			OpenedAt:  now,
			EnterTag:  req.ResolvedEnterTag(),
		}
		s.nextID++
		s.trades = append(s.trades, trade)

		ack["status"] = "simulated"
		ack["trade_id"] = trade.ID
		ack["side"] = trade.Direction
		ack["open_rate"] = trade.OpenRate
		ack["stake_amount"] = trade.Stake
		ack["enter_tag"] = trade.EnterTag
		return ack, nil
	}

	closed := make([]int, 0, 1)
	for _, t := range s.trades {
		if t.Pair != req.Pair || t.ClosedAt != nil {
			continue
		}
		closedAt := now
		t.ClosedAt = &closedAt
		t.CloseRate = s.lastClose(req.Pair)
		closed = append(closed, t.ID)
	}
	ack["status"] = "simulated"
	ack["exited_trade_ids"] = closed
	if len(closed) == 0 {
		ack["note"] = "no open trade"
	}
	return ack, nil
}

func (s *Simulator) StartBot(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return map[string]any{"status": "already running", "demo": true}, nil
	}
	s.running = true
	return map[string]any{"status": "starting trader ...", "demo": true}, nil
}

func (s *Simulator) StopBot(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return map[string]any{"status": "already stopped", "demo": true}, nil
	}
	s.running = false
	return map[string]any{"status": "stopping trader ...", "demo": true}, nil
}

func (s *Simulator) ReloadConfig(ctx context.Context) (any, error) {
	return map[string]any{"status": "Reloading config ...", "demo": true}, nil
}

// Running reports the simulated bot state shown by ShowConfig.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) Status(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.trades))
	for _, t := range s.trades {
		if t.ClosedAt != nil {
			continue
		}
		current := s.lastClose(t.Pair)
		out = append(out, map[string]any{
			"trade_id":     t.ID,
			"pair":         t.Pair,
			"is_open":      true,
			"is_short":     t.Direction == "short",
			"open_rate":    t.OpenRate,
			"current_rate": current,
			"stake_amount": t.Stake,
			"profit_ratio": profitRatio(t, current),
			"open_date":    t.OpenedAt.Format("2006-01-02 15:04:05"),
			"enter_tag":    t.EnterTag,
		})
	}
	return out, nil
}

func profitRatio(t *simTrade, rate float64) float64 {
	if t.OpenRate == 0 {
		return 0
	}
	ratio := (rate - t.OpenRate) / t.OpenRate
	if t.Direction == "short" {
		ratio = -ratio
	}
	return round(ratio)
}

func (s *Simulator) Trades(ctx context.Context, limit int) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]map[string]any, 0, len(s.trades))
	for _, t := range s.trades {
		if t.ClosedAt == nil {
			continue
		}
		list = append(list, map[string]any{
			"trade_id":     t.ID,
			"pair":         t.Pair,
			"is_open":      false,
			"is_short":     t.Direction == "short",
			"open_rate":    t.OpenRate,
			"close_rate":   t.CloseRate,
			"stake_amount": t.Stake,
			"profit_ratio": profitRatio(t, t.CloseRate),
			"close_date":   t.ClosedAt.Format("2006-01-02 15:04:05"),
		})
	}
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return map[string]any{"trades": list, "trades_count": len(list), "total_trades": len(list)}, nil
}

func (s *Simulator) Profit(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	var profit float64
	for _, t := range s.trades {
		if t.ClosedAt == nil {
			continue
		}
		closed++
		profit += t.Stake * profitRatio(t, t.CloseRate)
	}
	return map[string]any{
		"profit_closed_coin": round(profit),
		"profit_all_coin":    round(profit),
		"trade_count":        len(s.trades),
		"closed_trade_count": closed,
		"stake_currency":     stakeCurrency,
		"demo":               true,
	}, nil
}

func (s *Simulator) Performance(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type perf struct {
		profit float64
		count  int
	}
	byPair := make(map[string]*perf)
	for _, t := range s.trades {
		if t.ClosedAt == nil {
			continue
		}
		p, ok := byPair[t.Pair]
		if !ok {
			p = &perf{}
			byPair[t.Pair] = p
		}
		p.count++
		p.profit += profitRatio(t, t.CloseRate)
	}

	pairs := make([]string, 0, len(byPair))
	for pair := range byPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	out := make([]map[string]any, 0, len(pairs))
	for _, pair := range pairs {
		p := byPair[pair]
		out = append(out, map[string]any{
			"pair":         pair,
			"profit_ratio": round(p.profit),
			"count":        p.count,
		})
	}
	return out, nil
}

func (s *Simulator) Balance(ctx context.Context) (any, error) {
	return map[string]any{
		"currencies": []map[string]any{{
			"currency": stakeCurrency,
			"free":     paperBalance,
			"balance":  paperBalance,
			"used":     0.0,
		}},
		"total":   paperBalance,
		"symbol":  stakeCurrency,
		"value":   paperBalance,
		"stake":   stakeCurrency,
		"note":    "Simulated balance (demo mode)",
		"dry_run": true,
	}, nil
}

func (s *Simulator) Whitelist(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]string(nil), s.whitelist...)
	return map[string]any{"whitelist": list, "length": len(list), "method": []string{"StaticPairList"}}, nil
}

func (s *Simulator) Blacklist(ctx context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklistPayload(), nil
}

func (s *Simulator) AddBlacklist(ctx context.Context, pair string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.blacklist {
		if p == pair {
			return s.blacklistPayload(), nil
		}
	}
	s.blacklist = append(s.blacklist, pair)
	return s.blacklistPayload(), nil
}

func (s *Simulator) DeleteBlacklist(ctx context.Context, pair string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.blacklist[:0]
	for _, p := range s.blacklist {
		if p != pair {
			kept = append(kept, p)
		}
	}
	s.blacklist = kept
	return s.blacklistPayload(), nil
}

func (s *Simulator) blacklistPayload() map[string]any {
	list := append([]string(nil), s.blacklist...)
	return map[string]any{"blacklist": list, "length": len(list), "method": []string{"StaticPairList"}}
}

func (s *Simulator) ShowConfig(ctx context.Context) (any, error) {
	state := "stopped"
	if s.Running() {
		state = "running"
	}
	return map[string]any{
		"dry_run":        true,
		"trading_mode":   "spot",
		"stake_currency": stakeCurrency,
		"strategy":       "DemoStrategy",
		"state":          state,
		"runmode":        "dry_run",
		"demo":           true,
	}, nil
}

func (s *Simulator) Locks(ctx context.Context) (any, error) {
	return map[string]any{"lock_count": 0, "locks": []any{}}, nil
}

// DeleteLock acknowledges without deleting anything; the simulator never creates locks.
func (s *Simulator) DeleteLock(ctx context.Context, lockID int) (any, error) {
	return map[string]any{
		"lock_count":      0,
		"locks":           []any{},
		"deleted_lock_id": lockID,
		"note":            "no such lock",
		"demo":            true,
	}, nil
}
