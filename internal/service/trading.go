package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"freqtrade-mcp/internal/domain"
	"freqtrade-mcp/internal/freqtrade"
	"freqtrade-mcp/internal/journal"
	"freqtrade-mcp/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Gateway is the set of Freqtrade operations. Implemented by freqtrade.Client (live)
// and demo.Simulator (demo).
type Gateway interface {
	Ping(ctx context.Context) error
	PairCandles(ctx context.Context, pair, timeframe string, limit int) (any, error)
	PlaceTrade(ctx context.Context, req domain.TradeRequest) (any, error)
	StartBot(ctx context.Context) (any, error)
	StopBot(ctx context.Context) (any, error)
	ReloadConfig(ctx context.Context) (any, error)
	Status(ctx context.Context) (any, error)
	Profit(ctx context.Context) (any, error)
	Performance(ctx context.Context) (any, error)
	Balance(ctx context.Context) (any, error)
	Whitelist(ctx context.Context) (any, error)
	Blacklist(ctx context.Context) (any, error)
	AddBlacklist(ctx context.Context, pair string) (any, error)
	DeleteBlacklist(ctx context.Context, pair string) (any, error)
	Trades(ctx context.Context, limit int) (any, error)
	ShowConfig(ctx context.Context) (any, error)
	Locks(ctx context.Context) (any, error)
	DeleteLock(ctx context.Context, lockID int) (any, error)
}

type TradingOptions struct {
	Journal journal.Recorder
	Metrics *metrics.ToolMetrics
	Logger  *slog.Logger
}

// Trading routes tool operations to the live gateway or the simulator. The mode is fixed at
// construction; in demo mode the live gateway is never called.
type Trading struct {
	tracer  trace.Tracer
	mode    domain.Mode
	live    Gateway
	sim     Gateway
	journal journal.Recorder
	metrics *metrics.ToolMetrics
	logger  *slog.Logger
}

func NewTrading(tracer trace.Tracer, mode domain.Mode, live Gateway, sim Gateway, opts TradingOptions) *Trading {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("service")
	}
	recorder := opts.Journal
	if recorder == nil {
		recorder = journal.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Trading{
		tracer:  tracer,
		mode:    mode,
		live:    live,
		sim:     sim,
		journal: recorder,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

func (s *Trading) Mode() domain.Mode {
	if s == nil {
		return ""
	}
	return s.mode
}

func (s *Trading) gateway() Gateway {
	if s == nil {
		return nil
	}
	if s.mode == domain.ModeDemo {
		return s.sim
	}
	if s.mode == domain.ModeLive {
		return s.live
	}
	return nil
}

func (s *Trading) Ping(ctx context.Context) error {
	gw := s.gateway()
	if gw == nil {
		return domain.ErrNotConfigured
	}
	return gw.Ping(ctx)
}

func (s *Trading) FetchMarketData(ctx context.Context, pair, timeframe string, limit int) (any, error) {
	return s.call(ctx, "fetch_market_data", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.PairCandles(ctx, pair, timeframe, limit)
	})
}

func (s *Trading) PlaceTrade(ctx context.Context, req domain.TradeRequest, side string) (any, error) {
	entry := s.newEntry("place_trade")
	entry.Pair = req.Pair
	entry.Side = side
	entry.Amount = req.Amount
	return s.call(ctx, "place_trade", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.PlaceTrade(ctx, req)
	})
}

func (s *Trading) StartBot(ctx context.Context) (any, error) {
	entry := s.newEntry("start_bot")
	return s.call(ctx, "start_bot", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.StartBot(ctx)
	})
}

func (s *Trading) StopBot(ctx context.Context) (any, error) {
	entry := s.newEntry("stop_bot")
	return s.call(ctx, "stop_bot", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.StopBot(ctx)
	})
}

func (s *Trading) ReloadConfig(ctx context.Context) (any, error) {
	entry := s.newEntry("reload_config")
	return s.call(ctx, "reload_config", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.ReloadConfig(ctx)
	})
}

func (s *Trading) AddBlacklist(ctx context.Context, pair string) (any, error) {
	entry := s.newEntry("add_blacklist")
	entry.Pair = pair
	return s.call(ctx, "add_blacklist", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.AddBlacklist(ctx, pair)
	})
}

func (s *Trading) DeleteBlacklist(ctx context.Context, pair string) (any, error) {
	entry := s.newEntry("delete_blacklist")
	entry.Pair = pair
	return s.call(ctx, "delete_blacklist", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.DeleteBlacklist(ctx, pair)
	})
}

func (s *Trading) DeleteLock(ctx context.Context, lockID int) (any, error) {
	entry := s.newEntry("delete_lock")
	return s.call(ctx, "delete_lock", &entry, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.DeleteLock(ctx, lockID)
	})
}

func (s *Trading) FetchBotStatus(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_bot_status", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Status(ctx)
	})
}

func (s *Trading) FetchProfit(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_profit", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Profit(ctx)
	})
}

func (s *Trading) FetchPerformance(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_performance", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Performance(ctx)
	})
}

func (s *Trading) FetchBalance(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_balance", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Balance(ctx)
	})
}

func (s *Trading) FetchWhitelist(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_whitelist", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Whitelist(ctx)
	})
}

func (s *Trading) FetchBlacklist(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_blacklist", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Blacklist(ctx)
	})
}

func (s *Trading) FetchTrades(ctx context.Context, limit int) (any, error) {
	return s.call(ctx, "fetch_trades", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Trades(ctx, limit)
	})
}

func (s *Trading) FetchConfig(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_config", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.ShowConfig(ctx)
	})
}

func (s *Trading) FetchLocks(ctx context.Context) (any, error) {
	return s.call(ctx, "fetch_locks", nil, func(ctx context.Context, gw Gateway) (any, error) {
		return gw.Locks(ctx)
	})
}

func (s *Trading) RecentJournal(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if s == nil {
		return nil, domain.ErrNotConfigured
	}
	return s.journal.Recent(ctx, limit)
}

func (s *Trading) newEntry(tool string) domain.JournalEntry {
	if s == nil {
		return domain.JournalEntry{Tool: tool}
	}
	return journal.NewEntry(tool, s.mode)
}

func (s *Trading) call(ctx context.Context, tool string, entry *domain.JournalEntry, fn func(context.Context, Gateway) (any, error)) (any, error) {
	gw := s.gateway()
	if gw == nil {
		return nil, domain.ErrNotConfigured
	}

	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "trading-service."+tool)
	defer span.End()
	span.SetAttributes(
		attribute.String("mcp.tool", tool),
		attribute.String("trading.mode", string(s.mode)),
	)

	result, err := fn(ctx, gw)
	class := ErrorClass(err)
	s.metrics.Observe(tool, string(s.mode), started, class)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("tool call failed", "tool", tool, "mode", s.mode, "class", class, "error", err)
	} else {
		s.logger.Debug("tool call completed", "tool", tool, "mode", s.mode, "duration", time.Since(started))
	}

	if entry != nil {
		if err != nil {
			entry.Outcome = domain.OutcomeError
			entry.Error = err.Error()
		}
		if jerr := s.journal.Record(ctx, *entry); jerr != nil {
			s.logger.Error("journal write failed", "tool", tool, "error", jerr)
		}
	}
	return result, err
}

// ErrorClass buckets an error for metrics and logs.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return "authentication_failed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case freqtrade.IsAPIError(err):
		return "upstream_rejected"
	default:
		return "invalid_request"
	}
}
