package mcp

import (
	"context"

	"freqtrade-mcp/internal/domain"
)

// TradingService exposes the Freqtrade operations behind the tools.
type TradingService interface {
	Mode() domain.Mode

	FetchMarketData(ctx context.Context, pair, timeframe string, limit int) (any, error)
	PlaceTrade(ctx context.Context, req domain.TradeRequest, side string) (any, error)
	StartBot(ctx context.Context) (any, error)
	StopBot(ctx context.Context) (any, error)
	ReloadConfig(ctx context.Context) (any, error)
	FetchProfit(ctx context.Context) (any, error)
	FetchPerformance(ctx context.Context) (any, error)
	FetchBotStatus(ctx context.Context) (any, error)
	FetchBalance(ctx context.Context) (any, error)
	FetchWhitelist(ctx context.Context) (any, error)
	FetchBlacklist(ctx context.Context) (any, error)
	AddBlacklist(ctx context.Context, pair string) (any, error)
	DeleteBlacklist(ctx context.Context, pair string) (any, error)
	FetchTrades(ctx context.Context, limit int) (any, error)
	FetchConfig(ctx context.Context) (any, error)
	FetchLocks(ctx context.Context) (any, error)
	DeleteLock(ctx context.Context, lockID int) (any, error)

	RecentJournal(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}
