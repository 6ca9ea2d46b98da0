package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errServiceUnavailable = fmt.Errorf("trading service unavailable")

func registerTools(server *mcp.Server, svc TradingService) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_market_data",
		Description: "Get OHLCV candles for a pair and timeframe from Freqtrade",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in fetchMarketDataInput) (*mcp.CallToolResult, fetchMarketDataOutput, error) {
		if svc == nil {
			return nil, fetchMarketDataOutput{}, errServiceUnavailable
		}
		pair, err := normalizePair(in.Pair)
		if err != nil {
			return nil, fetchMarketDataOutput{}, err
		}
		timeframe, err := normalizeTimeframe(in.Timeframe)
		if err != nil {
			return nil, fetchMarketDataOutput{}, err
		}

		data, err := svc.FetchMarketData(ctx, pair, timeframe, normalizeCandleLimit(in.Limit))
		if err != nil {
			return nil, fetchMarketDataOutput{}, err
		}
		return nil, fetchMarketDataOutput{Mode: svc.Mode(), Pair: pair, Timeframe: timeframe, Data: data}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "place_trade",
		Description: "Open or close a position. In demo mode the order is simulated and never sent to Freqtrade",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in placeTradeInput) (*mcp.CallToolResult, placeTradeOutput, error) {
		if svc == nil {
			return nil, placeTradeOutput{}, errServiceUnavailable
		}
		req, err := normalizeTradeRequest(in)
		if err != nil {
			return nil, placeTradeOutput{}, err
		}
		side := strings.ToLower(strings.TrimSpace(in.Side))

		result, err := svc.PlaceTrade(ctx, req, side)
		if err != nil {
			return nil, placeTradeOutput{}, err
		}
		return nil, placeTradeOutput{
			Mode:   svc.Mode(),
			Pair:   req.Pair,
			Side:   side,
			Action: string(req.Action),
			Result: result,
		}, nil
	})

	addNoArgTool(server, svc, "start_bot", "Start the Freqtrade bot", TradingService.StartBot)
	addNoArgTool(server, svc, "stop_bot", "Stop the Freqtrade bot", TradingService.StopBot)
	addNoArgTool(server, svc, "reload_config", "Reload the Freqtrade bot configuration", TradingService.ReloadConfig)
	addNoArgTool(server, svc, "fetch_profit", "Get the profit summary of the bot", TradingService.FetchProfit)
	addNoArgTool(server, svc, "fetch_performance", "Get per-pair performance of closed trades", TradingService.FetchPerformance)
	addNoArgTool(server, svc, "fetch_bot_status", "Get the open trades of the bot", TradingService.FetchBotStatus)
	addNoArgTool(server, svc, "fetch_balance", "Get the account balance per currency", TradingService.FetchBalance)
	addNoArgTool(server, svc, "fetch_whitelist", "Get the pairs the bot is allowed to trade", TradingService.FetchWhitelist)
	addNoArgTool(server, svc, "fetch_blacklist", "Get the pairs the bot must not trade", TradingService.FetchBlacklist)
	addNoArgTool(server, svc, "fetch_config", "Get the effective bot configuration", TradingService.FetchConfig)
	addNoArgTool(server, svc, "fetch_locks", "Get active pair locks", TradingService.FetchLocks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_trades",
		Description: "Get the most recent trades, newest last",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in fetchTradesInput) (*mcp.CallToolResult, freqtradeOutput, error) {
		if svc == nil {
			return nil, freqtradeOutput{}, errServiceUnavailable
		}
		result, err := svc.FetchTrades(ctx, normalizeTradeLimit(in.Limit))
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		return nil, freqtradeOutput{Mode: svc.Mode(), Result: result}, nil
	})

	addPairTool(server, svc, "add_blacklist", "Add a pair to the blacklist", TradingService.AddBlacklist)
	addPairTool(server, svc, "delete_blacklist", "Remove a pair from the blacklist", TradingService.DeleteBlacklist)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_lock",
		Description: "Delete a pair lock by id",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in deleteLockInput) (*mcp.CallToolResult, freqtradeOutput, error) {
		if svc == nil {
			return nil, freqtradeOutput{}, errServiceUnavailable
		}
		id, err := normalizeLockID(in.LockID)
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		result, err := svc.DeleteLock(ctx, id)
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		return nil, freqtradeOutput{Mode: svc.Mode(), Result: result}, nil
	})
}

func addNoArgTool(server *mcp.Server, svc TradingService, name, description string, call func(TradingService, context.Context) (any, error)) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, freqtradeOutput, error) {
		if svc == nil {
			return nil, freqtradeOutput{}, errServiceUnavailable
		}
		result, err := call(svc, ctx)
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		return nil, freqtradeOutput{Mode: svc.Mode(), Result: result}, nil
	})
}

func addPairTool(server *mcp.Server, svc TradingService, name, description string, call func(TradingService, context.Context, string) (any, error)) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in pairInput) (*mcp.CallToolResult, freqtradeOutput, error) {
		if svc == nil {
			return nil, freqtradeOutput{}, errServiceUnavailable
		}
		pair, err := normalizePair(in.Pair)
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		result, err := call(svc, ctx, pair)
		if err != nil {
			return nil, freqtradeOutput{}, err
		}
		return nil, freqtradeOutput{Mode: svc.Mode(), Result: result}, nil
	})
}
