package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const analyzeTradeCandles = 100

func registerPrompts(server *mcp.Server, svc TradingService) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "analyze_trade",
		Description: "Analyze the recent performance of a pair using its market data",
		Arguments: []*mcp.PromptArgument{
			{Name: "pair", Description: "trading pair, e.g. BTC/USDT", Required: true},
			{Name: "timeframe", Description: "candle timeframe, e.g. 1h", Required: true},
		},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		if svc == nil {
			return nil, errServiceUnavailable
		}
		pair, err := normalizePair(req.Params.Arguments["pair"])
		if err != nil {
			return nil, err
		}
		timeframe, err := normalizeTimeframe(req.Params.Arguments["timeframe"])
		if err != nil {
			return nil, err
		}

		data, err := svc.FetchMarketData(ctx, pair, timeframe, analyzeTradeCandles)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}

		return &mcp.GetPromptResult{
			Description: fmt.Sprintf("Analysis of %s on %s", pair, timeframe),
			Messages: []*mcp.PromptMessage{
				userMessage(fmt.Sprintf("Analyze the recent performance of %s over %s.", pair, timeframe)),
				userMessage("Market data: " + string(body)),
				{Role: "assistant", Content: &mcp.TextContent{Text: fmt.Sprintf("I'll analyze the market data for %s and provide insights.", pair)}},
			},
		}, nil
	})

	server.AddPrompt(&mcp.Prompt{
		Name:        "trading_strategy",
		Description: "Suggest a trading strategy from the current bot status and profit",
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		if svc == nil {
			return nil, errServiceUnavailable
		}
		status, err := svc.FetchBotStatus(ctx)
		if err != nil {
			return nil, err
		}
		profit, err := svc.FetchProfit(ctx)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(map[string]any{"status": status, "profit": profit, "mode": svc.Mode()})
		if err != nil {
			return nil, err
		}

		return &mcp.GetPromptResult{
			Description: "Trading strategy suggestion",
			Messages: []*mcp.PromptMessage{
				userMessage("Based on the current bot status, profit, and market conditions, suggest a trading strategy."),
				userMessage("Bot state: " + string(body)),
			},
		}, nil
	})
}

func userMessage(text string) *mcp.PromptMessage {
	return &mcp.PromptMessage{Role: "user", Content: &mcp.TextContent{Text: text}}
}
