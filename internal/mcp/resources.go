package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"freqtrade-mcp/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultJournalLimit = 50

func registerResources(server *mcp.Server, svc TradingService, apiURL string) {
	server.AddResource(&mcp.Resource{
		URI:         "freqtrade://mode",
		Name:        "trading-mode",
		Description: "Trading mode of this server and the Freqtrade API it targets",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc == nil {
			return nil, errServiceUnavailable
		}
		mode := svc.Mode()
		out := modeOutput{Mode: mode, Forward: mode == domain.ModeLive}
		if mode == domain.ModeLive {
			out.APIURL = apiURL
		}
		return jsonResource(req.Params.URI, out)
	})

	server.AddResource(&mcp.Resource{
		URI:         "freqtrade://sides",
		Name:        "trade-sides",
		Description: "Side values accepted by place_trade",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_ = ctx
		return jsonResource(req.Params.URI, sidesOutput{
			OpenLong:  domain.OpenLongAliases,
			OpenShort: domain.OpenShortAliases,
			Close:     domain.CloseAliases,
		})
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "journal://recent{?limit}",
		Name:        "journal-recent",
		Description: "Recent state-changing tool invocations, newest first; optional limit query param",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if svc == nil {
			return nil, errServiceUnavailable
		}

		parsed, err := url.Parse(req.Params.URI)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if parsed.Scheme != "journal" || parsed.Host != "recent" {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}

		limit := defaultJournalLimit
		if rawLimit := strings.TrimSpace(parsed.Query().Get("limit")); rawLimit != "" {
			n, err := strconv.Atoi(rawLimit)
			if err != nil {
				return nil, fmt.Errorf("invalid limit: %s", rawLimit)
			}
			limit = n
		}

		entries, err := svc.RecentJournal(ctx, limit)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []domain.JournalEntry{}
		}
		return jsonResource(req.Params.URI, journalOutput{Entries: entries})
	})
}

func jsonResource(uri string, payload any) (*mcp.ReadResourceResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(body),
		}},
	}, nil
}
