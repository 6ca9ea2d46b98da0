package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultServerName     = "FreqtradeMCP"
	defaultServerVersion  = "0.1.0"
)

type ServerConfig struct {
	Name           string
	Version        string
	RequestTimeout time.Duration
	// APIURL is shown by the freqtrade://mode resource in live mode.
	APIURL string
	Logger *slog.Logger
}

func NewServer(tracer trace.Tracer, svc TradingService, cfg ServerConfig) *sdkmcp.Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultServerName
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = defaultServerVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    name,
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: "Use these tools to inspect and control a Freqtrade bot. Check freqtrade://mode first: in demo mode every call is simulated locally.",
		Logger:       logger,
	})

	srv.AddReceivingMiddleware(timeoutMiddleware(requestTimeout))
	if tracer != nil {
		srv.AddReceivingMiddleware(tracingMiddleware(tracer))
	}

	registerTools(srv, svc)
	registerResources(srv, svc, cfg.APIURL)
	registerPrompts(srv, svc)
	return srv
}

func NewHTTPTransportHandler(server *sdkmcp.Server, cfg HTTPHandlerConfig) http.Handler {
	base := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{})
	return wrapHTTPHandler(base, cfg)
}

func timeoutMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if timeout <= 0 {
				return next(ctx, method, req)
			}
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(timeoutCtx, method, req)
		}
	}
}

func tracingMiddleware(tracer trace.Tracer) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			spanName := mcpSpanName(method, req)
			ctx, span := tracer.Start(ctx, spanName)
			span.SetAttributes(attribute.String("mcp.method", method))
			defer span.End()

			switch r := req.(type) {
			case *sdkmcp.CallToolRequest:
				span.SetAttributes(attribute.String("mcp.tool", strings.TrimSpace(r.Params.Name)))
			case *sdkmcp.ReadResourceRequest:
				span.SetAttributes(attribute.String("mcp.resource.uri", strings.TrimSpace(r.Params.URI)))
			case *sdkmcp.GetPromptRequest:
				span.SetAttributes(attribute.String("mcp.prompt", strings.TrimSpace(r.Params.Name)))
			}

			result, err := next(ctx, method, req)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}

func mcpSpanName(method string, req sdkmcp.Request) string {
	switch method {
	case "tools/call":
		if callReq, ok := req.(*sdkmcp.CallToolRequest); ok {
			name := strings.TrimSpace(callReq.Params.Name)
			if name != "" {
				return "mcp.tool." + strings.ReplaceAll(name, "/", ".")
			}
		}
		return "mcp.tool.call"
	case "resources/read":
		return "mcp.resource.read"
	case "prompts/get":
		return "mcp.prompt.get"
	default:
		return "mcp." + strings.ReplaceAll(method, "/", ".")
	}
}
