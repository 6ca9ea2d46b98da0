package handler

import (
	"context"
	"net/http"
	"time"

	"freqtrade-mcp/internal/domain"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const healthPingTimeout = 3 * time.Second

// Pinger reports the trading mode and whether Freqtrade answers.
type Pinger interface {
	Mode() domain.Mode
	Ping(ctx context.Context) error
}

type Handler struct {
	tracer  trace.Tracer
	trading Pinger
	metrics http.Handler
	mcp     http.Handler
}

func New(tracer trace.Tracer, trading Pinger, metrics http.Handler, mcp http.Handler) *Handler {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("handler")
	}
	return &Handler{
		tracer:  tracer,
		trading: trading,
		metrics: metrics,
		mcp:     mcp,
	}
}

// NewRouter builds the gin engine serving the HTTP transport.
func NewRouter(serviceName string, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  allowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{"Authorization", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID"},
			ExposeHeaders: []string{"Mcp-Session-Id"},
			MaxAge:        12 * time.Hour,
		}))
	}
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
	if h.mcp != nil {
		r.Any("/mcp", gin.WrapH(h.mcp))
	}
}

// Health returns ok in demo mode. In live mode it also pings the Freqtrade API.
func (h *Handler) Health(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.Health")
	defer span.End()

	if h.trading == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": domain.ErrNotConfigured.Error()})
		return
	}

	mode := h.trading.Mode()
	span.SetAttributes(attribute.String("trading.mode", string(mode)))
	if mode != domain.ModeLive {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	if err := h.trading.Ping(pingCtx); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "degraded",
			"mode":      mode,
			"freqtrade": "unreachable",
			"error":     err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode, "freqtrade": "reachable"})
}
