package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"freqtrade-mcp/internal/cache"
	"freqtrade-mcp/internal/config"
	"freqtrade-mcp/internal/db"
	"freqtrade-mcp/internal/demo"
	"freqtrade-mcp/internal/domain"
	"freqtrade-mcp/internal/freqtrade"
	"freqtrade-mcp/internal/handler"
	"freqtrade-mcp/internal/job"
	"freqtrade-mcp/internal/journal"
	mcpserver "freqtrade-mcp/internal/mcp"
	"freqtrade-mcp/internal/metrics"
	"freqtrade-mcp/internal/service"
	"freqtrade-mcp/pkg/tracing"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMCPHTTPMaxBodyBytes int64 = 1 << 20 // 1MiB
	startupPingTimeout               = 5 * time.Second
	shutdownTimeout                  = 5 * time.Second
)

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.LoadFile
	initTracerFunc       = tracing.InitTracer
	openRedisFunc        = cache.OpenRedis
	openPostgresFunc     = db.OpenPostgres
	newLoggerFunc        = newLogger
	newMCPServerFunc     = mcpserver.NewServer
	newMCPHandlerFunc    = mcpserver.NewHTTPTransportHandler
	newFreqtradeClientFn = func(tracer trace.Tracer, cfg freqtrade.Config) service.Gateway {
		return freqtrade.NewClient(tracer, cfg)
	}
	newUpstreamMonitorFunc   = job.NewUpstreamMonitor
	startUpstreamMonitorFunc = func(m *job.UpstreamMonitor, ctx context.Context) { go m.Start(ctx) }
	runStdioFunc             = func(ctx context.Context, server *sdkmcp.Server) error {
		return server.Run(ctx, &sdkmcp.StdioTransport{})
	}
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFn = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify    = ossignal.Notify
	stopSignalNotify     = ossignal.Stop
	waitForSignalFunc    = func(ctx context.Context, quit <-chan os.Signal) bool {
		select {
		case <-quit:
			return true
		case <-ctx.Done():
			return false
		}
	}
)

type cliOptions struct {
	demo        bool
	live        bool
	transport   string
	host        string
	port        int
	printConfig bool
	configFile  string
}

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("freqtrade-mcp: %v", err)
	}
}

func execute(args []string, stdout io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	return cmd.Execute()
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "freqtrade-mcp",
		Short: "MCP server for the Freqtrade REST API",
		Long: `freqtrade-mcp exposes a running Freqtrade bot to MCP clients.

In demo mode (the default) every tool is served by a local simulator and nothing
is sent to Freqtrade. In live mode calls are forwarded to FREQTRADE_API_URL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.demo, "demo", false, "simulate all calls locally (default)")
	flags.BoolVar(&opts.live, "live", false, "forward calls to the Freqtrade API")
	flags.StringVar(&opts.transport, "transport", "", "MCP transport: stdio, streamable-http (alias http)")
	flags.StringVar(&opts.host, "host", "", "bind host for the HTTP transport")
	flags.IntVar(&opts.port, "port", 0, "bind port for the HTTP transport")
	flags.BoolVar(&opts.printConfig, "config", false, "print the effective configuration without secrets and exit")
	flags.StringVar(&opts.configFile, "config-file", "", "YAML file applied before environment variables")
	cmd.MarkFlagsMutuallyExclusive("demo", "live")
	return cmd
}

func run(cmd *cobra.Command, opts *cliOptions) error {
	// .env is optional
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc(opts.configFile)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}
	if opts.printConfig {
		cfg.Print(cmd.OutOrStdout())
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLoggerFunc(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, cfg.MCPServerName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	recorder, closeJournal, err := openJournal(ctx, cfg, tracer)
	if err != nil {
		return err
	}
	defer closeJournal()

	toolMetrics := metrics.NewToolMetrics()

	var live service.Gateway
	if cfg.Mode == domain.ModeLive {
		live = newFreqtradeClientFn(tracer, freqtrade.Config{
			BaseURL:  cfg.FreqtradeAPIURL,
			Username: cfg.FreqtradeUsername,
			Password: cfg.FreqtradePassword,
			Timeout:  time.Duration(cfg.FreqtradeTimeoutSecs) * time.Second,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, startupPingTimeout)
		if err := live.Ping(pingCtx); err != nil {
			logger.Warn("freqtrade api not reachable at startup", "url", cfg.FreqtradeAPIURL, "error", err)
		}
		pingCancel()

		if cfg.FreqtradePollSecs > 0 {
			monitor := newUpstreamMonitorFunc(tracer, live, toolMetrics, time.Duration(cfg.FreqtradePollSecs)*time.Second)
			startUpstreamMonitorFunc(monitor, ctx)
		}
	}

	trading := service.NewTrading(tracer, cfg.Mode, live, demo.NewSimulator(nil), service.TradingOptions{
		Journal: recorder,
		Metrics: toolMetrics,
		Logger:  logger,
	})

	mcpSrv := newMCPServerFunc(tracer, trading, mcpserver.ServerConfig{
		Name:           cfg.MCPServerName,
		Version:        cfg.MCPServerVersion,
		RequestTimeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
		APIURL:         cfg.FreqtradeAPIURL,
		Logger:         logger,
	})

	logger.Info("starting freqtrade mcp server",
		"mode", cfg.Mode,
		"transport", cfg.MCPTransport,
		"journal", cfg.JournalBackend,
	)

	switch cfg.MCPTransport {
	case config.TransportStdio:
		return runStdioMode(ctx, cancel, mcpSrv)
	case config.TransportStreamableHTTP:
		return runHTTPMode(ctx, cancel, cfg, mcpSrv, tracer, trading, toolMetrics.Handler())
	default:
		return fmt.Errorf("unsupported MCP transport: %s", cfg.MCPTransport)
	}
}

// applyFlags layers explicitly set CLI flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *cliOptions) error {
	switch {
	case opts.live:
		cfg.Mode = domain.ModeLive
	case opts.demo:
		cfg.Mode = domain.ModeDemo
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		transport := config.NormalizeTransport(opts.transport)
		if transport != config.TransportStdio && transport != config.TransportStreamableHTTP {
			return fmt.Errorf("unsupported transport %q: use stdio or streamable-http", opts.transport)
		}
		cfg.MCPTransport = transport
	}
	if flags.Changed("host") {
		cfg.MCPHost = opts.host
	}
	if flags.Changed("port") {
		cfg.MCPPort = opts.port
	}
	return nil
}

func openJournal(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (journal.Recorder, func(), error) {
	switch cfg.JournalBackend {
	case config.JournalRedis:
		client, err := openRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis journal: %w", err)
		}
		recorder := journal.NewRedisJournal(client, tracer, journal.DefaultRedisKey, cfg.JournalMaxEntries)
		return recorder, func() { _ = client.Close() }, nil
	case config.JournalPostgres:
		pool, err := openPostgresFunc(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres journal: %w", err)
		}
		recorder := journal.NewPostgresJournal(pool, tracer)
		if err := recorder.RunMigrations(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run journal migrations: %w", err)
		}
		return recorder, pool.Close, nil
	default:
		return journal.Nop{}, func() {}, nil
	}
}

func runStdioMode(ctx context.Context, cancel context.CancelFunc, mcpSrv *sdkmcp.Server) error {
	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignalNotify(quit)

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		if waitForSignalFunc(waitCtx, quit) {
			cancel()
		}
	}()

	if err := runStdioFunc(ctx, mcpSrv); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server failed: %w", err)
	}
	return nil
}

func runHTTPMode(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	mcpSrv *sdkmcp.Server,
	tracer trace.Tracer,
	trading handler.Pinger,
	metricsHandler http.Handler,
) error {
	if cfg.MCPAuthToken == "" && !isLoopback(cfg.MCPHost) {
		slog.Warn("MCP_AUTH_TOKEN is not set; the HTTP transport is unauthenticated", "host", cfg.MCPHost)
	}

	mcpHandler := newMCPHandlerFunc(mcpSrv, mcpserver.HTTPHandlerConfig{
		AuthToken:       cfg.MCPAuthToken,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
		MaxBodyBytes:    defaultMCPHTTPMaxBodyBytes,
	})
	router := handler.NewRouter(cfg.MCPServerName, cfg.MCPAllowedOrigins)
	handler.New(tracer, trading, metricsHandler, mcpHandler).RegisterRoutes(router)

	addr := net.JoinHostPort(cfg.MCPHost, fmt.Sprintf("%d", cfg.MCPPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("mcp http transport listening", "addr", addr)
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignalNotify(quit)

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	stopped := make(chan struct{})
	go func() {
		if waitForSignalFunc(waitCtx, quit) {
			close(stopped)
		}
	}()

	select {
	case err := <-listenErr:
		cancel()
		return fmt.Errorf("mcp http server failed on %s: %w", addr, err)
	case <-stopped:
	case <-ctx.Done():
	}
	slog.Info("shutting down mcp http transport")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := shutdownHTTPServerFn(srv, shutdownCtx); err != nil {
		return fmt.Errorf("mcp server forced to shutdown: %w", err)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
