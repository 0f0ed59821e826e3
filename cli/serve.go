package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spindrift-labs/statserve/config"
	"github.com/spindrift-labs/statserve/market"
	statotel "github.com/spindrift-labs/statserve/otel"
	"github.com/spindrift-labs/statserve/server"
	"github.com/spindrift-labs/statserve/tool"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8081, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().Bool("debug", false, "Enable debug logging")
	cmd.Flags().String("config", "", "Path to statserve.yaml")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to the SQLite quote cache (in-memory cache when empty)")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint (tracing disabled when empty)")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	resolver, err := loadResolver(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(resolver)
	slog.SetDefault(logger)

	host := resolver.GetString("network.host", "0.0.0.0")
	port := resolver.GetInt("network.port", 8081)
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")

	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	if otlpEndpoint == "" {
		otlpEndpoint = resolver.GetString("telemetry.otlp_endpoint", "")
	}

	telemetry, err := statotel.Setup(cmd.Context(), statotel.Config{
		ServiceName:    resolver.GetString("name", "statserve"),
		ServiceVersion: resolver.GetString("version", "dev"),
		TraceEndpoint:  otlpEndpoint,
		TraceInsecure:  resolver.GetBool("telemetry.otlp_insecure", true),
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	registry := tool.NewRegistry()
	registry.MustRegister(tool.Builtins(resolver)...)

	ready := func(context.Context) error { return nil }

	marketTeardown, err := wireMarketTools(cmd, resolver, logger, registry, &ready)
	if err != nil {
		return err
	}
	defer marketTeardown()

	broadcaster := server.NewBroadcaster()
	defer broadcaster.Close()

	dispatcher := tool.NewDispatcher(tool.DispatcherConfig{
		Registry: registry,
		Observer: telemetry.Observer(),
		Events:   broadcaster.Sink(),
		Logger:   logger,
	})

	apiServer := server.NewServer(server.Config{
		Dispatcher: dispatcher,
		Events:     broadcaster,
		Metrics:    telemetry,
		Ready:      ready,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		Logger:     logger,
	})

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("statserve listening", "addr", addr, "tools", registry.Len())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// loadResolver builds the layered configuration: built-in defaults, then an
// optional YAML file, then environment variables, then explicit flags.
func loadResolver(cmd *cobra.Command) (*config.Resolver, error) {
	resolver := config.New()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		if err := resolver.LoadFile(path); err != nil {
			return nil, exitError(exitConfig, "loading config: %v", err)
		}
	} else if _, err := os.Stat("statserve.yaml"); err == nil {
		if err := resolver.LoadFile("statserve.yaml"); err != nil {
			return nil, exitError(exitConfig, "loading statserve.yaml: %v", err)
		}
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		resolver.SetOverride("network.host", host)
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		resolver.SetOverride("network.port", port)
	}
	if cmd.Flags().Changed("debug") {
		debug, _ := cmd.Flags().GetBool("debug")
		resolver.SetOverride("debug.enabled", debug)
	}
	if cmd.Flags().Changed("sqlite-path") {
		sqlitePath, _ := cmd.Flags().GetString("sqlite-path")
		resolver.SetOverride("storage.sqlite_path", sqlitePath)
	}
	return resolver, nil
}

// newLogger builds the JSON logger from the resolved logging configuration.
func newLogger(resolver *config.Resolver) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToUpper(resolver.GetString("logging.level", "INFO")) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	if resolver.GetBool("debug.enabled", false) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// wireMarketTools registers the market data tool set when a quote API is
// configured. It returns a teardown that stops the refresher and closes the
// cache.
func wireMarketTools(
	cmd *cobra.Command,
	resolver *config.Resolver,
	logger *slog.Logger,
	registry *tool.Registry,
	ready *func(context.Context) error,
) (func(), error) {
	teardown := func() {}

	baseURL := resolver.GetString("market.base_url", "")
	if baseURL == "" {
		logger.Debug("market tools disabled", "reason", "market.base_url not set")
		return teardown, nil
	}

	provider, err := market.NewHTTPProvider(market.HTTPProviderConfig{
		BaseURL: baseURL,
		APIKey:  resolver.GetString("market.api_key", ""),
	})
	if err != nil {
		return teardown, exitError(exitConfig, "market provider: %v", err)
	}

	var cache market.Cache = market.NewMemoryCache()
	var closeCache func() error
	if sqlitePath := resolver.GetString("storage.sqlite_path", ""); sqlitePath != "" {
		sqliteCache, err := market.NewSQLiteCache(market.SQLiteCacheConfig{DSN: sqlitePath})
		if err != nil {
			return teardown, exitError(exitConfig, "opening quote cache: %v", err)
		}
		cache = sqliteCache
		closeCache = sqliteCache.Close
		*ready = func(ctx context.Context) error {
			_, err := sqliteCache.Keys(ctx)
			return err
		}
	}

	ttl := time.Duration(resolver.GetInt("market.cache_ttl", 300)) * time.Second
	caching := market.NewCachingProvider(provider, cache, ttl)
	registry.MustRegister(market.Registrations(caching)...)

	var refresher *market.Refresher
	if schedule := resolver.GetString("market.refresh_schedule", ""); schedule != "" {
		refresher, err = market.NewRefresher(market.RefresherConfig{
			Provider: caching,
			Schedule: schedule,
			Logger:   logger,
		})
		if err != nil {
			return teardown, exitError(exitConfig, "refresh schedule: %v", err)
		}
		if err := refresher.Start(cmd.Context()); err != nil {
			return teardown, exitError(exitRuntime, "starting cache refresher: %v", err)
		}
	}

	teardown = func() {
		if refresher != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = refresher.Stop(stopCtx)
			cancel()
		}
		if closeCache != nil {
			_ = closeCache()
		}
	}
	return teardown, nil
}
