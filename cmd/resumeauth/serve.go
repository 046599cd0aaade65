package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/resumeauth"
	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/config"
	"github.com/MrEthical07/resumeauth/internal/httpapi"
	"github.com/MrEthical07/resumeauth/internal/logger"
	"github.com/MrEthical07/resumeauth/internal/observability"
	"github.com/MrEthical07/resumeauth/internal/store/postgres"
	promexport "github.com/MrEthical07/resumeauth/metrics/export/prometheus"
	"github.com/MrEthical07/resumeauth/middleware"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, migrateFirst)
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer observability.FlushSentry()

	if migrateFirst {
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	gateway := provider.NewClient(&http.Client{Timeout: cfg.Engine.Timeouts.Provider + time.Second}, log, provider.Config{
		BaseURL:    cfg.ProviderURL,
		APIKey:     cfg.ProviderAPIKey,
		ServiceKey: cfg.ProviderServiceKey,
	})

	builder := resumeauth.New().
		WithConfig(cfg.Engine).
		WithRedis(rdb).
		WithGateway(gateway).
		WithDirectory(postgres.NewProfilesStore(pool)).
		WithLogger(log)
	if cfg.SentryDSN != "" {
		builder = builder.WithErrorReporter(observability.NewSentryReporter(nil))
	}

	sinks := audit.MultiSink{audit.NewSlogSink(log.With("component", "audit"))}
	if cfg.NATSURL != "" {
		natsSink, err := audit.NewNATSSink(cfg.NATSURL, cfg.NATSSubject, log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
	}
	builder = builder.WithAuditSink(sinks)

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	metrics, err := promexport.Handler(promexport.NewCollector(engine))
	if err != nil {
		return fmt.Errorf("metrics handler: %w", err)
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 5*time.Minute)
	defer limiter.Stop()

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.RouterDeps{
			Service:           engine,
			Logger:            log,
			RateLimiter:       limiter,
			Metrics:           metrics,
			MetricsPath:       cfg.MetricsPath,
			RequestTimeout:    30 * time.Second,
			TrustProxyHeaders: cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
