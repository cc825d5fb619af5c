package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/guardrail/common/audit"
	"github.com/telhawk-systems/guardrail/common/logging"
	"github.com/telhawk-systems/guardrail/common/messaging"
	natsclient "github.com/telhawk-systems/guardrail/common/messaging/nats"
	"github.com/telhawk-systems/guardrail/common/middleware"
	"github.com/telhawk-systems/guardrail/internal/admin"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/config"
	"github.com/telhawk-systems/guardrail/internal/detector"
	"github.com/telhawk-systems/guardrail/internal/eventlog"
	"github.com/telhawk-systems/guardrail/internal/handlers"
	"github.com/telhawk-systems/guardrail/internal/monitor"
	"github.com/telhawk-systems/guardrail/internal/notify"
	"github.com/telhawk-systems/guardrail/internal/ratelimit"
	"github.com/telhawk-systems/guardrail/internal/repository"
	"github.com/telhawk-systems/guardrail/internal/responder"
	"github.com/telhawk-systems/guardrail/internal/search"
	"github.com/telhawk-systems/guardrail/internal/server"
	"github.com/telhawk-systems/guardrail/internal/trust"
	"github.com/telhawk-systems/guardrail/internal/zerotrust"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("guardrail"))
	logging.SetDefault(logger)

	slog.Info("Starting guardrail",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Driver),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open event store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repo.Close()

	limitStore, err := openLimitStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open rate limit store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer limitStore.Close()

	var (
		bus     messaging.Publisher
		busConn messaging.Connection
	)
	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
		client, err := natsclient.NewClient(natsCfg, logger.Logger)
		if err != nil {
			// Notifications are best effort; the pipeline runs without them.
			slog.Warn("NATS unavailable, notifications disabled", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			bus, busConn = client, client
			slog.Info("Connected to NATS", slog.String("url", cfg.NATS.URL))
		}
	}
	publisher := notify.NewPublisher(bus, logger)

	signer := audit.NewSigner(cfg.Audit.SigningKey)
	logOpts := []eventlog.Option{
		eventlog.WithSigner(signer),
		eventlog.WithSpamStore(limitStore),
	}
	if cfg.OpenSearch.Enabled {
		mirror, err := search.NewMirror(search.Config{
			URL:      cfg.OpenSearch.URL,
			Username: cfg.OpenSearch.Username,
			Password: cfg.OpenSearch.Password,
			Insecure: cfg.OpenSearch.Insecure,
			Index:    cfg.OpenSearch.Index,
		}, logger)
		if err == nil {
			err = mirror.Initialize(ctx)
		}
		if err != nil {
			slog.Warn("OpenSearch mirror disabled", slog.String("error", err.Error()))
		} else {
			logOpts = append(logOpts, eventlog.WithMirror(mirror))
		}
	}

	events := eventlog.New(repo, eventlog.Config{
		MaxPayloadBytes:      cfg.EventLog.MaxPayloadBytes,
		ClientLogPerMinute:   cfg.EventLog.ClientLogPerMinute,
		LowPriorityPerMinute: cfg.EventLog.LowPriorityPerMinute,
		AggregationThreshold: cfg.EventLog.AggregationThreshold,
		AggregationWindow:    cfg.EventLog.AggregationWindow,
		CriticalAudit:        cfg.EventLog.CriticalAuditEnabled,
	}, logger, logOpts...)

	rules, err := loadRules(cfg.Rules.Path)
	if err != nil {
		slog.Error("Failed to load threat rules", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Threat rules loaded", slog.Int("rules", len(rules)), slog.String("path", cfg.Rules.Path))

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	authn := auth.NewAuthenticator(tokens, repo, events, logger)

	resp := responder.New(repo, events, publisher, logger)
	mon := monitor.New(events, detector.New(repo, rules), resp, repo, publisher, logger)

	trustStore, err := trust.NewStore(cfg.Trust.Capacity, cfg.Trust.IdleTTL, cfg.Trust.Throttle)
	if err != nil {
		slog.Error("Failed to create trust store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(limitStore, events, ratelimit.Config{
		Window:           cfg.RateLimit.Window,
		WarningThreshold: cfg.RateLimit.WarningThreshold,
		Limits:           cfg.RateLimit.Defaults,
	}, logger)

	h := handlers.New(handlers.Deps{
		Events:    events,
		Monitor:   mon,
		Responder: resp,
		Verifier:  zerotrust.New(repo, tokens, events, logger, zerotrust.WithLocation(cfg.ZeroTrust.Location())),
		Admin:     admin.New(repo, signer, publisher, logger),
		Auth:      authn,
		Limiter:   limiter,
		Trust:     trustStore,
		Tokens:    tokens,
		Store:     repo,
		Bus:       busConn,
	}, logger)

	router := server.NewRouter(h, authn, server.Options{
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxAge:         cfg.CORS.MaxAge,
			RequireOrigin:  cfg.CORS.RequireOrigin,
		},
		HSTS:         cfg.Server.HSTS,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("guardrail listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("Using in-memory event store (development only)")
		return repository.NewInMemoryRepository(), nil
	}

	pg := cfg.Database.Postgres
	slog.Info("Connecting to PostgreSQL",
		slog.String("host", pg.Host),
		slog.Int("port", pg.Port),
		slog.String("database", pg.Database),
	)

	pool := repository.DefaultPoolConfig()
	if pg.MaxConns > 0 {
		pool.MaxConns = pg.MaxConns
	}
	if pg.MinConns > 0 {
		pool.MinConns = pg.MinConns
	}
	repo, err := repository.NewPostgresRepository(ctx, pg.ConnectionString(), pool)
	if err != nil {
		return nil, err
	}

	slog.Info("Running database migrations")
	status, err := repository.Migrate(cfg.Database.MigrationsPath, pg.ConnectionString(), true)
	if err != nil {
		repo.Close()
		return nil, err
	}
	slog.Info("Database migration complete",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
		slog.Bool("changed", status.Changed),
	)
	return repo, nil
}

// openLimitStore returns the Redis sliding-window store, or the in-process
// store when Redis is disabled.
func openLimitStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, error) {
	if cfg.Redis.Enabled {
		store, err := ratelimit.NewRedisStoreFromURL(cfg.Redis.URL, cfg.Redis.MaxRetries, cfg.Redis.PoolSize)
		if err != nil {
			return nil, err
		}
		slog.Info("Connected to Redis")
		return store, nil
	}

	slog.Warn("Redis disabled, rate limits are per process")
	store := ratelimit.NewMemoryStore()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				store.Sweep(cfg.RateLimit.Window)
			}
		}
	}()
	return store, nil
}

func loadRules(path string) ([]*detector.Rule, error) {
	if path == "" {
		return detector.DefaultRules()
	}
	return detector.LoadRules(path)
}
