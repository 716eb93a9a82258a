package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pscheid92/askpulse/internal/adapter/httpserver"
	"github.com/pscheid92/askpulse/internal/adapter/memory"
	"github.com/pscheid92/askpulse/internal/adapter/metrics"
	"github.com/pscheid92/askpulse/internal/adapter/postgres"
	"github.com/pscheid92/askpulse/internal/adapter/redis"
	"github.com/pscheid92/askpulse/internal/adapter/websocket"
	"github.com/pscheid92/askpulse/internal/app"
	"github.com/pscheid92/askpulse/internal/domain"
	"github.com/pscheid92/askpulse/internal/notify"
	"github.com/pscheid92/askpulse/internal/platform/config"
	"github.com/pscheid92/askpulse/internal/platform/logging"
	"github.com/pscheid92/askpulse/internal/platform/version"
	"github.com/pscheid92/askpulse/internal/presence"
)

const (
	wsConnectionsPerSecond = 5
	wsConnectionBurst      = 10
	shutdownTimeout        = 10 * time.Second
)

type storage struct {
	entities      domain.EntityRepository
	ledgers       domain.LedgerRepository
	notifications domain.NotificationStore
	healthChecks  []httpserver.HealthCheck
	close         func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStorage(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) storage {
	if cfg.StorageBackend == config.StorageBackendMemory {
		slog.Warn("Using in-memory storage; votes and notifications are lost on restart")
		entities := memory.NewEntityStore()
		return storage{
			entities:      entities,
			ledgers:       entities,
			notifications: memory.NewNotificationStore(clock),
			close:         func() {},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, metrics.NewDBMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	entities := postgres.NewEntityRepo(pool)
	return storage{
		entities:      entities,
		ledgers:       entities,
		notifications: postgres.NewNotificationRepo(pool, clock),
		healthChecks:  []httpserver.HealthCheck{{Name: "postgres", Check: pool.Ping}},
		close:         pool.Close,
	}
}

func setupRedis(cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set; vote rate limiting and score caching disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, node *centrifuge.Node) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		slog.Warn("Failed to set GOMAXPROCS", "error", err)
	}
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "storage", cfg.StorageBackend, "build", version.Get())

	reg := metrics.NewRegistry()

	store := setupStorage(cfg, clock, reg)
	defer store.close()

	healthChecks := store.healthChecks
	voteDeps := app.VoteDeps{
		Entities:            store.entities,
		Ledgers:             store.ledgers,
		Notifications:       store.notifications,
		Clock:               clock,
		VoteMetrics:         metrics.NewVoteMetrics(reg),
		NotificationMetrics: metrics.NewNotificationMetrics(reg),
	}

	// Assign interfaces only when Redis is configured to avoid typed-nil collaborators.
	if redisClient := setupRedis(cfg, reg); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		voteDeps.Limiter = redis.NewVoteRateLimiter(redisClient, clock, cfg.VoteRateCapacity, cfg.VoteRatePerMinute)
		voteDeps.Cache = redis.NewScoreCache(redisClient, cfg.ScoreCacheTTL)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	registry := presence.NewRegistry(metrics.NewPresenceMetrics(reg))
	publisher := notify.NewPublisher(registry, cfg.PublishTimeout, voteDeps.NotificationMetrics)
	voteDeps.Publisher = publisher

	voteSvc := app.NewVoteService(voteDeps, app.VoteConfig{
		MaxAttempts:  cfg.VoteMaxAttempts,
		RetryBackoff: cfg.VoteRetryBackoff,
	})
	notificationSvc := app.NewNotificationService(store.notifications, store.entities, publisher, clock, voteDeps.NotificationMetrics)
	sessionSvc := app.NewSessionService(registry)

	wsMetrics := metrics.NewWebSocketMetrics(reg)
	checkOrigin := websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment())
	limits := websocket.NewConnectionLimits(clock, wsMetrics,
		int64(cfg.MaxWebSocketConnections), cfg.MaxWebSocketConnectionsPerIP,
		wsConnectionsPerSecond, wsConnectionBurst)

	node, err := websocket.NewNode(sessionSvc, wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}
	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Votes:             voteSvc,
		Notifications:     notificationSvc,
		CentrifugeHandler: websocket.NewCentrifugeHandler(node, checkOrigin),
		Stream:            websocket.NewNotificationStream(sessionSvc, limits, checkOrigin, clock, wsMetrics),
		Limits:            limits,
		Sessions:          sessionSvc,
		HealthChecks:      healthChecks,
		HTTPMetrics:       metrics.NewHTTPMetrics(reg),
		MetricsHandler:    metrics.Handler(reg),
		Clock:             clock,
	})

	done := runGracefulShutdown(srv, node)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
