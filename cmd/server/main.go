package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fanout/internal/broadcast"
	"github.com/pscheid92/fanout/internal/config"
	"github.com/pscheid92/fanout/internal/locker"
	"github.com/pscheid92/fanout/internal/logging"
	"github.com/pscheid92/fanout/internal/postgres"
	"github.com/pscheid92/fanout/internal/queue"
	"github.com/pscheid92/fanout/internal/redis"
	"github.com/pscheid92/fanout/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL, cfg.RedisKeyPrefix)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	return client
}

func setupPostgres(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

// setupGuard registers the channel authorization rules. A principal owns its
// own user channel; any authenticated principal may join rooms.
func setupGuard() *broadcast.Guard {
	guard := broadcast.NewGuard()
	guard.Channel("user.{id}", func(_ context.Context, p *broadcast.Principal, params map[string]string) (broadcast.Decision, error) {
		return broadcast.Decision{Allowed: p.ID == params["id"]}, nil
	})
	guard.Channel("room.{id}", func(context.Context, *broadcast.Principal, map[string]string) (broadcast.Decision, error) {
		return broadcast.Allow(), nil
	})
	return guard
}

func runGracefulShutdown(srv *server.Server, stopQueue context.CancelFunc, q *queue.Memory) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopQueue()
		q.Wait()

		close(done)
	}()

	return done
}

func main() {
	_ = godotenv.Load()

	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "driver", cfg.BroadcastDriver)

	guard := setupGuard()
	healthChecks := []server.HealthCheck{}

	// Shared infrastructure is built eagerly for the configured driver so a
	// broken configuration fails at startup, not on the first broadcast.
	// The client may also be built lazily by the redis driver factory below,
	// so the close covers both paths.
	var redisClient *redis.Client
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()
	if cfg.BroadcastDriver == config.DriverRedis {
		redisClient = setupRedis(cfg)
		healthChecks = append(healthChecks, server.HealthCheck{Name: "redis", Check: redisClient.Ping})
	}

	var pool *pgxpool.Pool
	if cfg.BroadcastDriver == config.DriverPoll && cfg.PollStore == config.PollStorePostgres {
		pool = setupPostgres(cfg)
		defer pool.Close()
		healthChecks = append(healthChecks, server.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	// Unique-broadcast locks share Redis when it is around; otherwise they are
	// process-local, which is correct for single-instance deployments.
	var locks locker.Locker = locker.NewMemory(clock)
	if redisClient != nil {
		locks = redis.NewLocker(redisClient)
	}

	q := queue.NewMemory(cfg.QueueWorkers, cfg.QueueCapacity, queue.DefaultRetryPolicy, clock)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	q.Start(queueCtx)

	mgr := broadcast.NewManager(cfg.BroadcastDriver, q, locks)
	mgr.Extend(config.DriverLog, func() (broadcast.Broadcaster, error) {
		return broadcast.NewLogBroadcaster(guard), nil
	})
	mgr.Extend(config.DriverNull, func() (broadcast.Broadcaster, error) {
		return broadcast.NewNullBroadcaster(guard), nil
	})
	mgr.Extend(config.DriverRedis, func() (broadcast.Broadcaster, error) {
		if redisClient == nil {
			client, err := redis.NewClient(cfg.RedisURL, cfg.RedisKeyPrefix)
			if err != nil {
				return nil, err
			}
			redisClient = client
		}
		return redis.NewBroadcaster(redisClient, guard), nil
	})
	mgr.Extend(config.DriverPoll, func() (broadcast.Broadcaster, error) {
		memory := broadcast.NewMemoryStore(clock, cfg.PresenceTTL)

		var events broadcast.EventStore = memory
		if pool != nil {
			events = postgres.NewEventStore(pool)
		}

		// Presence stays in Redis when available so multiple instances agree
		// on membership; events can still live in Postgres.
		var presence broadcast.PresenceStore = memory
		if redisClient != nil {
			presence = redis.NewPresenceStore(redisClient, clock, cfg.PresenceTTL)
		}

		return broadcast.NewPollBroadcaster(events, presence, guard), nil
	})

	// Resolve the configured driver once at startup to surface configuration
	// errors immediately.
	if _, err := mgr.Driver(); err != nil {
		slog.Error("Failed to initialize broadcast driver", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, mgr, healthChecks)
	done := runGracefulShutdown(srv, stopQueue, q)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
