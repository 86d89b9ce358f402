package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"golang.org/x/sync/errgroup"

	"github.com/BogateyDi/ai-service-frontend/internal/accounts"
	"github.com/BogateyDi/ai-service-frontend/internal/assistant"
	"github.com/BogateyDi/ai-service-frontend/internal/auth"
	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/config"
	"github.com/BogateyDi/ai-service-frontend/internal/execution"
	"github.com/BogateyDi/ai-service-frontend/internal/flow"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/referral"
	"github.com/BogateyDi/ai-service-frontend/internal/session"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

const (
	redisKeyPrefix      = "aipomochnik:"
	memoryLedgerSize    = 1000
	sessionCleanup      = 10 * time.Minute
	shutdownTimeout     = 15 * time.Second
	riverMaxWorkers     = 10
	redisConnectTimeout = 5 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, recorder, pool, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open storage", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	slog.Info("Storage ready", "backend", cfg.StoreBackend)

	// Accounts
	st := store.New(ctx, kv, logger)
	ledgerSvc := ledger.NewService(st, recorder, logger)
	accountsSvc := accounts.NewService(st, ledgerSvc, referral.NewEngine(st), logger)

	// Generation backend
	validator, err := backend.NewValidator()
	if err != nil {
		slog.Error("Failed to compile response schemas", "error", err)
		os.Exit(1)
	}
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, validator, logger)

	// Sessions and flows
	sessions := session.NewRegistry(cfg.SessionTTL, sessionCleanup)
	env := &flow.Env{
		Accounts:     accountsSvc,
		Backend:      client,
		SectionDelay: cfg.SectionDelay,
		Log:          logger,
	}
	executor := flow.NewExecutor(env, sessions.Flows, logger)

	var riverClient *river.Client[pgx.Tx]
	if pool != nil {
		riverClient, err = newRiverClient(ctx, pool, executor)
		if err != nil {
			slog.Error("Failed to set up River", "error", err)
			os.Exit(1)
		}
		env.Dispatcher = execution.NewDispatcher(func(ctx context.Context, args execution.SectionsJobArgs) error {
			_, err := riverClient.Insert(ctx, args, nil)
			return err
		})
	} else {
		env.Dispatcher = flow.NewInlineDispatcher(ctx, executor)
	}

	// Auth & assistants
	tokens := auth.NewService(cfg.JWTSecret, 0)
	assistants := assistant.NewService(accountsSvc, client, auth.NewAdminUnlocker(cfg.AdminPhraseHash, cfg.AdminPhraseLen), cfg.PublicURL, logger)
	if cfg.AdminPhraseHash == "" {
		slog.Warn("ADMIN_PHRASE_HASH not set, admin mode cannot be unlocked")
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           newAPI(cfg, tokens, sessions, accountsSvc, env, assistants, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if riverClient != nil {
		g.Go(func() error {
			if err := riverClient.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return riverClient.Stop(stopCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// openStorage connects the configured KV backend. The pool is returned only
// for postgres; it also backs the ledger audit table and River.
func openStorage(ctx context.Context, cfg *config.Config) (store.KV, ledger.Recorder, *pgxpool.Pool, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		kv := store.NewPostgresKV(pool)
		if err := kv.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		repo := ledger.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return kv, repo, pool, nil

	case config.StoreRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, nil, nil, err
		}
		return store.NewRedisKV(rdb, redisKeyPrefix), ledger.NewMemoryRecorder(memoryLedgerSize), nil, nil
	}
	return store.NewMemoryKV(), ledger.NewMemoryRecorder(memoryLedgerSize), nil, nil
}

// newRiverClient migrates River's tables and registers the sections worker.
// The client is not started here.
func newRiverClient(ctx context.Context, pool *pgxpool.Pool, runner execution.Runner) (*river.Client[pgx.Tx], error) {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return nil, err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, err
	}
	slog.Info("River migrations applied")

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewSectionsWorker(runner))
	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: riverMaxWorkers},
		},
		Workers: workers,
	})
}
