package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/internal/scheduler"
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/db"
	"oxicrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return scheduler.PingRedis(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	}); err != nil {
		log.Error("failed to reach redis", "error", err)
		panic("failed to reach redis: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	provider, err := email.NewProvider(cfg, log)
	if err != nil {
		log.Error("failed to initialize email provider", "error", err)
		panic("failed to initialize email provider: " + err.Error())
	}

	// The sweep interval doubles as the uniqueness window so that several
	// scheduler replicas enqueue at most one sweep per tick.
	client, err := scheduler.NewClient(cfg, cfg.GetPendingEmailInterval(), log)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		panic("failed to initialize job client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	processor := jobs.NewEmailJobWorker(repository.NewEmailRepo(pool), provider, cfg.GetEmailSendRate(), log)
	worker, err := scheduler.NewWorker(cfg, processor, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	ticker := jobs.NewPendingEmailTicker(client, cfg.GetPendingEmailInterval(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	_ = g.Wait()

	snapshot := processor.Stats().Snapshot()
	log.Info("scheduler stopped", "handled", snapshot.Handled, "failed", snapshot.Failed)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
