package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/events"
	apphttp "oxicrm_backend/internal/http"
	"oxicrm_backend/internal/http/router"
	"oxicrm_backend/internal/inbound"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/internal/subscribers"
	"oxicrm_backend/internal/workflow"
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/db"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	provider, err := email.NewProvider(cfg, log)
	if err != nil {
		log.Error("failed to initialize email provider", "error", err)
		panic("failed to initialize email provider: " + err.Error())
	}
	if err := provider.VerifyConfiguration(ctx); err != nil {
		// Sending still runs; failures end up on the emails themselves.
		log.Warn("email provider verification failed", "provider", cfg.GetEmailProvider(), "error", err)
	}

	eventBus := events.NewInMemoryBus(cfg.GetEventBusBuffer(), log)
	queue := jobs.NewMemoryQueue(cfg.GetJobQueueCapacity())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	emailRepo := repository.NewEmailRepo(pool)
	timelineRepo := repository.NewTimelineRepo(pool)
	mailingSvc := mailing.NewService(emailRepo, repository.NewTemplateRepo(pool), timelineRepo, provider, log)
	executor := workflow.NewExecutor(repository.NewWorkflowRunRepo(pool), repository.NewWorkflowStepRepo(pool), mailingSvc, log)

	settings := subscribers.SettingsFromConfig(cfg)
	emailSubscriber := subscribers.NewEmailEventSubscriber(eventBus, mailingSvc, settings, log)
	leadSubscriber := subscribers.NewLeadEventSubscriber(eventBus, mailingSvc, timelineRepo, settings, log)

	worker := jobs.NewEmailJobWorker(emailRepo, provider, cfg.GetEmailSendRate(), log)
	ticker := jobs.NewPendingEmailTicker(queue, cfg.GetPendingEmailInterval(), log)

	loops := []apphttp.StatsSource{
		emailSubscriber.Stats(),
		leadSubscriber.Stats(),
		worker.Stats(),
		ticker.Stats(),
	}

	var poller *inbound.Poller
	if cfg.IsIMAPEnabled() {
		poller = inbound.NewPoller(inbound.NewIMAPDialer(cfg), mailingSvc, uuid.Nil, cfg.GetIMAPPollInterval(), log)
		loops = append(loops, poller.Stats())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Loops:  loops,
		Modules: []apphttp.Module{
			mailing.NewModule(mailingSvc),
			workflow.NewModule(executor),
			events.NewModule(eventBus),
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ========================================================================
	// Background loops
	// ========================================================================

	g, gctx := errgroup.WithContext(ctx)

	if err := emailSubscriber.Start(gctx); err != nil {
		panic("failed to start email event subscriber: " + err.Error())
	}
	if err := leadSubscriber.Start(gctx); err != nil {
		panic("failed to start lead event subscriber: " + err.Error())
	}

	g.Go(func() error {
		worker.Run(gctx, queue.Jobs())
		return nil
	})
	g.Go(func() error {
		ticker.Run(gctx)
		return nil
	})
	if poller != nil {
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		queue.Close()
		eventBus.Close()
		<-emailSubscriber.Done()
		<-leadSubscriber.Done()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
