package scheduler

import (
	"context"
	"fmt"

	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// JobProcessor handles one job. jobs.EmailJobWorker implements it.
type JobProcessor interface {
	Process(ctx context.Context, job jobs.Job) error
}

// Worker pulls email job tasks from Redis and hands them to the processor.
type Worker struct {
	server    *asynq.Server
	handler   asynq.Handler
	processor JobProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor JobProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = defaultQueue
	}

	// Jobs are processed one at a time unless configured otherwise.
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Discard()
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:    server,
		processor: processor,
		log:       log.WithComponent("scheduler_worker"),
	}
	// Every task type goes to the processor, which ignores names it does not know.
	w.handler = asynq.HandlerFunc(w.handleJob)

	return w, nil
}

// handleJob never returns the processor's error: failed jobs are logged by
// the processor and are not retried.
func (w *Worker) handleJob(ctx context.Context, task *asynq.Task) error {
	job := JobFromTask(task)
	if err := w.processor.Process(ctx, job); err != nil {
		w.log.Debug("job finished with error", "job", job.Name, "error", err)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.handler); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
