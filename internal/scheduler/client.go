// Package scheduler carries email jobs over Redis with asynq so the job
// worker can run in its own process.
package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue     = "emails"
	minUniqueTTL     = time.Second
	defaultUniqueTTL = 60 * time.Second
)

// Client enqueues jobs as asynq tasks. It satisfies jobs.Queue.
type Client struct {
	client    *asynq.Client
	queue     string
	uniqueTTL time.Duration
	log       *logger.Logger
}

var _ jobs.Queue = (*Client)(nil)

// NewClient connects to the Redis named by the scheduler config. uniqueTTL
// bounds how long a queued send_pending_emails sweep suppresses duplicates;
// it is normally the ticker interval.
func NewClient(cfg config.SchedulerConfig, uniqueTTL time.Duration, log *logger.Logger) (*Client, error) {
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
	if uniqueTTL < minUniqueTTL {
		uniqueTTL = defaultUniqueTTL
	}
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		client:    asynq.NewClient(opt),
		queue:     queue,
		uniqueTTL: uniqueTTL,
		log:       log.WithComponent("scheduler_client"),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Enqueue publishes the job to the configured queue. A sweep that is already
// queued is not queued again.
func (c *Client) Enqueue(ctx context.Context, job jobs.Job) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}

	opts := []asynq.Option{asynq.Queue(c.queue), asynq.MaxRetry(0)}
	if job.Name == jobs.JobSendPendingEmails {
		opts = append(opts, asynq.Unique(c.uniqueTTL))
	}

	info, err := c.client.EnqueueContext(ctx, NewJobTask(job), opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.log.Debug("job already queued", "job", job.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Name, err)
	}
	c.log.Debug("job enqueued", "job", job.Name, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// PingRedis checks that the Redis behind redisURL answers.
func PingRedis(ctx context.Context, redisURL string, tlsInsecure bool) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	if tlsInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	rdb := redis.NewClient(opt)
	defer func() { _ = rdb.Close() }()
	return rdb.Ping(ctx).Err()
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
