package jobs

import (
	"context"
	"errors"
	"time"

	"oxicrm_backend/platform/logger"
)

const defaultPendingInterval = 60 * time.Second

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// PendingEmailTicker enqueues a send_pending_emails job on every tick.
type PendingEmailTicker struct {
	queue     Queue
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	log       *logger.Logger
	stats     *LoopStats
}

// NewPendingEmailTicker creates a ticker. A non-positive interval uses 60s.
func NewPendingEmailTicker(queue Queue, interval time.Duration, log *logger.Logger) *PendingEmailTicker {
	if interval <= 0 {
		interval = defaultPendingInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PendingEmailTicker{
		queue:     queue,
		interval:  interval,
		newTicker: NewTimeTicker,
		log:       log.WithComponent("pending_email_ticker"),
		stats:     NewLoopStats("pending_email_ticker"),
	}
}

// WithTicker replaces the ticker factory.
func (t *PendingEmailTicker) WithTicker(factory func(time.Duration) Ticker) *PendingEmailTicker {
	t.newTicker = factory
	return t
}

// Interval returns the configured tick interval.
func (t *PendingEmailTicker) Interval() time.Duration {
	return t.interval
}

// Stats returns the ticker's counters.
func (t *PendingEmailTicker) Stats() *LoopStats {
	return t.stats
}

// Run ticks until ctx ends.
func (t *PendingEmailTicker) Run(ctx context.Context) {
	ticker := t.newTicker(t.interval)
	defer ticker.Stop()

	t.log.Info("pending email ticker started", "interval", t.interval.String())
	defer t.log.Info("pending email ticker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := t.queue.Enqueue(ctx, NewSendPendingEmailsJob()); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				t.stats.Failed(err)
				t.log.LoopError("pending_email_ticker", err)
				continue
			}
			t.stats.Handled()
		}
	}
}
