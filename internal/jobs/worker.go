package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EmailJobWorker processes email jobs one at a time.
type EmailJobWorker struct {
	emails   repository.EmailRepository
	provider email.Provider
	limiter  *rate.Limiter
	log      *logger.Logger
	stats    *LoopStats
	now      func() time.Time
}

// NewEmailJobWorker creates a worker. A sendRate of zero or less disables
// send throttling.
func NewEmailJobWorker(emails repository.EmailRepository, provider email.Provider, sendRate float64, log *logger.Logger) *EmailJobWorker {
	if log == nil {
		log = logger.Discard()
	}
	w := &EmailJobWorker{
		emails:   emails,
		provider: provider,
		log:      log.WithComponent("email_job_worker"),
		stats:    NewLoopStats("email_job_worker"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if sendRate > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(sendRate), 1)
	}
	return w
}

// WithClock replaces the time source.
func (w *EmailJobWorker) WithClock(now func() time.Time) *EmailJobWorker {
	w.now = now
	return w
}

// Stats returns the worker's counters.
func (w *EmailJobWorker) Stats() *LoopStats {
	return w.stats
}

// Run consumes jobs until the channel closes or ctx ends. Job errors are
// logged and never stop the loop.
func (w *EmailJobWorker) Run(ctx context.Context, jobs <-chan Job) {
	w.log.Info("email job worker started")
	defer w.log.Info("email job worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			_ = w.Process(ctx, job)
		}
	}
}

// Process handles one job and records the outcome. The returned error is
// informational; callers may ignore it.
func (w *EmailJobWorker) Process(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		if err != nil {
			w.stats.Failed(err)
			w.log.JobEvent(job.Name, "failed", "error", err)
			return
		}
		w.stats.Handled()
	}()

	switch job.Name {
	case JobSendPendingEmails:
		return w.sendPending(ctx)
	case JobSendBulkEmail:
		return w.sendBulk(ctx, job.Payload)
	default:
		w.log.Warn("unknown job ignored", "job", job.Name)
		return nil
	}
}

func (w *EmailJobWorker) sendPending(ctx context.Context) error {
	pending, err := w.emails.FindPending(ctx)
	if err != nil {
		return err
	}

	var sent, failed int
	for _, e := range pending {
		if e.Status != domain.EmailStatusPending {
			continue
		}
		result, err := w.deliver(ctx, e)
		if err != nil {
			failed++
			continue
		}
		if result.Status == domain.EmailStatusSent {
			sent++
		} else {
			failed++
		}
	}
	w.log.JobEvent(JobSendPendingEmails, "completed", "total", len(pending), "sent", sent, "failed", failed)
	return nil
}

func (w *EmailJobWorker) sendBulk(ctx context.Context, payload string) error {
	var p BulkEmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed bulk email payload", err)
	}
	if p.EmailIDs == nil {
		return apperr.Validation("missing email_ids in payload")
	}

	ids := make([]uuid.UUID, 0, len(p.EmailIDs))
	for _, raw := range p.EmailIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validationf("invalid email id %q", raw)
		}
		ids = append(ids, id)
	}

	var sent, failed, missing int
	for _, id := range ids {
		e, err := w.emails.FindByID(ctx, id)
		if err != nil {
			w.log.Warn("bulk email not loaded", "email_id", id, "error", err)
			missing++
			continue
		}
		result, err := w.deliver(ctx, e)
		if err != nil {
			failed++
			continue
		}
		if result.Status == domain.EmailStatusSent {
			sent++
		} else {
			failed++
		}
	}
	w.log.JobEvent(JobSendBulkEmail, "completed", "total", len(ids), "sent", sent, "failed", failed, "missing", missing)
	if missing > 0 {
		return apperr.NotFound(fmt.Sprintf("%d of %d bulk emails could not be loaded", missing, len(ids)))
	}
	return nil
}

func (w *EmailJobWorker) deliver(ctx context.Context, e domain.Email) (domain.Email, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			w.log.Warn("send throttle interrupted", "email_id", e.ID, "error", err)
			return e, err
		}
	}
	result := mailing.Deliver(ctx, w.provider, e, w.now)
	if err := w.emails.Update(ctx, result); err != nil {
		w.log.DatabaseError("update email "+e.ID.String(), err)
		return result, err
	}
	return result, nil
}
