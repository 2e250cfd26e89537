package inbound

import (
	"context"
	"fmt"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultPollInterval = 2 * time.Minute

// Receiver is the receive pipeline.
type Receiver interface {
	ReceiveEmail(ctx context.Context, in mailing.ReceiveEmailInput) (domain.Email, error)
}

// Poller checks the mailbox on every tick. A message that fails to be
// recorded stays unseen and is retried on the next poll.
type Poller struct {
	dial        Dialer
	receiver    Receiver
	workspaceID uuid.UUID
	interval    time.Duration
	newTicker   func(time.Duration) jobs.Ticker
	log         *logger.Logger
	stats       *jobs.LoopStats
}

// NewPoller creates a poller. A non-positive interval uses two minutes.
func NewPoller(dial Dialer, receiver Receiver, workspaceID uuid.UUID, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Poller{
		dial:        dial,
		receiver:    receiver,
		workspaceID: workspaceID,
		interval:    interval,
		newTicker:   jobs.NewTimeTicker,
		log:         log.WithComponent("imap_poller"),
		stats:       jobs.NewLoopStats("imap_poller"),
	}
}

// WithTicker replaces the ticker factory.
func (p *Poller) WithTicker(factory func(time.Duration) jobs.Ticker) *Poller {
	p.newTicker = factory
	return p
}

// Stats returns the poller's counters.
func (p *Poller) Stats() *jobs.LoopStats {
	return p.stats
}

// Run polls until ctx ends.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("imap poller started", "interval", p.interval.String())
	defer p.log.Info("imap poller stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := p.Poll(ctx); err != nil {
				p.stats.Failed(err)
				p.log.LoopError("imap_poller", err)
			}
		}
	}
}

// Poll fetches unseen messages once and records each one. It returns an
// error only when the mailbox itself could not be read.
func (p *Poller) Poll(ctx context.Context) error {
	if p.dial == nil {
		return errNoDialer
	}
	session, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			p.log.Warn("imap close failed", "error", err)
		}
	}()

	messages, err := session.Unseen()
	if err != nil {
		return err
	}
	for _, msg := range messages {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.record(ctx, session, msg); err != nil {
			p.stats.Failed(err)
			p.log.LoopError("imap_poller", err, "uid", msg.UID)
			continue
		}
		p.stats.Handled()
	}
	return nil
}

func (p *Poller) record(ctx context.Context, session Session, msg Message) error {
	in := mailing.ReceiveEmailInput{
		FromEmail:   msg.From,
		ToEmail:     msg.To,
		Subject:     msg.Subject,
		BodyText:    msg.Text,
		WorkspaceID: p.workspaceID,
	}
	if msg.HTML != "" {
		html := msg.HTML
		in.BodyHTML = &html
	}
	if !msg.ReceivedAt.IsZero() {
		at := msg.ReceivedAt
		in.ReceivedAt = &at
	}

	received, err := p.receiver.ReceiveEmail(ctx, in)
	if err != nil {
		// Rejected messages will never pass on a later poll; only transient
		// failures stay unseen for a retry.
		if apperr.Is(err, apperr.KindValidation) {
			if seenErr := session.MarkSeen(msg.UID); seenErr != nil {
				p.log.Warn("failed to mark rejected message seen", "uid", msg.UID, "error", seenErr)
			}
		}
		return fmt.Errorf("receive message %d: %w", msg.UID, err)
	}
	if err := session.MarkSeen(msg.UID); err != nil {
		return fmt.Errorf("mark message %d seen: %w", msg.UID, err)
	}
	p.log.Info("inbound email recorded", "uid", msg.UID, "email_id", received.ID)
	return nil
}
