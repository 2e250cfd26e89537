// Package subscribers turns domain events into notification emails and
// timeline entries.
package subscribers

import (
	"context"
	"fmt"
	"strings"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/events"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
)

// EmailSender is the send pipeline as seen by the subscribers.
type EmailSender interface {
	SendEmail(ctx context.Context, in mailing.SendEmailInput) (domain.Email, error)
}

// Settings holds the addresses and links used in system notifications.
type Settings struct {
	SystemSender string
	SalesTeam    string
	AppBaseURL   string
}

// SettingsFromConfig reads Settings from the automation config.
func SettingsFromConfig(cfg config.AutomationConfig) Settings {
	return Settings{
		SystemSender: cfg.GetSystemSenderAddress(),
		SalesTeam:    cfg.GetSalesTeamAddress(),
		AppBaseURL:   strings.TrimRight(cfg.GetAppBaseURL(), "/"),
	}
}

// DefaultSettings are used when no configuration is supplied.
func DefaultSettings() Settings {
	return Settings{
		SystemSender: "noreply@oxicrm.com",
		SalesTeam:    "sales@oxicrm.com",
		AppBaseURL:   "http://localhost:3001",
	}
}

type eventHandler func(ctx context.Context, event events.DomainEvent) error

// receiveLoop drains a subscription until it is closed or ctx ends. A failing
// or panicking handler is logged and counted and the loop moves on.
type receiveLoop struct {
	name    string
	pattern string
	handle  eventHandler
	stats   *jobs.LoopStats
	log     *logger.Logger
	done    chan struct{}
}

func newReceiveLoop(name, pattern string, handle eventHandler, log *logger.Logger) *receiveLoop {
	if log == nil {
		log = logger.Discard()
	}
	return &receiveLoop{
		name:    name,
		pattern: pattern,
		handle:  handle,
		stats:   jobs.NewLoopStats(name),
		log:     log.WithComponent(name),
		done:    make(chan struct{}),
	}
}

// start subscribes before returning so that events published afterwards are
// seen by the loop.
func (l *receiveLoop) start(ctx context.Context, bus events.Bus) error {
	sub, err := bus.Subscribe(l.pattern)
	if err != nil {
		return fmt.Errorf("%s subscribe: %w", l.name, err)
	}
	go l.run(ctx, sub)
	return nil
}

func (l *receiveLoop) run(ctx context.Context, sub *events.Subscription) {
	defer close(l.done)
	defer sub.Close()

	l.log.Info("subscriber started", "pattern", l.pattern)
	defer l.log.Info("subscriber stopped", "dropped", sub.Dropped())

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C():
			if !ok {
				return
			}
			if !events.Matches(l.pattern, event.Topic) {
				continue
			}
			l.dispatch(ctx, event)
		}
	}
}

func (l *receiveLoop) dispatch(ctx context.Context, event events.DomainEvent) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return l.handle(ctx, event)
	}()
	if err != nil {
		l.stats.Failed(err)
		l.log.LoopError(l.name, err, "topic", event.Topic)
		return
	}
	l.stats.Handled()
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("missing or invalid %s id", what)
	}
	return id, nil
}

// workspaceOrNil parses an optional workspace id; system emails without one
// belong to the nil workspace.
func workspaceOrNil(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
