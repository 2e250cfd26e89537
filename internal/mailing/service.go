// Package mailing implements the send and receive email pipelines and their
// HTTP surface.
package mailing

import (
	"context"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
)

// TemplateFinder loads a template by id.
type TemplateFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.EmailTemplate, error)
}

// Service runs the email pipelines.
type Service struct {
	emails    repository.EmailRepository
	templates TemplateFinder
	timeline  repository.TimelineActivityRepository
	provider  email.Provider
	log       *logger.Logger
	now       func() time.Time
}

// NewService wires the pipelines to their collaborators.
func NewService(
	emails repository.EmailRepository,
	templates TemplateFinder,
	timeline repository.TimelineActivityRepository,
	provider email.Provider,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		emails:    emails,
		templates: templates,
		timeline:  timeline,
		provider:  provider,
		log:       log.WithComponent("mailing"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FindByID returns a stored email.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	return s.emails.FindByID(ctx, id)
}

// ListByStatus returns stored emails in the given status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status domain.EmailStatus) ([]domain.Email, error) {
	return s.emails.FindByStatus(ctx, status)
}

// Deliver hands a pending email to the provider and returns the email in its
// terminal state. A provider failure is recorded on the email, never returned.
func Deliver(ctx context.Context, provider email.Provider, e domain.Email, now func() time.Time) domain.Email {
	req := email.SendRequest{
		From:     e.FromEmail,
		To:       e.ToEmail,
		Cc:       e.CcEmails,
		Bcc:      e.BccEmails,
		Subject:  e.Subject,
		BodyText: e.BodyText,
		Metadata: e.Metadata,
	}
	if e.BodyHTML != nil {
		req.BodyHTML = *e.BodyHTML
	}

	resp, err := provider.Send(ctx, req)
	if err != nil {
		return e.MarkFailed(now(), err)
	}

	metadata := make(map[string]any, len(resp.Metadata)+1)
	for k, v := range resp.Metadata {
		metadata[k] = v
	}
	if resp.MessageID != "" {
		metadata["message_id"] = resp.MessageID
	}
	return e.MarkSent(now(), metadata)
}
