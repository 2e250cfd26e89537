package mailing

import (
	"context"
	"strings"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ReceiveEmailInput describes one inbound email. A zero ReceivedAt means now.
type ReceiveEmailInput struct {
	FromEmail   string     `json:"from_email"`
	ToEmail     string     `json:"to_email"`
	Subject     string     `json:"subject"`
	BodyText    string     `json:"body_text"`
	BodyHTML    *string    `json:"body_html,omitempty"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
}

// ReceiveEmail records an inbound email and its timeline entry. HTML-only
// messages get a plain-text body derived from the HTML.
func (s *Service) ReceiveEmail(ctx context.Context, in ReceiveEmailInput) (domain.Email, error) {
	receivedAt := s.now()
	if in.ReceivedAt != nil && !in.ReceivedAt.IsZero() {
		receivedAt = in.ReceivedAt.UTC()
	}
	bodyText := in.BodyText
	if strings.TrimSpace(bodyText) == "" && in.BodyHTML != nil {
		bodyText = sanitize.PlainText(*in.BodyHTML)
	}

	received := domain.Email{
		ID:          uuid.New(),
		CreatedAt:   receivedAt,
		UpdatedAt:   receivedAt,
		Direction:   domain.EmailDirectionInbound,
		Status:      domain.EmailStatusReceived,
		FromEmail:   in.FromEmail,
		ToEmail:     in.ToEmail,
		Subject:     in.Subject,
		BodyText:    bodyText,
		BodyHTML:    in.BodyHTML,
		WorkspaceID: in.WorkspaceID,
	}
	if err := received.Validate(); err != nil {
		return domain.Email{}, err
	}
	if err := s.emails.Create(ctx, received); err != nil {
		return domain.Email{}, err
	}
	s.log.Info("inbound email recorded", "email_id", received.ID, "from", received.FromEmail)

	return s.linkTimeline(ctx, received, "Email received from "+received.FromEmail)
}
