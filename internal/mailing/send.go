package mailing

import (
	"context"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"

	"github.com/google/uuid"
)

// SendEmailInput describes one outbound email. When TemplateID is set the
// template's subject and bodies replace the literal ones.
type SendEmailInput struct {
	FromEmail         string         `json:"from_email"`
	ToEmail           string         `json:"to_email"`
	CcEmails          []string       `json:"cc_emails,omitempty"`
	BccEmails         []string       `json:"bcc_emails,omitempty"`
	Subject           string         `json:"subject"`
	BodyText          string         `json:"body_text"`
	BodyHTML          *string        `json:"body_html,omitempty"`
	TemplateID        *uuid.UUID     `json:"template_id,omitempty"`
	TemplateVariables map[string]any `json:"template_variables,omitempty"`
	PersonID          *uuid.UUID     `json:"person_id,omitempty"`
	CompanyID         *uuid.UUID     `json:"company_id,omitempty"`
	OpportunityID     *uuid.UUID     `json:"opportunity_id,omitempty"`
	TaskID            *uuid.UUID     `json:"task_id,omitempty"`
	WorkflowID        *uuid.UUID     `json:"workflow_id,omitempty"`
	WorkflowRunID     *uuid.UUID     `json:"workflow_run_id,omitempty"`
	WorkspaceID       uuid.UUID      `json:"workspace_id"`
}

// SendEmail renders, validates, persists and delivers an email, then records
// it on the timeline. Delivery failures end in a failed email, not an error.
func (s *Service) SendEmail(ctx context.Context, in SendEmailInput) (domain.Email, error) {
	subject, bodyText, bodyHTML := in.Subject, in.BodyText, in.BodyHTML
	if in.TemplateID != nil {
		tpl, err := s.templates.FindByID(ctx, *in.TemplateID)
		if err != nil {
			return domain.Email{}, err
		}
		vars := in.TemplateVariables
		if vars == nil {
			vars = map[string]any{}
		}
		rendered := email.RenderTemplate(tpl, vars)
		subject, bodyText, bodyHTML = rendered.Subject, rendered.BodyText, rendered.BodyHTML
	}

	now := s.now()
	pending := domain.Email{
		ID:              uuid.New(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Direction:       domain.EmailDirectionOutbound,
		Status:          domain.EmailStatusPending,
		FromEmail:       in.FromEmail,
		ToEmail:         in.ToEmail,
		CcEmails:        in.CcEmails,
		BccEmails:       in.BccEmails,
		Subject:         subject,
		BodyText:        bodyText,
		BodyHTML:        bodyHTML,
		EmailTemplateID: in.TemplateID,
		PersonID:        in.PersonID,
		CompanyID:       in.CompanyID,
		OpportunityID:   in.OpportunityID,
		TaskID:          in.TaskID,
		WorkflowID:      in.WorkflowID,
		WorkflowRunID:   in.WorkflowRunID,
		WorkspaceID:     in.WorkspaceID,
	}
	if err := pending.Validate(); err != nil {
		return domain.Email{}, err
	}
	if err := s.emails.Create(ctx, pending); err != nil {
		return domain.Email{}, err
	}

	delivered := Deliver(ctx, s.provider, pending, s.now)
	if delivered.Status == domain.EmailStatusFailed {
		s.log.Warn("email delivery failed", "email_id", delivered.ID, "to", delivered.ToEmail, "error", *delivered.ErrorMessage)
	} else {
		s.log.Info("email sent", "email_id", delivered.ID, "to", delivered.ToEmail, "message_id", delivered.Metadata["message_id"])
	}
	if err := s.emails.Update(ctx, delivered); err != nil {
		return domain.Email{}, err
	}

	return s.linkTimeline(ctx, delivered, "Email sent to "+delivered.ToEmail)
}

func (s *Service) linkTimeline(ctx context.Context, e domain.Email, name string) (domain.Email, error) {
	activity := domain.TimelineForEmail(name, e, s.now())
	if err := s.timeline.Create(ctx, activity); err != nil {
		return domain.Email{}, err
	}

	linked := e.WithTimelineActivity(activity.ID, s.now())
	if err := s.emails.Update(ctx, linked); err != nil {
		return domain.Email{}, err
	}
	return linked, nil
}
