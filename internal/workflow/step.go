// Package workflow executes published workflow versions step by step.
package workflow

import (
	"encoding/json"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// Step is the closed set of step kinds the executor understands.
type Step interface {
	stepType() domain.StepType
}

// SendEmailStep sends one email through the send pipeline.
type SendEmailStep struct {
	Settings SendEmailSettings
}

// CreateRecordStep is accepted but not executed yet.
type CreateRecordStep struct {
	Settings json.RawMessage
}

// IfElseStep is accepted but not executed yet.
type IfElseStep struct {
	Settings json.RawMessage
}

// FormStep is accepted but not executed yet.
type FormStep struct {
	Settings json.RawMessage
}

// UnknownStep covers every other stored step type (code, http_request, delay, ...).
type UnknownStep struct {
	Type domain.StepType
}

func (SendEmailStep) stepType() domain.StepType    { return domain.StepTypeSendEmail }
func (CreateRecordStep) stepType() domain.StepType { return domain.StepTypeCreateRecord }
func (IfElseStep) stepType() domain.StepType       { return domain.StepTypeIfElse }
func (FormStep) stepType() domain.StepType         { return domain.StepTypeForm }
func (s UnknownStep) stepType() domain.StepType    { return s.Type }

// SendEmailSettings is the settings object of a send_email step.
type SendEmailSettings struct {
	FromEmail         string
	ToEmail           string
	CcEmails          []string
	BccEmails         []string
	Subject           string
	BodyText          string
	BodyHTML          *string
	TemplateID        *uuid.UUID
	TemplateVariables map[string]any
}

// ParseStep decodes a stored step into its variant.
func ParseStep(step domain.WorkflowVersionStep) (Step, error) {
	switch step.StepType {
	case domain.StepTypeSendEmail:
		settings, err := ParseSendEmailSettings(step.Settings)
		if err != nil {
			return nil, err
		}
		return SendEmailStep{Settings: settings}, nil
	case domain.StepTypeCreateRecord:
		return CreateRecordStep{Settings: step.Settings}, nil
	case domain.StepTypeIfElse:
		return IfElseStep{Settings: step.Settings}, nil
	case domain.StepTypeForm:
		return FormStep{Settings: step.Settings}, nil
	default:
		return UnknownStep{Type: step.StepType}, nil
	}
}

// ParseSendEmailSettings reads the send_email settings leniently: only
// from_email and to_email are required, optional fields of the wrong shape
// are ignored.
func ParseSendEmailSettings(raw json.RawMessage) (SendEmailSettings, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			// settings that are not an object have no from_email either
			fields = map[string]json.RawMessage{}
		}
	}

	var s SendEmailSettings
	var ok bool
	if s.FromEmail, ok = stringField(fields, "from_email"); !ok {
		return SendEmailSettings{}, apperr.Validation("Missing from_email in settings")
	}
	if s.ToEmail, ok = stringField(fields, "to_email"); !ok {
		return SendEmailSettings{}, apperr.Validation("Missing to_email in settings")
	}
	s.Subject, _ = stringField(fields, "subject")
	s.BodyText, _ = stringField(fields, "body_text")
	if html, ok := stringField(fields, "body_html"); ok {
		s.BodyHTML = &html
	}
	if rawID, ok := stringField(fields, "template_id"); ok {
		if id, err := uuid.Parse(rawID); err == nil {
			s.TemplateID = &id
		}
	}
	decodeField(fields, "template_variables", &s.TemplateVariables)
	decodeField(fields, "cc_emails", &s.CcEmails)
	decodeField(fields, "bcc_emails", &s.BccEmails)
	return s, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return
	}
	*dst = value
}

