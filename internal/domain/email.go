// Package domain holds the entities and state enums the automation pipeline
// reads and writes. Entities are plain values: state changes return a new
// value and never mutate the receiver.
package domain

import (
	"maps"
	"slices"
	"strings"
	"time"

	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/validator"

	"github.com/google/uuid"
)

// EmailDirection tells whether an email left or entered the CRM.
type EmailDirection string

const (
	EmailDirectionOutbound EmailDirection = "outbound"
	EmailDirectionInbound  EmailDirection = "inbound"
)

// EmailStatus is the delivery state of an email.
type EmailStatus string

const (
	EmailStatusPending  EmailStatus = "pending"
	EmailStatusSent     EmailStatus = "sent"
	EmailStatusFailed   EmailStatus = "failed"
	EmailStatusReceived EmailStatus = "received"
)

// ParseEmailDirection maps the persisted form; unknown values read as outbound.
func ParseEmailDirection(s string) EmailDirection {
	if s == string(EmailDirectionInbound) {
		return EmailDirectionInbound
	}
	return EmailDirectionOutbound
}

// ParseEmailStatus maps the persisted form; unknown values read as pending.
func ParseEmailStatus(s string) EmailStatus {
	switch EmailStatus(s) {
	case EmailStatusSent, EmailStatusFailed, EmailStatusReceived:
		return EmailStatus(s)
	default:
		return EmailStatusPending
	}
}

// IsTerminal reports whether a send attempt has finished.
func (s EmailStatus) IsTerminal() bool {
	return s == EmailStatusSent || s == EmailStatusFailed
}

// Email is a single outbound or inbound message record.
type Email struct {
	ID                 uuid.UUID      `json:"id"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	Direction          EmailDirection `json:"direction"`
	Status             EmailStatus    `json:"status"`
	FromEmail          string         `json:"fromEmail" validate:"required,mailbox"`
	ToEmail            string         `json:"toEmail" validate:"required,mailbox"`
	CcEmails           []string       `json:"ccEmails,omitempty" validate:"omitempty,dive,mailbox"`
	BccEmails          []string       `json:"bccEmails,omitempty" validate:"omitempty,dive,mailbox"`
	Subject            string         `json:"subject" validate:"required"`
	BodyText           string         `json:"bodyText" validate:"required"`
	BodyHTML           *string        `json:"bodyHtml,omitempty"`
	SentAt             *time.Time     `json:"sentAt,omitempty"`
	FailedAt           *time.Time     `json:"failedAt,omitempty"`
	ErrorMessage       *string        `json:"errorMessage,omitempty"`
	EmailTemplateID    *uuid.UUID     `json:"emailTemplateId,omitempty"`
	TimelineActivityID *uuid.UUID     `json:"timelineActivityId,omitempty"`
	PersonID           *uuid.UUID     `json:"personId,omitempty"`
	CompanyID          *uuid.UUID     `json:"companyId,omitempty"`
	OpportunityID      *uuid.UUID     `json:"opportunityId,omitempty"`
	TaskID             *uuid.UUID     `json:"taskId,omitempty"`
	WorkflowID         *uuid.UUID     `json:"workflowId,omitempty"`
	WorkflowRunID      *uuid.UUID     `json:"workflowRunId,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	WorkspaceID        uuid.UUID      `json:"workspaceId"`
}

var emailValidator = validator.New()

// Validate checks the record before it is persisted: subject and body must be
// non-blank and every address must contain '@'.
func (e Email) Validate() error {
	if strings.TrimSpace(e.Subject) == "" {
		return apperr.Validation("subject cannot be empty")
	}
	if strings.TrimSpace(e.BodyText) == "" {
		return apperr.Validation("body cannot be empty")
	}
	if err := emailValidator.Struct(e); err != nil {
		return apperr.Validation(validator.Describe(err))
	}
	return nil
}

// MarkSent records a successful provider call. Provider metadata is merged
// over any metadata already on the record.
func (e Email) MarkSent(at time.Time, metadata map[string]any) Email {
	next := e.clone()
	next.Status = EmailStatusSent
	next.SentAt = &at
	next.FailedAt = nil
	next.ErrorMessage = nil
	next.UpdatedAt = at
	if len(metadata) > 0 {
		if next.Metadata == nil {
			next.Metadata = make(map[string]any, len(metadata))
		}
		maps.Copy(next.Metadata, metadata)
	}
	return next
}

// MarkFailed records a failed provider call.
func (e Email) MarkFailed(at time.Time, cause error) Email {
	next := e.clone()
	msg := cause.Error()
	next.Status = EmailStatusFailed
	next.FailedAt = &at
	next.SentAt = nil
	next.ErrorMessage = &msg
	next.UpdatedAt = at
	return next
}

// WithTimelineActivity links the timeline entry created for this email.
func (e Email) WithTimelineActivity(activityID uuid.UUID, at time.Time) Email {
	next := e.clone()
	next.TimelineActivityID = &activityID
	next.UpdatedAt = at
	return next
}

func (e Email) clone() Email {
	next := e
	next.CcEmails = slices.Clone(e.CcEmails)
	next.BccEmails = slices.Clone(e.BccEmails)
	if e.Metadata != nil {
		next.Metadata = maps.Clone(e.Metadata)
	}
	return next
}
