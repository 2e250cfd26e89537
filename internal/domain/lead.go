package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/validator"

	"github.com/google/uuid"
)

// LeadSource records how a lead entered the CRM.
type LeadSource string

const (
	LeadSourceWebForm     LeadSource = "WebForm"
	LeadSourceManualEntry LeadSource = "ManualEntry"
	LeadSourceEmail       LeadSource = "Email"
	LeadSourceReferral    LeadSource = "Referral"
)

// Label is the human form used in notifications and timeline entries.
func (s LeadSource) Label() string {
	switch s {
	case LeadSourceWebForm:
		return "Web Form"
	case LeadSourceManualEntry:
		return "Manual Entry"
	case LeadSourceEmail:
		return "Email"
	case LeadSourceReferral:
		return "Referral"
	default:
		return string(s)
	}
}

// UnmarshalJSON accepts both the variant name ("WebForm") and snake case ("web_form").
func (s *LeadSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.ReplaceAll(raw, "_", "")) {
	case "webform":
		*s = LeadSourceWebForm
	case "manualentry":
		*s = LeadSourceManualEntry
	case "email":
		*s = LeadSourceEmail
	case "referral":
		*s = LeadSourceReferral
	default:
		return fmt.Errorf("unknown lead source %q", raw)
	}
	return nil
}

// Lead is the payload of a lead.created event.
type Lead struct {
	ID           uuid.UUID  `json:"id" validate:"required"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	FirstName    string     `json:"first_name" validate:"required"`
	LastName     string     `json:"last_name" validate:"required"`
	Email        string     `json:"email" validate:"required"`
	Phone        *string    `json:"phone,omitempty"`
	CompanyName  *string    `json:"company_name,omitempty"`
	JobTitle     *string    `json:"job_title,omitempty"`
	Source       LeadSource `json:"source" validate:"required"`
	Score        int        `json:"score"`
	AssignedToID *uuid.UUID `json:"assigned_to_id,omitempty"`
	WorkspaceID  uuid.UUID  `json:"workspace_id" validate:"required"`
}

// FullName joins first and last name.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

var leadValidator = validator.New()

// Validate rejects payloads missing the lead's identity, name, email, source
// or workspace.
func (l Lead) Validate() error {
	if strings.TrimSpace(l.FirstName) == "" || strings.TrimSpace(l.LastName) == "" {
		return apperr.Validation("lead name cannot be empty")
	}
	if strings.TrimSpace(l.Email) == "" {
		return apperr.Validation("lead email cannot be empty")
	}
	if err := leadValidator.Struct(l); err != nil {
		return apperr.Validation(validator.Describe(err))
	}
	return nil
}
