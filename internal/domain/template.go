package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailTemplate is a named subject/body pair rendered with per-send variables.
type EmailTemplate struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	BodyText    string    `json:"bodyText"`
	BodyHTML    *string   `json:"bodyHtml,omitempty"`
	Category    string    `json:"category"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
}
