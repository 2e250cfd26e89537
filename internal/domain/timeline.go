package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimelineActivity is an append-only entry on a record's history.
type TimelineActivity struct {
	ID                uuid.UUID  `json:"id"`
	CreatedAt         time.Time  `json:"createdAt"`
	Name              string     `json:"name"`
	WorkspaceMemberID *uuid.UUID `json:"workspaceMemberId,omitempty"`
	PersonID          *uuid.UUID `json:"personId,omitempty"`
	CompanyID         *uuid.UUID `json:"companyId,omitempty"`
	OpportunityID     *uuid.UUID `json:"opportunityId,omitempty"`
	TaskID            *uuid.UUID `json:"taskId,omitempty"`
	NoteID            *uuid.UUID `json:"noteId,omitempty"`
	CalendarEventID   *uuid.UUID `json:"calendarEventId,omitempty"`
	WorkflowID        *uuid.UUID `json:"workflowId,omitempty"`
	WorkspaceID       uuid.UUID  `json:"workspaceId"`
}

// TimelineForEmail builds the activity that summarises an email send or receipt,
// carrying over the email's correlation ids.
func TimelineForEmail(name string, email Email, at time.Time) TimelineActivity {
	return TimelineActivity{
		ID:            uuid.New(),
		CreatedAt:     at,
		Name:          name,
		PersonID:      email.PersonID,
		CompanyID:     email.CompanyID,
		OpportunityID: email.OpportunityID,
		TaskID:        email.TaskID,
		WorkflowID:    email.WorkflowID,
		WorkspaceID:   email.WorkspaceID,
	}
}
