// Package events provides the domain event definitions consumed by the
// automation subscribers. Infrastructure (Bus, Subscription) is in platform/events.
package events

import (
	"encoding/json"
	"fmt"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/events"
)

// Re-export platform types for convenience
type (
	DomainEvent  = events.DomainEvent
	Bus          = events.Bus
	Subscription = events.Subscription
)

// Topic names published by the CRM use cases.
const (
	TopicOpportunityCreated = "opportunity.created"
	TopicOpportunityWon     = "opportunity.won"
	TopicTaskAssigned       = "task.assigned"
	TopicLeadCreated        = "lead.created"
)

// Event is implemented by every typed payload.
type Event interface {
	Topic() string
}

// =============================================================================
// Opportunity Events
// =============================================================================

// OpportunityCreated is published when a new opportunity is opened.
type OpportunityCreated struct {
	ID          string `json:"id"`
	PersonName  string `json:"person_name,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

func (OpportunityCreated) Topic() string { return TopicOpportunityCreated }

// OpportunityWon is published when an opportunity moves to the won stage.
type OpportunityWon struct {
	ID          string `json:"id"`
	PersonEmail string `json:"person_email"`
	PersonName  string `json:"person_name,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

func (OpportunityWon) Topic() string { return TopicOpportunityWon }

// =============================================================================
// Task Events
// =============================================================================

// TaskAssigned is published when a task gets an assignee.
type TaskAssigned struct {
	ID            string `json:"id"`
	AssigneeEmail string `json:"assignee_email"`
	Title         string `json:"title,omitempty"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
}

func (TaskAssigned) Topic() string { return TopicTaskAssigned }

// =============================================================================
// Lead Events
// =============================================================================

// LeadCreated carries the full lead record.
type LeadCreated struct {
	domain.Lead
}

func (LeadCreated) Topic() string { return TopicLeadCreated }

// New encodes a typed payload into a DomainEvent.
func New(e Event) (DomainEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("encode %s payload: %w", e.Topic(), err)
	}
	return DomainEvent{Topic: e.Topic(), Payload: string(payload)}, nil
}

// Decode parses an event payload into dst.
func Decode(event DomainEvent, dst any) error {
	if err := json.Unmarshal([]byte(event.Payload), dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Topic, err)
	}
	return nil
}
