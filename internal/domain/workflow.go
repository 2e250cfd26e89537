package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"oxicrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// RunStatus is the state of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// ParseRunStatus maps the persisted form; unknown values read as pending.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return RunStatus(s)
	default:
		return RunStatusPending
	}
}

// StepType names the kind of a workflow step as stored.
type StepType string

const (
	StepTypeSendEmail    StepType = "send_email"
	StepTypeCreateRecord StepType = "create_record"
	StepTypeIfElse       StepType = "if_else"
	StepTypeForm         StepType = "form"
	StepTypeCode         StepType = "code"
	StepTypeHTTPRequest  StepType = "http_request"
	StepTypeDelay        StepType = "delay"
)

// WorkflowVersionStep is one step of a published workflow version.
type WorkflowVersionStep struct {
	ID                uuid.UUID       `json:"id"`
	CreatedAt         time.Time       `json:"createdAt"`
	WorkflowVersionID uuid.UUID       `json:"workflowVersionId"`
	Name              string          `json:"name"`
	StepType          StepType        `json:"stepType"`
	Settings          json.RawMessage `json:"settings"`
	Position          int             `json:"position"`
	WorkspaceID       uuid.UUID       `json:"workspaceId"`
}

// WorkflowRun is one execution of a workflow version.
type WorkflowRun struct {
	ID                uuid.UUID       `json:"id"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	WorkflowVersionID uuid.UUID       `json:"workflowVersionId"`
	Status            RunStatus       `json:"status"`
	Output            json.RawMessage `json:"output,omitempty"`
	Error             *string         `json:"error,omitempty"`
	WorkspaceID       uuid.UUID       `json:"workspaceId"`
}

// StartRun creates a run in the running state.
func StartRun(versionID, workspaceID uuid.UUID, at time.Time) WorkflowRun {
	return WorkflowRun{
		ID:                uuid.New(),
		CreatedAt:         at,
		UpdatedAt:         at,
		WorkflowVersionID: versionID,
		Status:            RunStatusRunning,
		WorkspaceID:       workspaceID,
	}
}

// Complete moves a running run to completed.
func (r WorkflowRun) Complete(at time.Time) (WorkflowRun, error) {
	if r.Status != RunStatusRunning {
		return r, apperr.InvalidState(fmt.Sprintf("cannot complete run in status %s", r.Status))
	}
	r.Status = RunStatusCompleted
	r.Error = nil
	r.UpdatedAt = at
	return r, nil
}

// Fail moves a running run to failed and records the cause.
func (r WorkflowRun) Fail(at time.Time, cause error) (WorkflowRun, error) {
	if r.Status != RunStatusRunning {
		return r, apperr.InvalidState(fmt.Sprintf("cannot fail run in status %s", r.Status))
	}
	msg := cause.Error()
	r.Status = RunStatusFailed
	r.Error = &msg
	r.UpdatedAt = at
	return r, nil
}
