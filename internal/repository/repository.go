// Package repository holds the pgx-backed stores for emails, templates,
// timeline activities and workflow runs.
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const errRepoNotConfigured = "repository not configured"

// EmailRepository persists email records.
type EmailRepository interface {
	Create(ctx context.Context, email domain.Email) error
	Update(ctx context.Context, email domain.Email) error
	FindByID(ctx context.Context, id uuid.UUID) (domain.Email, error)
	FindPending(ctx context.Context) ([]domain.Email, error)
	FindByStatus(ctx context.Context, status domain.EmailStatus) ([]domain.Email, error)
}

// EmailTemplateRepository persists email templates.
type EmailTemplateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.EmailTemplate, error)
	FindByName(ctx context.Context, workspaceID uuid.UUID, name string) (domain.EmailTemplate, error)
	Create(ctx context.Context, tpl domain.EmailTemplate) error
}

// TimelineActivityRepository appends timeline entries.
type TimelineActivityRepository interface {
	Create(ctx context.Context, activity domain.TimelineActivity) error
}

// WorkflowRunRepository persists workflow runs.
type WorkflowRunRepository interface {
	Create(ctx context.Context, run domain.WorkflowRun) error
	Update(ctx context.Context, run domain.WorkflowRun) error
	FindByID(ctx context.Context, id uuid.UUID) (domain.WorkflowRun, error)
}

// WorkflowVersionStepRepository reads the steps of a workflow version.
type WorkflowVersionStepRepository interface {
	FindByVersionID(ctx context.Context, versionID uuid.UUID) ([]domain.WorkflowVersionStep, error)
	Create(ctx context.Context, step domain.WorkflowVersionStep) error
}

func notConfigured(op string) error {
	return apperr.Internal(errRepoNotConfigured).WithOp(op)
}

// mapError turns a driver error into an apperr with the operation attached.
func mapError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity + " not found").WithOp(op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Wrap(apperr.KindConflict, entity+" already exists", err).WithOp(op)
	}
	return apperr.Infrastructure(op+" failed", err).WithOp(op)
}

// encodeJSON returns nil for empty values so the column stores NULL.
func encodeJSON[T any](v T, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
