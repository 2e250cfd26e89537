package repository

import (
	"context"
	"encoding/json"

	"oxicrm_backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opRunCreate      = "workflow_run.create"
	opRunUpdate      = "workflow_run.update"
	opRunFindByID    = "workflow_run.find_by_id"
	opStepCreate     = "workflow_step.create"
	opStepsByVersion = "workflow_step.find_by_version"
)

// WorkflowRunRepo stores workflow runs.
type WorkflowRunRepo struct {
	pool *pgxpool.Pool
}

func NewWorkflowRunRepo(pool *pgxpool.Pool) *WorkflowRunRepo {
	return &WorkflowRunRepo{pool: pool}
}

func (r *WorkflowRunRepo) Create(ctx context.Context, run domain.WorkflowRun) error {
	if r == nil || r.pool == nil {
		return notConfigured(opRunCreate)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workflow_runs (id, workflow_version_id, status, output, error, workspace_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.WorkflowVersionID, string(run.Status), rawOrNil(run.Output), run.Error, run.WorkspaceID, run.CreatedAt, run.UpdatedAt,
	)
	return mapError(opRunCreate, "workflow run", err)
}

func (r *WorkflowRunRepo) Update(ctx context.Context, run domain.WorkflowRun) error {
	if r == nil || r.pool == nil {
		return notConfigured(opRunUpdate)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE workflow_runs
		 SET status = $2, output = $3, error = $4, updated_at = $5
		 WHERE id = $1`,
		run.ID, string(run.Status), rawOrNil(run.Output), run.Error, run.UpdatedAt,
	)
	if err != nil {
		return mapError(opRunUpdate, "workflow run", err)
	}
	if tag.RowsAffected() == 0 {
		return mapError(opRunUpdate, "workflow run", pgx.ErrNoRows)
	}
	return nil
}

func (r *WorkflowRunRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.WorkflowRun, error) {
	if r == nil || r.pool == nil {
		return domain.WorkflowRun{}, notConfigured(opRunFindByID)
	}
	var (
		run    domain.WorkflowRun
		status string
		output []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, workflow_version_id, status, output, error, workspace_id, created_at, updated_at
		 FROM workflow_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.WorkflowVersionID, &status, &output, &run.Error, &run.WorkspaceID, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return domain.WorkflowRun{}, mapError(opRunFindByID, "workflow run", err)
	}
	run.Status = domain.ParseRunStatus(status)
	if len(output) > 0 {
		run.Output = json.RawMessage(output)
	}
	return run, nil
}

// WorkflowStepRepo reads and writes workflow version steps.
type WorkflowStepRepo struct {
	pool *pgxpool.Pool
}

func NewWorkflowStepRepo(pool *pgxpool.Pool) *WorkflowStepRepo {
	return &WorkflowStepRepo{pool: pool}
}

// FindByVersionID returns the steps of a version in storage order. Callers
// sort by position themselves.
func (r *WorkflowStepRepo) FindByVersionID(ctx context.Context, versionID uuid.UUID) ([]domain.WorkflowVersionStep, error) {
	if r == nil || r.pool == nil {
		return nil, notConfigured(opStepsByVersion)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, workflow_version_id, name, step_type, settings, position, workspace_id, created_at
		 FROM workflow_version_steps
		 WHERE workflow_version_id = $1
		 ORDER BY created_at ASC, id ASC`, versionID)
	if err != nil {
		return nil, mapError(opStepsByVersion, "workflow step", err)
	}
	defer rows.Close()

	var steps []domain.WorkflowVersionStep
	for rows.Next() {
		var (
			step     domain.WorkflowVersionStep
			stepType string
			settings []byte
		)
		if err := rows.Scan(&step.ID, &step.WorkflowVersionID, &step.Name, &stepType, &settings, &step.Position, &step.WorkspaceID, &step.CreatedAt); err != nil {
			return nil, mapError(opStepsByVersion, "workflow step", err)
		}
		step.StepType = domain.StepType(stepType)
		step.Settings = json.RawMessage(settings)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(opStepsByVersion, "workflow step", err)
	}
	return steps, nil
}

func (r *WorkflowStepRepo) Create(ctx context.Context, step domain.WorkflowVersionStep) error {
	if r == nil || r.pool == nil {
		return notConfigured(opStepCreate)
	}
	settings := []byte(step.Settings)
	if len(settings) == 0 {
		settings = []byte("{}")
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workflow_version_steps (id, workflow_version_id, name, step_type, settings, position, workspace_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		step.ID, step.WorkflowVersionID, step.Name, string(step.StepType), settings, step.Position, step.WorkspaceID, step.CreatedAt,
	)
	return mapError(opStepCreate, "workflow step", err)
}

func rawOrNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
