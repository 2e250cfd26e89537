package workflow

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
)

// EmailSender is the send pipeline used by send_email steps.
type EmailSender interface {
	SendEmail(ctx context.Context, in mailing.SendEmailInput) (domain.Email, error)
}

// Executor runs the steps of a workflow version in position order.
type Executor struct {
	runs   repository.WorkflowRunRepository
	steps  repository.WorkflowVersionStepRepository
	sender EmailSender
	log    *logger.Logger
	now    func() time.Time
}

func NewExecutor(runs repository.WorkflowRunRepository, steps repository.WorkflowVersionStepRepository, sender EmailSender, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Discard()
	}
	return &Executor{
		runs:   runs,
		steps:  steps,
		sender: sender,
		log:    log.WithComponent("workflow_executor"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the executor's clock. Intended for tests.
func (x *Executor) WithClock(now func() time.Time) *Executor {
	x.now = now
	return x
}

// Execute creates a run for versionID and executes its steps sequentially.
// The first failing step marks the run failed and stops execution. Step
// failures are recorded on the returned run; only failures to persist the run
// itself are returned as errors.
func (x *Executor) Execute(ctx context.Context, versionID, workspaceID uuid.UUID) (domain.WorkflowRun, error) {
	run := domain.StartRun(versionID, workspaceID, x.now())
	if err := x.runs.Create(ctx, run); err != nil {
		return domain.WorkflowRun{}, fmt.Errorf("create workflow run: %w", err)
	}
	log := x.log.With("run_id", run.ID, "workflow_version_id", versionID)

	stepErr := x.executeSteps(ctx, run)

	var err error
	if stepErr != nil {
		log.Warn("workflow run failed", "error", stepErr)
		run, err = run.Fail(x.now(), stepErr)
	} else {
		run, err = run.Complete(x.now())
	}
	if err != nil {
		return run, err
	}

	if err := x.runs.Update(ctx, run); err != nil {
		return run, fmt.Errorf("update workflow run: %w", err)
	}
	log.Info("workflow run finished", "status", run.Status)
	return run, nil
}

func (x *Executor) executeSteps(ctx context.Context, run domain.WorkflowRun) error {
	stored, err := x.steps.FindByVersionID(ctx, run.WorkflowVersionID)
	if err != nil {
		return fmt.Errorf("load workflow steps: %w", err)
	}
	slices.SortStableFunc(stored, func(a, b domain.WorkflowVersionStep) int {
		return cmp.Compare(a.Position, b.Position)
	})

	for _, s := range stored {
		step, err := ParseStep(s)
		if err == nil {
			err = x.executeStep(ctx, step, run)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) executeStep(ctx context.Context, step Step, run domain.WorkflowRun) error {
	switch st := step.(type) {
	case SendEmailStep:
		return x.sendEmail(ctx, st.Settings, run)
	case CreateRecordStep, IfElseStep, FormStep, UnknownStep:
		x.log.Warn("step type not implemented yet", "step_type", st.stepType(), "run_id", run.ID)
		return nil
	default:
		return fmt.Errorf("unhandled step %T", step)
	}
}

func (x *Executor) sendEmail(ctx context.Context, s SendEmailSettings, run domain.WorkflowRun) error {
	runID := run.ID
	_, err := x.sender.SendEmail(ctx, mailing.SendEmailInput{
		FromEmail:         s.FromEmail,
		ToEmail:           s.ToEmail,
		CcEmails:          s.CcEmails,
		BccEmails:         s.BccEmails,
		Subject:           s.Subject,
		BodyText:          s.BodyText,
		BodyHTML:          s.BodyHTML,
		TemplateID:        s.TemplateID,
		TemplateVariables: s.TemplateVariables,
		WorkflowRunID:     &runID,
		WorkspaceID:       run.WorkspaceID,
	})
	return err
}

// FindRun loads a run by id.
func (x *Executor) FindRun(ctx context.Context, id uuid.UUID) (domain.WorkflowRun, error) {
	return x.runs.FindByID(ctx, id)
}
