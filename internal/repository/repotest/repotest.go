// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"slices"
	"sync"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/apperr"

	"github.com/google/uuid"
)

// Emails is an in-memory EmailRepository. Every Create and Update is kept in
// History so tests can inspect intermediate states.
type Emails struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.Email
	order   []uuid.UUID
	History []domain.Email
	// UpdateErr, when set, is returned by every Update.
	UpdateErr error
}

func NewEmails(seed ...domain.Email) *Emails {
	r := &Emails{byID: make(map[uuid.UUID]domain.Email)}
	for _, e := range seed {
		r.byID[e.ID] = e
		r.order = append(r.order, e.ID)
	}
	return r
}

func (r *Emails) Create(_ context.Context, e domain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[e.ID]; exists {
		return apperr.Conflict("email already exists")
	}
	r.byID[e.ID] = e
	r.order = append(r.order, e.ID)
	r.History = append(r.History, e)
	return nil
}

func (r *Emails) Update(_ context.Context, e domain.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	if _, exists := r.byID[e.ID]; !exists {
		return apperr.NotFound("email not found")
	}
	r.byID[e.ID] = e
	r.History = append(r.History, e)
	return nil
}

func (r *Emails) FindByID(_ context.Context, id uuid.UUID) (domain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return domain.Email{}, apperr.NotFound("email not found")
	}
	return e, nil
}

func (r *Emails) FindPending(ctx context.Context) ([]domain.Email, error) {
	return r.FindByStatus(ctx, domain.EmailStatusPending)
}

func (r *Emails) FindByStatus(_ context.Context, status domain.EmailStatus) ([]domain.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Email
	for _, id := range r.order {
		if e := r.byID[id]; e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns the current state of every stored email in insertion order.
func (r *Emails) All() []domain.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Email, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Templates is an in-memory EmailTemplateRepository.
type Templates struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.EmailTemplate
}

func NewTemplates(seed ...domain.EmailTemplate) *Templates {
	r := &Templates{byID: make(map[uuid.UUID]domain.EmailTemplate)}
	for _, tpl := range seed {
		r.byID[tpl.ID] = tpl
	}
	return r
}

func (r *Templates) FindByID(_ context.Context, id uuid.UUID) (domain.EmailTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.byID[id]
	if !ok {
		return domain.EmailTemplate{}, apperr.NotFound("email template not found")
	}
	return tpl, nil
}

func (r *Templates) FindByName(_ context.Context, workspaceID uuid.UUID, name string) (domain.EmailTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tpl := range r.byID {
		if tpl.WorkspaceID == workspaceID && tpl.Name == name {
			return tpl, nil
		}
	}
	return domain.EmailTemplate{}, apperr.NotFound("email template not found")
}

func (r *Templates) Create(_ context.Context, tpl domain.EmailTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tpl.ID] = tpl
	return nil
}

// Timeline is an in-memory TimelineActivityRepository.
type Timeline struct {
	mu         sync.Mutex
	activities []domain.TimelineActivity
	// CreateErr, when set, is returned by every Create.
	CreateErr error
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (r *Timeline) Create(_ context.Context, a domain.TimelineActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.activities = append(r.activities, a)
	return nil
}

// Activities returns a copy of every stored activity in order.
func (r *Timeline) Activities() []domain.TimelineActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.activities)
}

// Runs is an in-memory WorkflowRunRepository.
type Runs struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.WorkflowRun
	History []domain.WorkflowRun
	// CreateErr, when set, is returned by every Create.
	CreateErr error
}

func NewRuns() *Runs {
	return &Runs{byID: make(map[uuid.UUID]domain.WorkflowRun)}
}

func (r *Runs) Create(_ context.Context, run domain.WorkflowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.byID[run.ID] = run
	r.History = append(r.History, run)
	return nil
}

func (r *Runs) Update(_ context.Context, run domain.WorkflowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[run.ID]; !ok {
		return apperr.NotFound("workflow run not found")
	}
	r.byID[run.ID] = run
	r.History = append(r.History, run)
	return nil
}

func (r *Runs) FindByID(_ context.Context, id uuid.UUID) (domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[id]
	if !ok {
		return domain.WorkflowRun{}, apperr.NotFound("workflow run not found")
	}
	return run, nil
}

// Steps is an in-memory WorkflowVersionStepRepository that returns steps in
// insertion order.
type Steps struct {
	mu    sync.Mutex
	steps []domain.WorkflowVersionStep
}

func NewSteps(seed ...domain.WorkflowVersionStep) *Steps {
	return &Steps{steps: slices.Clone(seed)}
}

func (r *Steps) FindByVersionID(_ context.Context, versionID uuid.UUID) ([]domain.WorkflowVersionStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WorkflowVersionStep
	for _, s := range r.steps {
		if s.WorkflowVersionID == versionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Steps) Create(_ context.Context, step domain.WorkflowVersionStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	return nil
}
