package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"
	apphttp "oxicrm_backend/internal/http"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository/repotest"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/httpkit"
	"oxicrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	versionID uuid.UUID
	emails    *repotest.Emails
	runs      *repotest.Runs
	steps     *repotest.Steps
	executor  *Executor
}

func newFixture(t *testing.T, steps ...domain.WorkflowVersionStep) *fixture {
	t.Helper()
	f := &fixture{
		emails: repotest.NewEmails(),
		runs:   repotest.NewRuns(),
		steps:  repotest.NewSteps(steps...),
	}
	svc := mailing.NewService(f.emails, repotest.NewTemplates(), repotest.NewTimeline(), email.NewLogProvider(nil), logger.Discard())
	tick := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.executor = NewExecutor(f.runs, f.steps, svc, logger.Discard()).WithClock(func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	})
	return f
}

func sendStep(versionID uuid.UUID, position int, subject string) domain.WorkflowVersionStep {
	settings, _ := json.Marshal(map[string]any{
		"from_email": "noreply@oxicrm.com",
		"to_email":   "sales@oxicrm.com",
		"subject":    subject,
		"body_text":  "Body",
	})
	return domain.WorkflowVersionStep{
		ID:                uuid.New(),
		WorkflowVersionID: versionID,
		Name:              subject,
		StepType:          domain.StepTypeSendEmail,
		Settings:          settings,
		Position:          position,
	}
}

func rawStep(versionID uuid.UUID, position int, stepType domain.StepType, settings string) domain.WorkflowVersionStep {
	return domain.WorkflowVersionStep{
		ID:                uuid.New(),
		WorkflowVersionID: versionID,
		StepType:          stepType,
		Settings:          json.RawMessage(settings),
		Position:          position,
	}
}

func subjects(emails []domain.Email) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, e.Subject)
	}
	return out
}

func TestParseSendEmailSettings(t *testing.T) {
	templateID := uuid.New()
	s, err := ParseSendEmailSettings(json.RawMessage(`{
		"from_email": "a@x.com",
		"to_email": "b@x.com",
		"body_html": "<p>hi</p>",
		"template_id": "` + templateID.String() + `",
		"template_variables": {"first_name": "Ada"},
		"cc_emails": ["c@x.com"],
		"bcc_emails": "not-a-list"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "", s.Subject)
	assert.Equal(t, "", s.BodyText)
	require.NotNil(t, s.BodyHTML)
	assert.Equal(t, "<p>hi</p>", *s.BodyHTML)
	assert.Equal(t, &templateID, s.TemplateID)
	assert.Equal(t, map[string]any{"first_name": "Ada"}, s.TemplateVariables)
	assert.Equal(t, []string{"c@x.com"}, s.CcEmails)
	assert.Nil(t, s.BccEmails)

	s, err = ParseSendEmailSettings(json.RawMessage(`{"from_email":"a@x.com","to_email":"b@x.com","template_id":"welcome"}`))
	require.NoError(t, err)
	assert.Nil(t, s.TemplateID)
}

func TestParseSendEmailSettingsRequiresAddresses(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want string
	}{
		"empty object":    {`{}`, "Missing from_email in settings"},
		"null from":       {`{"from_email":null,"to_email":"b@x.com"}`, "Missing from_email in settings"},
		"numeric to":      {`{"from_email":"a@x.com","to_email":7}`, "Missing to_email in settings"},
		"not an object":   {`[1,2]`, "Missing from_email in settings"},
		"missing to only": {`{"from_email":"a@x.com"}`, "Missing to_email in settings"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSendEmailSettings(json.RawMessage(tc.raw))
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestParseStepVariants(t *testing.T) {
	versionID := uuid.New()
	for stepType, want := range map[domain.StepType]Step{
		domain.StepTypeCreateRecord: CreateRecordStep{Settings: json.RawMessage(`{}`)},
		domain.StepTypeIfElse:       IfElseStep{Settings: json.RawMessage(`{}`)},
		domain.StepTypeForm:         FormStep{Settings: json.RawMessage(`{}`)},
		domain.StepTypeDelay:        UnknownStep{Type: domain.StepTypeDelay},
		"webhook":                   UnknownStep{Type: "webhook"},
	} {
		got, err := ParseStep(rawStep(versionID, 0, stepType, `{}`))
		require.NoError(t, err)
		assert.Equal(t, want, got, string(stepType))
	}
}

func TestExecuteRunsStepsInPositionOrder(t *testing.T) {
	versionID := uuid.New()
	f := newFixture(t,
		sendStep(versionID, 2, "third"),
		sendStep(versionID, 0, "first"),
		rawStep(versionID, 1, domain.StepTypeCreateRecord, `{}`),
		sendStep(versionID, 1, "second"),
		sendStep(uuid.New(), 0, "other version"),
	)
	workspaceID := uuid.New()

	run, err := f.executor.Execute(context.Background(), versionID, workspaceID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Nil(t, run.Error)
	assert.Equal(t, workspaceID, run.WorkspaceID)

	sent := f.emails.All()
	// ties keep the stored order
	assert.Equal(t, []string{"first", "second", "third"}, subjects(sent))
	for _, e := range sent {
		require.NotNil(t, e.WorkflowRunID)
		assert.Equal(t, run.ID, *e.WorkflowRunID)
		assert.Equal(t, workspaceID, e.WorkspaceID)
		assert.Equal(t, domain.EmailStatusSent, e.Status)
	}

	require.Len(t, f.runs.History, 2)
	assert.Equal(t, domain.RunStatusRunning, f.runs.History[0].Status)
	stored, err := f.executor.FindRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
}

func TestExecuteStopsAtFirstFailingStep(t *testing.T) {
	versionID := uuid.New()
	f := newFixture(t,
		sendStep(versionID, 0, "before"),
		rawStep(versionID, 1, domain.StepTypeSendEmail, `{"to_email":"b@x.com"}`),
		sendStep(versionID, 2, "after"),
	)

	run, err := f.executor.Execute(context.Background(), versionID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "Missing from_email in settings", *run.Error)
	assert.Equal(t, []string{"before"}, subjects(f.emails.All()))
}

func TestExecuteRecordsSendValidationFailure(t *testing.T) {
	versionID := uuid.New()
	f := newFixture(t, rawStep(versionID, 0, domain.StepTypeSendEmail, `{"from_email":"noreply@oxicrm.com","to_email":"nobody"}`))

	run, err := f.executor.Execute(context.Background(), versionID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Empty(t, f.emails.All())
}

func TestExecuteWithoutStepsCompletes(t *testing.T) {
	f := newFixture(t)
	run, err := f.executor.Execute(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
}

func TestExecuteReturnsRunPersistenceErrors(t *testing.T) {
	f := newFixture(t)
	f.runs.CreateErr = errors.New("connection refused")

	_, err := f.executor.Execute(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, f.emails.All())
}

type failingSteps struct{}

func (failingSteps) FindByVersionID(context.Context, uuid.UUID) ([]domain.WorkflowVersionStep, error) {
	return nil, apperr.Infrastructure("select steps", errors.New("timeout"))
}

func (failingSteps) Create(context.Context, domain.WorkflowVersionStep) error { return nil }

func TestExecuteFailsRunWhenStepsCannotLoad(t *testing.T) {
	runs := repotest.NewRuns()
	executor := NewExecutor(runs, failingSteps{}, nil, logger.Discard())

	run, err := executor.Execute(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "load workflow steps")
}

func TestRunEndpoints(t *testing.T) {
	versionID := uuid.New()
	f := newFixture(t, sendStep(versionID, 0, "hello"))
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewModule(f.executor).RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Workspace: v1.Group("", httpkit.WorkspaceScope()),
	})
	workspaceID := uuid.New()

	do := func(method, path, workspace string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if workspace != "" {
			req.Header.Set(httpkit.HeaderWorkspaceID, workspace)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/v1/workflow-versions/"+versionID.String()+"/runs", workspaceID.String())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var run domain.WorkflowRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	rec = do(http.MethodGet, "/api/v1/workflow-runs/"+run.ID.String(), workspaceID.String())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/api/v1/workflow-runs/"+run.ID.String(), uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodGet, "/api/v1/workflow-runs/"+uuid.NewString(), workspaceID.String())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodPost, "/api/v1/workflow-versions/nope/runs", workspaceID.String())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
