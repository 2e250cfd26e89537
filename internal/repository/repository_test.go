package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type databaseURL string

func (u databaseURL) GetDatabaseURL() string { return string(u) }

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("oxicrm"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, databaseURL(connStr)))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresRepositories(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	workspaceID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	emails := NewEmailRepo(pool)
	templates := NewTemplateRepo(pool)
	timeline := NewTimelineRepo(pool)
	runs := NewWorkflowRunRepo(pool)
	steps := NewWorkflowStepRepo(pool)

	t.Run("email lifecycle", func(t *testing.T) {
		e := domain.Email{
			ID:          uuid.New(),
			CreatedAt:   now,
			UpdatedAt:   now,
			Direction:   domain.EmailDirectionOutbound,
			Status:      domain.EmailStatusPending,
			FromEmail:   "noreply@oxicrm.com",
			ToEmail:     "sales@oxicrm.com",
			CcEmails:    []string{"cc@oxicrm.com"},
			Subject:     "Hello",
			BodyText:    "Body",
			WorkspaceID: workspaceID,
		}
		require.NoError(t, emails.Create(ctx, e))

		pending, err := emails.FindPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, []string{"cc@oxicrm.com"}, pending[0].CcEmails)
		assert.Nil(t, pending[0].Metadata)

		activity := domain.TimelineForEmail("Email sent to sales@oxicrm.com", e, now)
		require.NoError(t, timeline.Create(ctx, activity))

		sent := e.MarkSent(now.Add(time.Second), map[string]any{"message_id": "m-1"}).
			WithTimelineActivity(activity.ID, now.Add(time.Second))
		require.NoError(t, emails.Update(ctx, sent))

		got, err := emails.FindByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EmailStatusSent, got.Status)
		assert.Equal(t, "m-1", got.Metadata["message_id"])
		require.NotNil(t, got.TimelineActivityID)
		assert.Equal(t, activity.ID, *got.TimelineActivityID)
		assert.True(t, got.SentAt.Equal(*sent.SentAt))

		pending, err = emails.FindPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("missing rows map to not found", func(t *testing.T) {
		_, err := emails.FindByID(ctx, uuid.New())
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		err = emails.Update(ctx, domain.Email{ID: uuid.New(), WorkspaceID: workspaceID})
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		_, err = templates.FindByName(ctx, workspaceID, "absent")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("template names are unique per workspace", func(t *testing.T) {
		tpl := domain.EmailTemplate{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, Name: "welcome", Subject: "Hi {{name}}", BodyText: "Welcome", Category: "general", WorkspaceID: workspaceID}
		require.NoError(t, templates.Create(ctx, tpl))

		found, err := templates.FindByName(ctx, workspaceID, "welcome")
		require.NoError(t, err)
		assert.Equal(t, tpl.ID, found.ID)

		tpl.ID = uuid.New()
		err = templates.Create(ctx, tpl)
		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperr.KindConflict, appErr.Kind)
	})

	t.Run("workflow runs and steps", func(t *testing.T) {
		versionID := uuid.New()
		require.NoError(t, steps.Create(ctx, domain.WorkflowVersionStep{
			ID: uuid.New(), CreatedAt: now, WorkflowVersionID: versionID, StepType: domain.StepTypeSendEmail,
			Settings: json.RawMessage(`{"from_email":"a@x.com","to_email":"b@x.com"}`), Position: 2, WorkspaceID: workspaceID,
		}))
		require.NoError(t, steps.Create(ctx, domain.WorkflowVersionStep{
			ID: uuid.New(), CreatedAt: now.Add(time.Millisecond), WorkflowVersionID: versionID, StepType: domain.StepTypeDelay,
			Position: 1, WorkspaceID: workspaceID,
		}))

		found, err := steps.FindByVersionID(ctx, versionID)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.JSONEq(t, `{"from_email":"a@x.com","to_email":"b@x.com"}`, string(found[0].Settings))
		assert.JSONEq(t, `{}`, string(found[1].Settings))

		run := domain.StartRun(versionID, workspaceID, now)
		require.NoError(t, runs.Create(ctx, run))
		failed, err := run.Fail(now.Add(time.Second), errors.New("Missing to_email in settings"))
		require.NoError(t, err)
		require.NoError(t, runs.Update(ctx, failed))

		stored, err := runs.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusFailed, stored.Status)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "Missing to_email in settings", *stored.Error)
	})
}

func TestNilRepositoryIsNotConfigured(t *testing.T) {
	var repo *EmailRepo
	err := repo.Create(context.Background(), domain.Email{})
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	_, err = (*WorkflowRunRepo)(nil).FindByID(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}
