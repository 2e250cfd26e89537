package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/repository/repotest"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stored(status domain.EmailStatus, to string) domain.Email {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Email{
		ID:          uuid.New(),
		CreatedAt:   at,
		UpdatedAt:   at,
		Direction:   domain.EmailDirectionOutbound,
		Status:      status,
		FromEmail:   "noreply@oxicrm.com",
		ToEmail:     to,
		Subject:     "Subject",
		BodyText:    "Body",
		WorkspaceID: uuid.New(),
	}
}

func TestMemoryQueueIsFIFOAndBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Name: "a"}))
	require.NoError(t, q.Enqueue(ctx, Job{Name: "b"}))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(blocked, Job{Name: "c"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, q.Len())

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, Job{Name: "c"}) }()

	assert.Equal(t, "a", (<-q.Jobs()).Name)
	require.NoError(t, <-done)
	assert.Equal(t, "b", (<-q.Jobs()).Name)
	assert.Equal(t, "c", (<-q.Jobs()).Name)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "kept"}))

	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Name: "late"}), ErrQueueClosed)
	job, ok := <-q.Jobs()
	assert.True(t, ok)
	assert.Equal(t, "kept", job.Name)
	_, ok = <-q.Jobs()
	assert.False(t, ok)
}

func TestMemoryQueueCloseReleasesBlockedEnqueue(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), Job{Name: "full"}))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(context.Background(), Job{Name: "waiting"}) }()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not return after close")
	}
}

func TestSendPendingEmails(t *testing.T) {
	a := stored(domain.EmailStatusPending, "a@x.com")
	b := stored(domain.EmailStatusPending, "bounce@x.com")
	done := stored(domain.EmailStatusSent, "c@x.com")
	repo := repotest.NewEmails(a, b, done)
	provider := email.NewLogProvider(nil)
	provider.Fail = func(req email.SendRequest) error {
		if req.To == "bounce@x.com" {
			return errors.New("550 mailbox unavailable")
		}
		return nil
	}
	w := NewEmailJobWorker(repo, provider, 0, logger.Discard())

	require.NoError(t, w.Process(context.Background(), NewSendPendingEmailsJob()))

	gotA, _ := repo.FindByID(context.Background(), a.ID)
	gotB, _ := repo.FindByID(context.Background(), b.ID)
	gotDone, _ := repo.FindByID(context.Background(), done.ID)
	assert.Equal(t, domain.EmailStatusSent, gotA.Status)
	assert.Equal(t, domain.EmailStatusFailed, gotB.Status)
	require.NotNil(t, gotB.ErrorMessage)
	assert.Equal(t, "550 mailbox unavailable", *gotB.ErrorMessage)
	assert.Equal(t, done, gotDone)
	assert.Len(t, provider.Sent(), 1)
	assert.Equal(t, uint64(1), w.Stats().Snapshot().Handled)
}

func TestSendBulkEmail(t *testing.T) {
	a := stored(domain.EmailStatusFailed, "a@x.com")
	b := stored(domain.EmailStatusPending, "b@x.com")
	repo := repotest.NewEmails(a, b)
	provider := email.NewLogProvider(nil)
	w := NewEmailJobWorker(repo, provider, 0, logger.Discard())

	job, err := NewSendBulkEmailJob([]uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.NoError(t, w.Process(context.Background(), job))

	for _, e := range repo.All() {
		assert.Equal(t, domain.EmailStatusSent, e.Status)
		assert.Nil(t, e.FailedAt)
	}
	assert.Len(t, provider.Sent(), 2)
}

func TestSendPendingEmailsLogsUpdateFailures(t *testing.T) {
	a := stored(domain.EmailStatusPending, "a@x.com")
	b := stored(domain.EmailStatusPending, "b@x.com")
	repo := repotest.NewEmails(a, b)
	repo.UpdateErr = apperr.Infrastructure("update email failed", errors.New("connection reset"))
	var buf bytes.Buffer
	w := NewEmailJobWorker(repo, email.NewLogProvider(nil), 0, logger.NewWithWriter("production", &buf))

	require.NoError(t, w.Process(context.Background(), NewSendPendingEmailsJob()))

	assert.Equal(t, 2, strings.Count(buf.String(), `"msg":"database_error"`))
	assert.Contains(t, buf.String(), "update email "+a.ID.String())
	assert.Contains(t, buf.String(), `"failed":2`)
}

func TestSendBulkEmailBadPayloads(t *testing.T) {
	known := stored(domain.EmailStatusPending, "a@x.com")
	cases := map[string]struct {
		payload string
		kind    apperr.Kind
	}{
		"not json":        {payload: `{"email_ids":`, kind: apperr.KindValidation},
		"missing ids":     {payload: `{}`, kind: apperr.KindValidation},
		"ids not strings": {payload: `{"email_ids":[1,2]}`, kind: apperr.KindValidation},
		"invalid uuid":    {payload: `{"email_ids":["nope"]}`, kind: apperr.KindValidation},
		"unknown id":      {payload: `{"email_ids":["` + uuid.NewString() + `","` + known.ID.String() + `"]}`, kind: apperr.KindNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := repotest.NewEmails(known)
			w := NewEmailJobWorker(repo, email.NewLogProvider(nil), 0, logger.Discard())

			err := w.Process(context.Background(), Job{Name: JobSendBulkEmail, Payload: tc.payload})

			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
			assert.Equal(t, uint64(1), w.Stats().Snapshot().Failed)
		})
	}
}

func TestUnknownJobIsIgnored(t *testing.T) {
	w := NewEmailJobWorker(repotest.NewEmails(), email.NewLogProvider(nil), 0, logger.Discard())
	assert.NoError(t, w.Process(context.Background(), Job{Name: "reticulate_splines"}))
}

func TestWorkerRunContinuesAfterFailures(t *testing.T) {
	pending := stored(domain.EmailStatusPending, "a@x.com")
	repo := repotest.NewEmails(pending)
	w := NewEmailJobWorker(repo, email.NewLogProvider(nil), 0, logger.Discard())
	q := NewMemoryQueue(10)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{Name: JobSendBulkEmail, Payload: "garbage"}))
	require.NoError(t, q.Enqueue(ctx, Job{Name: "unknown"}))
	require.NoError(t, q.Enqueue(ctx, NewSendPendingEmailsJob()))
	q.Close()

	w.Run(ctx, q.Jobs())

	got, _ := repo.FindByID(ctx, pending.ID)
	assert.Equal(t, domain.EmailStatusSent, got.Status)
	snap := w.Stats().Snapshot()
	assert.Equal(t, uint64(2), snap.Handled)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.NotEmpty(t, snap.LastError)
}

type manualTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func TestPendingEmailTickerEnqueuesOnEveryTick(t *testing.T) {
	queue := &recordingQueue{}
	mt := &manualTicker{ch: make(chan time.Time)}
	var gotInterval time.Duration
	ticker := NewPendingEmailTicker(queue, 0, logger.Discard()).WithTicker(func(d time.Duration) Ticker {
		gotInterval = d
		return mt
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()

	mt.ch <- time.Now()
	mt.ch <- time.Now()
	mt.ch <- time.Now()
	cancel()
	<-done

	assert.Equal(t, 60*time.Second, gotInterval)
	assert.Equal(t, 3, queue.count())
	assert.Equal(t, JobSendPendingEmails, queue.jobs[0].Name)
	assert.True(t, mt.stopped)
	assert.Equal(t, uint64(3), ticker.Stats().Snapshot().Handled)
}

func TestPendingEmailTickerCountsEnqueueErrors(t *testing.T) {
	queue := &recordingQueue{err: ErrQueueClosed}
	mt := &manualTicker{ch: make(chan time.Time)}
	ticker := NewPendingEmailTicker(queue, time.Second, logger.Discard()).WithTicker(func(time.Duration) Ticker { return mt })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()
	mt.ch <- time.Now()
	mt.ch <- time.Now()
	cancel()
	<-done

	snap := ticker.Stats().Snapshot()
	assert.Equal(t, uint64(2), snap.Failed)
	assert.Equal(t, ErrQueueClosed.Error(), snap.LastError)
}
