package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository/repotest"
	"oxicrm_backend/platform/apperr"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu       sync.Mutex
	messages []Message
	seen     []int
	closed   int
	fetchErr error
}

func (s *fakeSession) Unseen() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []Message
	for _, m := range s.messages {
		if !containsUID(s.seen, m.UID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSession) MarkSeen(uid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, uid)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) seenUIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.seen...)
}

func containsUID(uids []int, uid int) bool {
	for _, u := range uids {
		if u == uid {
			return true
		}
	}
	return false
}

func dialTo(session *fakeSession) Dialer {
	return func(context.Context) (Session, error) { return session, nil }
}

func newService() (*mailing.Service, *repotest.Emails) {
	emails := repotest.NewEmails()
	svc := mailing.NewService(emails, repotest.NewTemplates(), repotest.NewTimeline(), email.NewLogProvider(nil), logger.Discard())
	return svc, emails
}

type manualTicker struct{ ch chan time.Time }

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func TestPollRecordsUnseenMessages(t *testing.T) {
	receivedAt := time.Date(2026, 2, 27, 16, 45, 0, 0, time.UTC)
	session := &fakeSession{messages: []Message{
		{UID: 7, From: "client@example.com", To: "sales@oxicrm.com", Subject: "Re: quote", Text: "Looks good", ReceivedAt: receivedAt},
		{UID: 8, From: "news@example.com", To: "sales@oxicrm.com", Subject: "Newsletter", HTML: "<p>Hi <b>there</b></p><p>Monthly roundup</p>"},
	}}
	svc, emails := newService()
	workspaceID := uuid.New()
	poller := NewPoller(dialTo(session), svc, workspaceID, 0, logger.Discard())

	require.NoError(t, poller.Poll(context.Background()))

	stored := emails.All()
	require.Len(t, stored, 2)
	assert.Equal(t, domain.EmailDirectionInbound, stored[0].Direction)
	assert.Equal(t, domain.EmailStatusReceived, stored[0].Status)
	assert.Equal(t, receivedAt, stored[0].CreatedAt)
	assert.Equal(t, workspaceID, stored[0].WorkspaceID)
	assert.Equal(t, "Hi there\n\nMonthly roundup", stored[1].BodyText)
	require.NotNil(t, stored[1].BodyHTML)
	assert.Equal(t, []int{7, 8}, session.seenUIDs())
	assert.Equal(t, 1, session.closed)
	assert.Equal(t, uint64(2), poller.Stats().Snapshot().Handled)

	// nothing left to do on the next poll
	require.NoError(t, poller.Poll(context.Background()))
	assert.Len(t, emails.All(), 2)
}

func TestPollMarksRejectedMessagesSeen(t *testing.T) {
	session := &fakeSession{messages: []Message{
		{UID: 1, From: "client@example.com", To: "sales@oxicrm.com", Subject: "  ", Text: "no subject"},
		{UID: 2, From: "client@example.com", To: "sales@oxicrm.com", Subject: "hello", Text: "hi"},
	}}
	svc, emails := newService()
	poller := NewPoller(dialTo(session), svc, uuid.Nil, time.Minute, logger.Discard())

	require.NoError(t, poller.Poll(context.Background()))
	require.NoError(t, poller.Poll(context.Background()))

	assert.Len(t, emails.All(), 1)
	assert.Equal(t, []int{1, 2}, session.seenUIDs())
	snap := poller.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(1), snap.Handled)
}

func TestPollLeavesTransientFailuresUnseen(t *testing.T) {
	session := &fakeSession{messages: []Message{
		{UID: 4, From: "client@example.com", To: "sales@oxicrm.com", Subject: "hello", Text: "hi"},
	}}
	svc, emails := newService()
	emails.UpdateErr = apperr.Infrastructure("update email failed", errors.New("connection reset"))
	poller := NewPoller(dialTo(session), svc, uuid.Nil, time.Minute, logger.Discard())

	require.NoError(t, poller.Poll(context.Background()))

	assert.Empty(t, session.seenUIDs())
	assert.Equal(t, uint64(1), poller.Stats().Snapshot().Failed)
}

func TestPollReportsMailboxErrors(t *testing.T) {
	svc, _ := newService()

	session := &fakeSession{fetchErr: errors.New("imap: connection reset")}
	err := NewPoller(dialTo(session), svc, uuid.Nil, 0, logger.Discard()).Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, session.closed)

	dialErr := func(context.Context) (Session, error) { return nil, errors.New("dial tcp: refused") }
	assert.Error(t, NewPoller(dialErr, svc, uuid.Nil, 0, logger.Discard()).Poll(context.Background()))

	assert.ErrorIs(t, NewPoller(nil, svc, uuid.Nil, 0, logger.Discard()).Poll(context.Background()), errNoDialer)
}

func TestRunPollsOnEveryTickAndSurvivesFailures(t *testing.T) {
	session := &fakeSession{fetchErr: errors.New("temporary")}
	svc, emails := newService()
	ticker := &manualTicker{ch: make(chan time.Time)}
	poller := NewPoller(dialTo(session), svc, uuid.Nil, time.Second, logger.Discard()).
		WithTicker(func(time.Duration) jobs.Ticker { return ticker })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return poller.Stats().Snapshot().Failed == 1 }, time.Second, 5*time.Millisecond)

	session.mu.Lock()
	session.fetchErr = nil
	session.messages = []Message{{UID: 3, From: "a@example.com", To: "b@example.com", Subject: "s", Text: "t"}}
	session.mu.Unlock()

	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return len(emails.All()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestFirstAddressIsStable(t *testing.T) {
	assert.Equal(t, "", firstAddress(nil))
	assert.Equal(t, "a@x.com", firstAddress(map[string]string{"b@x.com": "B", "a@x.com": "A"}))
}
