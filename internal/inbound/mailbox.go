// Package inbound polls an IMAP mailbox and feeds unseen messages into the
// receive pipeline.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"oxicrm_backend/platform/config"

	imap "github.com/BrianLeishman/go-imap"
)

// Message is one fetched mailbox message.
type Message struct {
	UID        int
	From       string
	To         string
	Subject    string
	Text       string
	HTML       string
	ReceivedAt time.Time
}

// Session is an open, folder-selected mailbox connection.
type Session interface {
	Unseen() ([]Message, error)
	MarkSeen(uid int) error
	Close() error
}

// Dialer opens a new Session.
type Dialer func(ctx context.Context) (Session, error)

// NewIMAPDialer connects with the configured IMAP credentials and selects the
// configured folder.
func NewIMAPDialer(cfg config.InboundConfig) Dialer {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dialer, err := imap.New(cfg.GetIMAPUsername(), cfg.GetIMAPPassword(), cfg.GetIMAPHost(), cfg.GetIMAPPort())
		if err != nil {
			return nil, fmt.Errorf("imap connect %s: %w", cfg.GetIMAPHost(), err)
		}
		folder := cfg.GetIMAPFolder()
		if folder == "" {
			folder = "INBOX"
		}
		if err := dialer.SelectFolder(folder); err != nil {
			_ = dialer.Close()
			return nil, fmt.Errorf("imap select %s: %w", folder, err)
		}
		return &imapSession{dialer: dialer}, nil
	}
}

type imapSession struct {
	dialer *imap.Dialer
}

func (s *imapSession) Unseen() ([]Message, error) {
	uids, err := s.dialer.GetUIDs("UNSEEN")
	if err != nil {
		return nil, fmt.Errorf("imap search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	fetched, err := s.dialer.GetEmails(uids...)
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	out := make([]Message, 0, len(fetched))
	for _, uid := range uids {
		e, ok := fetched[uid]
		if !ok || e == nil {
			continue
		}
		out = append(out, Message{
			UID:        uid,
			From:       firstAddress(e.From),
			To:         firstAddress(e.To),
			Subject:    e.Subject,
			Text:       e.Text,
			HTML:       e.HTML,
			ReceivedAt: e.Received,
		})
	}
	return out, nil
}

func (s *imapSession) MarkSeen(uid int) error {
	return s.dialer.MarkSeen(uid)
}

func (s *imapSession) Close() error {
	return s.dialer.Close()
}

// firstAddress picks the lexically first address so the choice is stable.
func firstAddress(addresses imap.EmailAddresses) string {
	if len(addresses) == 0 {
		return ""
	}
	keys := make([]string, 0, len(addresses))
	for address := range addresses {
		keys = append(keys, address)
	}
	slices.Sort(keys)
	return keys[0]
}

var errNoDialer = errors.New("inbound poller has no dialer")
