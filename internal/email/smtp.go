package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPProvider delivers over a direct SMTP connection via go-mail.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	fromName string
}

// NewSMTPProvider creates an SMTPProvider with the given SMTP credentials.
// An empty username disables SMTP AUTH (local relays, mail catchers).
func NewSMTPProvider(host string, port int, username, password, fromName string) *SMTPProvider {
	return &SMTPProvider{
		host:     host,
		port:     port,
		username: username,
		password: password,
		fromName: fromName,
	}
}

func (s *SMTPProvider) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	msg, err := s.buildMessage(req)
	if err != nil {
		return SendResponse{}, err
	}

	client, err := s.newClient()
	if err != nil {
		return SendResponse{}, err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return SendResponse{}, fmt.Errorf("smtp send: %w", err)
	}

	messageID := msg.GetMessageID()
	return SendResponse{
		MessageID: messageID,
		Status:    "sent",
		Metadata: map[string]any{
			"provider":   "smtp",
			"message_id": messageID,
		},
	}, nil
}

// VerifyConfiguration dials the server and authenticates without sending.
func (s *SMTPProvider) VerifyConfiguration(ctx context.Context) error {
	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return client.Close()
}

func (s *SMTPProvider) buildMessage(req SendRequest) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if s.fromName != "" {
		if err := msg.FromFormat(s.fromName, req.From); err != nil {
			return nil, fmt.Errorf("smtp from: %w", err)
		}
	} else if err := msg.From(req.From); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(req.To); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	if len(req.Cc) > 0 {
		if err := msg.Cc(req.Cc...); err != nil {
			return nil, fmt.Errorf("smtp cc: %w", err)
		}
	}
	if len(req.Bcc) > 0 {
		if err := msg.Bcc(req.Bcc...); err != nil {
			return nil, fmt.Errorf("smtp bcc: %w", err)
		}
	}
	msg.Subject(req.Subject)
	msg.SetMessageID()
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, req.BodyText)
	if req.BodyHTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, req.BodyHTML)
	}
	return msg, nil
}

func (s *SMTPProvider) newClient() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}
