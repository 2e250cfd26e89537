// Package email provides the outbound provider port, its SMTP, Brevo and
// logging implementations, and the plain-text template engine.
package email

import (
	"context"
	"fmt"
	"time"

	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/logger"
)

// SendRequest is the rendered message handed to a provider.
type SendRequest struct {
	From     string
	To       string
	Cc       []string
	Bcc      []string
	Subject  string
	BodyText string
	BodyHTML string
	Metadata map[string]any
}

// SendResponse is what a provider reports back on success.
type SendResponse struct {
	MessageID string
	Status    string
	Metadata  map[string]any
}

// Provider delivers a single message.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (SendResponse, error)
	VerifyConfiguration(ctx context.Context) error
}

// NewProvider selects the provider named by EMAIL_PROVIDER and bounds each
// call with the configured timeout.
func NewProvider(cfg config.EmailConfig, log *logger.Logger) (Provider, error) {
	var p Provider
	switch cfg.GetEmailProvider() {
	case config.EmailProviderSMTP:
		p = NewSMTPProvider(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromName())
	case config.EmailProviderBrevo:
		p = NewBrevoProvider(cfg.GetBrevoAPIKey(), cfg.GetEmailFromName())
	case config.EmailProviderLog, "":
		p = NewLogProvider(log)
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.GetEmailProvider())
	}
	return WithTimeout(p, cfg.GetEmailProviderTimeout()), nil
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every Send and VerifyConfiguration call. A non-positive
// timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

func (t *timeoutProvider) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		resp SendResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.next.Send(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return SendResponse{}, fmt.Errorf("email provider timed out after %s: %w", t.timeout, ctx.Err())
	}
}

func (t *timeoutProvider) VerifyConfiguration(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.VerifyConfiguration(ctx)
}
