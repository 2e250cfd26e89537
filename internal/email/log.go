package email

import (
	"context"
	"sync"

	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
)

// LogProvider accepts every message, logs it and keeps a copy. It is the
// development default and the provider used by tests.
type LogProvider struct {
	log  *logger.Logger
	mu   sync.Mutex
	sent []SendRequest
	// Fail, when set, decides per request whether the send errors.
	Fail func(SendRequest) error
}

// NewLogProvider creates a LogProvider. A nil logger is allowed.
func NewLogProvider(log *logger.Logger) *LogProvider {
	return &LogProvider{log: log}
}

func (p *LogProvider) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	if err := ctx.Err(); err != nil {
		return SendResponse{}, err
	}
	if p.Fail != nil {
		if err := p.Fail(req); err != nil {
			return SendResponse{}, err
		}
	}

	p.mu.Lock()
	p.sent = append(p.sent, req)
	p.mu.Unlock()

	messageID := uuid.NewString()
	if p.log != nil {
		p.log.Info("email delivered to log provider",
			"message_id", messageID,
			"from", req.From,
			"to", req.To,
			"subject", req.Subject,
		)
	}
	return SendResponse{
		MessageID: messageID,
		Status:    "sent",
		Metadata: map[string]any{
			"provider":   "log",
			"message_id": messageID,
		},
	}, nil
}

func (p *LogProvider) VerifyConfiguration(context.Context) error { return nil }

// Sent returns a copy of every accepted request in order.
func (p *LogProvider) Sent() []SendRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SendRequest, len(p.sent))
	copy(out, p.sent)
	return out
}
