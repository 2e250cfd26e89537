package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const brevoBaseURL = "https://api.brevo.com/v3"

// BrevoProvider sends through the Brevo transactional email API.
type BrevoProvider struct {
	apiKey   string
	fromName string
	baseURL  string
	client   *http.Client
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmailRequest struct {
	Sender      brevoAddress      `json:"sender"`
	To          []brevoAddress    `json:"to"`
	Cc          []brevoAddress    `json:"cc,omitempty"`
	Bcc         []brevoAddress    `json:"bcc,omitempty"`
	Subject     string            `json:"subject"`
	TextContent string            `json:"textContent"`
	HTMLContent string            `json:"htmlContent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoEmailResponse struct {
	MessageID string `json:"messageId"`
}

// NewBrevoProvider creates a provider for the public Brevo API.
func NewBrevoProvider(apiKey, fromName string) *BrevoProvider {
	return &BrevoProvider{
		apiKey:   apiKey,
		fromName: fromName,
		baseURL:  brevoBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the provider at another API host.
func (b *BrevoProvider) WithBaseURL(baseURL string) *BrevoProvider {
	b.baseURL = baseURL
	return b
}

func (b *BrevoProvider) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	payload := brevoEmailRequest{
		Sender:      brevoAddress{Name: b.fromName, Email: req.From},
		To:          []brevoAddress{{Email: req.To}},
		Cc:          toBrevoAddresses(req.Cc),
		Bcc:         toBrevoAddresses(req.Bcc),
		Subject:     req.Subject,
		TextContent: req.BodyText,
		HTMLContent: req.BodyHTML,
	}
	if len(req.Metadata) > 0 {
		encoded, err := json.Marshal(req.Metadata)
		if err != nil {
			return SendResponse{}, err
		}
		payload.Headers = map[string]string{"X-Mailin-custom": string(encoded)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return SendResponse{}, err
	}
	b.setHeaders(httpReq)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return SendResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResponse{}, fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	var decoded brevoEmailResponse
	_ = json.Unmarshal(data, &decoded)

	return SendResponse{
		MessageID: decoded.MessageID,
		Status:    "sent",
		Metadata: map[string]any{
			"provider":   "brevo",
			"message_id": decoded.MessageID,
		},
	}, nil
}

// VerifyConfiguration checks the API key against the account endpoint.
func (b *BrevoProvider) VerifyConfiguration(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/account", nil)
	if err != nil {
		return err
	}
	b.setHeaders(httpReq)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("brevo account check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (b *BrevoProvider) setHeaders(req *http.Request) {
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")
}

func toBrevoAddresses(addrs []string) []brevoAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]brevoAddress, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, brevoAddress{Email: a})
	}
	return out
}
