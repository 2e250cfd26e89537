package mailing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "oxicrm_backend/internal/http"
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

func newEngine(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	f := newFixture(t)
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewModule(f.svc).RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Workspace: v1.Group("", httpkit.WorkspaceScope()),
		Webhooks:  v1.Group("/webhooks", httpkit.NewWebhookRateLimiter(logger.Discard()).RateLimit()),
	})
	return engine, f
}

func doJSON(engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSendEndpoint(t *testing.T) {
	engine, f := newEngine(t)
	workspaceID := uuid.New()
	headers := map[string]string{httpkit.HeaderWorkspaceID: workspaceID.String()}

	rec := doJSON(engine, http.MethodPost, "/api/v1/emails", map[string]any{
		"from_email": "noreply@oxicrm.com",
		"to_email":   "sales@oxicrm.com",
		"subject":    "Hello",
		"body_text":  "Body",
	}, headers)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp EmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp.Status)
	assert.Equal(t, msgEmailProcessed, resp.Message)
	assert.Equal(t, workspaceID, f.emails.All()[0].WorkspaceID)

	rec = doJSON(engine, http.MethodGet, "/api/v1/emails/"+resp.ID.String(), nil, headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(engine, http.MethodGet, "/api/v1/emails/"+resp.ID.String(), nil, map[string]string{httpkit.HeaderWorkspaceID: uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(engine, http.MethodGet, "/api/v1/emails?status=sent", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = doJSON(engine, http.MethodGet, "/api/v1/emails?status=bounced", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEndpointValidationError(t *testing.T) {
	engine, _ := newEngine(t)

	rec := doJSON(engine, http.MethodPost, "/api/v1/emails", map[string]any{
		"from_email": "noreply",
		"to_email":   "sales@oxicrm.com",
		"subject":    "Hello",
		"body_text":  "Body",
	}, map[string]string{httpkit.HeaderWorkspaceID: uuid.NewString()})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body.Kind)
}

func TestInboundWebhook(t *testing.T) {
	engine, f := newEngine(t)

	rec := doJSON(engine, http.MethodPost, "/api/v1/webhooks/inbound-email", map[string]any{
		"from_email":  "customer@example.com",
		"to_email":    "support@oxicrm.com",
		"subject":     "Question",
		"body_text":   "Hi",
		"received_at": "2026-02-27T18:30:00Z",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stored := f.emails.All()
	require.Len(t, stored, 1)
	assert.Equal(t, uuid.Nil, stored[0].WorkspaceID)
	assert.Equal(t, 2026, stored[0].CreatedAt.Year())

	rec = doJSON(engine, http.MethodPost, "/api/v1/webhooks/inbound-email", map[string]any{"from_email": "x"}, map[string]string{httpkit.HeaderWorkspaceID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
