package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apphttp "oxicrm_backend/internal/http"
	"oxicrm_backend/platform/events"
	"oxicrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// PublishRequest is the body of POST /api/v1/events.
type PublishRequest struct {
	Topic   string          `json:"topic" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Module lets trusted callers publish domain events onto the bus.
type Module struct {
	bus Bus
}

func NewModule(bus Bus) *Module {
	return &Module{bus: bus}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "events"
}

// RegisterRoutes registers POST /api/v1/events under the workspace group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Workspace.POST("/events", m.Publish)
}

// Publish handles POST /api/v1/events. Payloads without a workspace_id get
// the caller's workspace.
func (m *Module) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	topic := strings.TrimSpace(req.Topic)

	payload := map[string]any{}
	if len(req.Payload) > 0 && string(req.Payload) != "null" {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "payload must be a JSON object", nil)
			return
		}
	}
	if _, ok := payload["workspace_id"]; !ok {
		if workspaceID, ok := httpkit.WorkspaceID(c); ok {
			payload["workspace_id"] = workspaceID.String()
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	err = m.bus.Publish(c.Request.Context(), DomainEvent{Topic: topic, Payload: string(encoded)})
	if err != nil {
		if errors.Is(err, events.ErrNoSubscribers) || errors.Is(err, events.ErrBusClosed) {
			httpkit.Error(c, http.StatusServiceUnavailable, err.Error(), nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"topic": topic})
}

var _ apphttp.Module = (*Module)(nil)
