package mailing

import (
	"net/http"
	"strings"

	"oxicrm_backend/internal/domain"
	"oxicrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest     = "invalid request"
	msgInvalidEmailID     = "invalid email id"
	msgWorkspaceRequired  = "workspace is required"
	msgEmailProcessed     = "Email processed successfully"
	msgInboundProcessed   = "Inbound email processed successfully"
	msgUnknownEmailStatus = "unknown email status"
)

// EmailResponse is returned by the send and inbound endpoints.
type EmailResponse struct {
	ID      uuid.UUID `json:"id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// Handler serves the email endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates the email handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the workspace-scoped email routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Send)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
}

// RegisterWebhookRoutes mounts the inbound email webhook.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/inbound-email", h.Inbound)
}

// Send handles POST /api/v1/emails
func (h *Handler) Send(c *gin.Context) {
	var req SendEmailInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	workspaceID, ok := httpkit.WorkspaceID(c)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgWorkspaceRequired, nil)
		return
	}
	req.WorkspaceID = workspaceID

	sent, err := h.svc.SendEmail(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, EmailResponse{ID: sent.ID, Status: string(sent.Status), Message: msgEmailProcessed})
}

// Inbound handles POST /api/v1/webhooks/inbound-email
func (h *Handler) Inbound(c *gin.Context) {
	var req ReceiveEmailInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(c.GetHeader(httpkit.HeaderWorkspaceID)); raw != "" {
		workspaceID, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "invalid "+httpkit.HeaderWorkspaceID)
			return
		}
		req.WorkspaceID = workspaceID
	}

	received, err := h.svc.ReceiveEmail(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, EmailResponse{ID: received.ID, Status: string(received.Status), Message: msgInboundProcessed})
}

// GetByID handles GET /api/v1/emails/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidEmailID, nil)
		return
	}

	found, err := h.svc.FindByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	workspaceID, _ := httpkit.WorkspaceID(c)
	if found.WorkspaceID != workspaceID {
		httpkit.Error(c, http.StatusNotFound, "email not found", nil)
		return
	}
	httpkit.OK(c, found)
}

// List handles GET /api/v1/emails?status=pending
func (h *Handler) List(c *gin.Context) {
	raw := c.DefaultQuery("status", string(domain.EmailStatusPending))
	status := domain.ParseEmailStatus(raw)
	if string(status) != raw {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownEmailStatus, raw)
		return
	}

	all, err := h.svc.ListByStatus(c.Request.Context(), status)
	if httpkit.HandleError(c, err) {
		return
	}
	workspaceID, _ := httpkit.WorkspaceID(c)
	out := make([]domain.Email, 0, len(all))
	for _, e := range all {
		if e.WorkspaceID == workspaceID {
			out = append(out, e)
		}
	}
	httpkit.OK(c, out)
}
