package mailing

import (
	apphttp "oxicrm_backend/internal/http"
)

// Module exposes the email pipelines over HTTP.
type Module struct {
	handler *Handler
	Service *Service
}

// NewModule wraps an already wired service.
func NewModule(svc *Service) *Module {
	return &Module{handler: NewHandler(svc), Service: svc}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "mailing"
}

// RegisterRoutes registers /api/v1/emails and the inbound webhook.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Workspace.Group("/emails"))
	m.handler.RegisterWebhookRoutes(ctx.Webhooks)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
