package workflow

import (
	apphttp "oxicrm_backend/internal/http"
)

// Module exposes workflow execution over HTTP.
type Module struct {
	handler  *Handler
	Executor *Executor
}

func NewModule(executor *Executor) *Module {
	return &Module{handler: NewHandler(executor), Executor: executor}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "workflow"
}

// RegisterRoutes registers the workflow run routes under the workspace group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Workspace.POST("/workflow-versions/:id/runs", m.handler.Run)
	ctx.Workspace.GET("/workflow-runs/:id", m.handler.GetRun)
}

var _ apphttp.Module = (*Module)(nil)
