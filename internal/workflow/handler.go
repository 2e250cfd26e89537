package workflow

import (
	"net/http"

	"oxicrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidVersionID  = "invalid workflow version id"
	msgInvalidRunID      = "invalid workflow run id"
	msgWorkspaceRequired = "workspace is required"
	msgRunNotFound       = "workflow run not found"
)

// Handler serves the workflow run endpoints.
type Handler struct {
	executor *Executor
}

func NewHandler(executor *Executor) *Handler {
	return &Handler{executor: executor}
}

// Run handles POST /api/v1/workflow-versions/:id/runs
func (h *Handler) Run(c *gin.Context) {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidVersionID, nil)
		return
	}
	workspaceID, ok := httpkit.WorkspaceID(c)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgWorkspaceRequired, nil)
		return
	}

	run, err := h.executor.Execute(c.Request.Context(), versionID, workspaceID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, run)
}

// GetRun handles GET /api/v1/workflow-runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRunID, nil)
		return
	}

	run, err := h.executor.FindRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	workspaceID, _ := httpkit.WorkspaceID(c)
	if run.WorkspaceID != workspaceID {
		httpkit.Error(c, http.StatusNotFound, msgRunNotFound, nil)
		return
	}
	httpkit.OK(c, run)
}
