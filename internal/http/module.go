// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Workspace is the /api/v1 group that requires an X-Workspace-ID header.
	Workspace *gin.RouterGroup
	// Webhooks is the /api/v1/webhooks group, rate limited per client IP.
	Webhooks *gin.RouterGroup
	// Config is the HTTP configuration.
	Config config.HTTPConfig
	// WebhookRateLimiter backs the Webhooks group.
	WebhookRateLimiter *httpkit.IPRateLimiter
}
