// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"

	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatsSource reports counters of a background loop.
type StatsSource interface {
	Name() string
	Stats() any
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP settings.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping).
	Health HealthChecker
	// Loops are the background loops whose counters are served on the stats endpoint.
	Loops []StatsSource
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
