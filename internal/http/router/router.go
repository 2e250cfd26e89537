package router

import (
	"context"
	"net/http"
	"time"

	apphttp "oxicrm_backend/internal/http"
	"oxicrm_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the gin engine and lets every module register its routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app)))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", func(c *gin.Context) {
		if app.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := app.Health.Ping(ctx); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "database unavailable", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	v1.GET("/automation/stats", func(c *gin.Context) {
		out := make(map[string]any, len(app.Loops))
		for _, loop := range app.Loops {
			out[loop.Name()] = loop.Stats()
		}
		httpkit.OK(c, out)
	})

	webhookLimiter := httpkit.NewWebhookRateLimiter(app.Logger)
	webhookSecret := ""
	if app.Config != nil {
		webhookSecret = app.Config.GetWebhookSecret()
	}
	rc := &apphttp.RouterContext{
		Engine:             engine,
		V1:                 v1,
		Workspace:          v1.Group("", httpkit.WorkspaceScope()),
		Webhooks:           v1.Group("/webhooks", webhookLimiter.RateLimit(), httpkit.WebhookSecret(webhookSecret)),
		Config:             app.Config,
		WebhookRateLimiter: webhookLimiter,
	}

	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		if app.Logger != nil {
			app.Logger.Debug("module routes registered", "module", m.Name())
		}
	}

	return engine
}

func corsConfig(app *apphttp.App) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpkit.HeaderRequestID, httpkit.HeaderWorkspaceID},
		ExposeHeaders:    []string{httpkit.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if app.Config == nil {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	if app.Config.GetCORSAllowAll() || len(app.Config.GetCORSOrigins()) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = app.Config.GetCORSOrigins()
	return cfg
}
