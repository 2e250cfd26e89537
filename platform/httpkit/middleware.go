// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"sync"
	"time"

	"oxicrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// ContextWorkspaceIDKey is the gin context key for the tenant workspace ID.
	ContextWorkspaceIDKey = "workspaceID"
	// HeaderWorkspaceID carries the tenant workspace on API requests.
	HeaderWorkspaceID = "X-Workspace-ID"
	// HeaderRequestID carries the request correlation id.
	HeaderRequestID = "X-Request-ID"
	// HeaderWebhookSecret authenticates inbound webhook callers.
	HeaderWebhookSecret = "X-Webhook-Secret"
)

// RequestID assigns a request id and stores it on the request context so
// logger.WithContext picks it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		reqLog := log.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			var err error = errors.New(http.StatusText(status))
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			reqLog.HTTPError(c.Request.Method, path, status, err, clientIP)
		}
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")

		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// WorkspaceScope requires a valid workspace header and stores it on the
// gin context and the request context.
func WorkspaceScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderWorkspaceID)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "missing " + HeaderWorkspaceID + " header"})
			return
		}
		workspaceID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + HeaderWorkspaceID + " header"})
			return
		}

		c.Set(ContextWorkspaceIDKey, workspaceID)
		ctx := context.WithValue(c.Request.Context(), logger.WorkspaceIDKey, workspaceID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WorkspaceID returns the workspace stored by WorkspaceScope.
func WorkspaceID(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(ContextWorkspaceIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}

// IPRateLimiter manages per-IP rate limiters.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := i.getLimiter(ip)

		if !limiter.Allow() {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// NewWebhookRateLimiter creates the limiter used on the inbound mail webhook.
func NewWebhookRateLimiter(log *logger.Logger) *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(5), 20, log) // 5 requests per second, burst of 20
}

// WebhookSecret rejects requests whose X-Webhook-Secret header does not match
// secret. An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := sha256.Sum256([]byte(secret))
	return func(c *gin.Context) {
		provided := c.GetHeader(HeaderWebhookSecret)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing webhook secret"})
			return
		}
		// hashing first keeps the comparison length-independent
		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid webhook secret"})
			return
		}
		c.Next()
	}
}
