// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetWebhookSecret() string
}

// SchedulerConfig provides settings for the Redis-backed job transport.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for the outbound email provider.
type EmailConfig interface {
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailProviderTimeout() time.Duration
}

// AutomationConfig provides settings for the event bus, job queue and subscribers.
type AutomationConfig interface {
	GetPendingEmailInterval() time.Duration
	GetJobQueueCapacity() int
	GetEventBusBuffer() int
	GetSystemSenderAddress() string
	GetSalesTeamAddress() string
	GetAppBaseURL() string
	GetEmailSendRate() float64
}

// InboundConfig provides settings for the IMAP inbound mail poller.
type InboundConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUsername() string
	GetIMAPPassword() string
	GetIMAPFolder() string
	GetIMAPPollInterval() time.Duration
	IsIMAPEnabled() bool
}

const (
	EmailProviderLog   = "log"
	EmailProviderSMTP  = "smtp"
	EmailProviderBrevo = "brevo"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowAll         bool
	CORSOrigins          []string
	WebhookSecret        string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	EmailProvider        string
	BrevoAPIKey          string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailProviderTimeout time.Duration
	PendingEmailInterval time.Duration
	JobQueueCapacity     int
	EventBusBuffer       int
	SystemSenderAddress  string
	SalesTeamAddress     string
	AppBaseURL           string
	EmailSendRate        float64
	IMAPHost             string
	IMAPPort             int
	IMAPUsername         string
	IMAPPassword         string
	IMAPFolder           string
	IMAPPollInterval     time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailProvider() string               { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string                 { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string                    { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                       { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string                { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string                { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string               { return c.EmailFromName }
func (c *Config) GetEmailProviderTimeout() time.Duration { return c.EmailProviderTimeout }

// AutomationConfig implementation
func (c *Config) GetPendingEmailInterval() time.Duration { return c.PendingEmailInterval }
func (c *Config) GetJobQueueCapacity() int               { return c.JobQueueCapacity }
func (c *Config) GetEventBusBuffer() int                 { return c.EventBusBuffer }
func (c *Config) GetSystemSenderAddress() string         { return c.SystemSenderAddress }
func (c *Config) GetSalesTeamAddress() string            { return c.SalesTeamAddress }
func (c *Config) GetAppBaseURL() string                  { return c.AppBaseURL }
func (c *Config) GetEmailSendRate() float64              { return c.EmailSendRate }

// InboundConfig implementation
func (c *Config) GetIMAPHost() string                { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                   { return c.IMAPPort }
func (c *Config) GetIMAPUsername() string            { return c.IMAPUsername }
func (c *Config) GetIMAPPassword() string            { return c.IMAPPassword }
func (c *Config) GetIMAPFolder() string              { return c.IMAPFolder }
func (c *Config) GetIMAPPollInterval() time.Duration { return c.IMAPPollInterval }
func (c *Config) IsIMAPEnabled() bool                { return c.IMAPHost != "" && c.IMAPUsername != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3001"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	return &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		WebhookSecret:        getEnv("WEBHOOK_SECRET", ""),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "emails"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "1")),
		EmailProvider:        strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
		BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "OxiCRM"),
		EmailProviderTimeout: mustDuration(getEnv("EMAIL_PROVIDER_TIMEOUT", "30s")),
		PendingEmailInterval: mustDuration(getEnv("PENDING_EMAIL_INTERVAL", "60s")),
		JobQueueCapacity:     mustInt(getEnv("JOB_QUEUE_CAPACITY", "100")),
		EventBusBuffer:       mustInt(getEnv("EVENT_BUS_BUFFER", "100")),
		SystemSenderAddress:  getEnv("SYSTEM_SENDER_ADDRESS", "noreply@oxicrm.com"),
		SalesTeamAddress:     getEnv("SALES_TEAM_ADDRESS", "sales@oxicrm.com"),
		AppBaseURL:           strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3001"), "/"),
		EmailSendRate:        mustFloat(getEnv("EMAIL_SEND_RATE_PER_SECOND", "0")),
		IMAPHost:             getEnv("IMAP_HOST", ""),
		IMAPPort:             mustInt(getEnv("IMAP_PORT", "993")),
		IMAPUsername:         getEnv("IMAP_USERNAME", ""),
		IMAPPassword:         getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:           getEnv("IMAP_FOLDER", "INBOX"),
		IMAPPollInterval:     mustDuration(getEnv("IMAP_POLL_INTERVAL", "2m")),
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.EmailProvider {
	case EmailProviderLog:
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
		}
	case EmailProviderBrevo:
		if c.BrevoAPIKey == "" {
			return fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
		}
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
	}
	if c.PendingEmailInterval <= 0 {
		return fmt.Errorf("PENDING_EMAIL_INTERVAL must be a positive duration")
	}
	if c.JobQueueCapacity < 1 || c.EventBusBuffer < 1 {
		return fmt.Errorf("JOB_QUEUE_CAPACITY and EVENT_BUS_BUFFER must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
