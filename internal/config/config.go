package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AvailabilityCacheTTL bounds how stale a cached availability read may be.
	AvailabilityCacheTTL time.Duration

	// PaymentWindow is how long a pending_payment booking holds its slot
	// before the sweeper expires it.
	PaymentWindow time.Duration

	// SweepInterval is how often the stale-booking sweeper runs.
	SweepInterval time.Duration

	// StaffJWTSecret signs staff/admin tokens carrying actor id and role.
	StaffJWTSecret string

	// Email notification settings
	EmailProvider     string // "ses", "sendgrid" or "" to disable
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string
	AWSRegion         string

	// DefaultTimezone is used when a branch has no explicit zone configured.
	DefaultTimezone string

	// PaymentsBaseURL is the public base URL embedded in checkout links.
	PaymentsBaseURL string

	CORSAllowedOrigins []string

	// WriteRateLimit throttles booking writes per client IP. Zero disables it.
	WriteRateLimit float64
	WriteRateBurst int

	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", 15*time.Second),
		PaymentWindow:        getEnvAsDuration("PAYMENT_WINDOW", 30*time.Minute),
		SweepInterval:        getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),

		EmailProvider:     getEnv("EMAIL_PROVIDER", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CareSync"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "CareSync"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "UTC"),

		PaymentsBaseURL: getEnv("PAYMENTS_BASE_URL", "http://localhost:8080"),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),

		WriteRateLimit: getEnvAsFloat("WRITE_RATE_LIMIT", 5),
		WriteRateBurst: getEnvAsInt("WRITE_RATE_BURST", 10),

		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated environment variable.
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
