package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	SubmitWebhookURL string
	AuthWebhookURL   string
	PollInterval     time.Duration
	PollMaxAttempts  int
	SoftNoticeDelay  time.Duration
	RateLimitWindow  time.Duration
	SessionTTL       time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	AuthRatePerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		SubmitWebhookURL: os.Getenv("SUBMIT_WEBHOOK_URL"),
		AuthWebhookURL:   os.Getenv("AUTH_WEBHOOK_URL"),
		PollInterval:     time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 4000)),
		PollMaxAttempts:  getEnvInt("POLL_MAX_ATTEMPTS", 0),
		SoftNoticeDelay:  time.Millisecond * time.Duration(getEnvInt("SOFT_NOTICE_MS", 8000)),
		RateLimitWindow:  time.Millisecond * time.Duration(getEnvInt("RATE_LIMIT_MS", 4000)),
		SessionTTL:       time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		AuthRatePerMin:   getEnvInt("AUTH_RATE_PER_MINUTE", 30),
	}

	if cfg.SubmitWebhookURL == "" {
		return nil, fmt.Errorf("SUBMIT_WEBHOOK_URL is required")
	}

	if cfg.AuthWebhookURL == "" {
		return nil, fmt.Errorf("AUTH_WEBHOOK_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
