package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Quota tiers must be positive and ordered
	if c.Quota.StandardDailyTokens < 1 {
		errs = append(errs, "QUOTA_STANDARD_DAILY_TOKENS must be positive")
	}
	if c.Quota.BusinessDailyTokens < c.Quota.StandardDailyTokens {
		errs = append(errs, "QUOTA_BUSINESS_DAILY_TOKENS must be >= the standard tier")
	}
	if c.Quota.AdminDailyTokens < c.Quota.BusinessDailyTokens {
		errs = append(errs, "QUOTA_ADMIN_DAILY_TOKENS must be >= the business tier")
	}

	if c.Inference.PrimaryModel == "" {
		errs = append(errs, "INFERENCE_PRIMARY_MODEL is required")
	}
	if c.Inference.AttemptTimeout <= 0 {
		errs = append(errs, "INFERENCE_ATTEMPT_TIMEOUT must be positive")
	}

	// Inference token: warn only, the orchestrator degrades to local generation
	if c.Inference.APIToken == "" {
		slog.Warn("INFERENCE_API_TOKEN is empty, remote generation disabled, falling back to local strategies")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
