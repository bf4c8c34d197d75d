package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Inference InferenceConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// InferenceConfig configures the remote inference provider and the
// fallback chain the orchestrator walks on failure.
type InferenceConfig struct {
	APIToken        string
	ChatBaseURL     string
	CompletionURL   string
	PrimaryModel    string
	FallbackModels  []string
	AttemptTimeout  time.Duration
	MaxOutputTokens int
}

// QuotaConfig holds the role-tiered daily token limits and prompt bounds.
type QuotaConfig struct {
	StandardDailyTokens int
	BusinessDailyTokens int
	AdminDailyTokens    int
	ContextTokenBudget  int
	MaxPromptChars      int
}

type RateLimitConfig struct {
	AuthMaxRequests     int
	AuthWindowSec       int
	GenerateMaxRequests int
	GenerateWindowSec   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Inference: InferenceConfig{
			APIToken:        k.String("inference.api.token"),
			ChatBaseURL:     k.String("inference.chat.base.url"),
			CompletionURL:   k.String("inference.completion.url"),
			PrimaryModel:    k.String("inference.primary.model"),
			FallbackModels:  k.Strings("inference.fallback.models"),
			MaxOutputTokens: k.Int("inference.max.output.tokens"),
		},
		Quota: QuotaConfig{
			StandardDailyTokens: k.Int("quota.standard.daily.tokens"),
			BusinessDailyTokens: k.Int("quota.business.daily.tokens"),
			AdminDailyTokens:    k.Int("quota.admin.daily.tokens"),
			ContextTokenBudget:  k.Int("quota.context.token.budget"),
			MaxPromptChars:      k.Int("quota.max.prompt.chars"),
		},
		RateLimit: RateLimitConfig{
			AuthMaxRequests:     k.Int("ratelimit.auth.max.requests"),
			AuthWindowSec:       k.Int("ratelimit.auth.window.sec"),
			GenerateMaxRequests: k.Int("ratelimit.generate.max.requests"),
			GenerateWindowSec:   k.Int("ratelimit.generate.window.sec"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "devassist"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "devassist"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Inference.ChatBaseURL == "" {
		cfg.Inference.ChatBaseURL = "https://router.huggingface.co/v1"
	}
	if cfg.Inference.CompletionURL == "" {
		cfg.Inference.CompletionURL = "https://api-inference.huggingface.co/models"
	}
	if cfg.Inference.PrimaryModel == "" {
		cfg.Inference.PrimaryModel = "mistralai/Mistral-7B-Instruct-v0.3"
	}
	if len(cfg.Inference.FallbackModels) == 0 {
		cfg.Inference.FallbackModels = []string{
			"HuggingFaceH4/zephyr-7b-beta",
			"microsoft/DialoGPT-large",
			"bigcode/starcoder2-15b",
		}
	}
	if cfg.Inference.MaxOutputTokens == 0 {
		cfg.Inference.MaxOutputTokens = 1024
	}
	if cfg.Quota.StandardDailyTokens == 0 {
		cfg.Quota.StandardDailyTokens = 10_000
	}
	if cfg.Quota.BusinessDailyTokens == 0 {
		cfg.Quota.BusinessDailyTokens = 50_000
	}
	if cfg.Quota.AdminDailyTokens == 0 {
		cfg.Quota.AdminDailyTokens = 200_000
	}
	if cfg.Quota.ContextTokenBudget == 0 {
		cfg.Quota.ContextTokenBudget = 40_000
	}
	if cfg.Quota.MaxPromptChars == 0 {
		cfg.Quota.MaxPromptChars = 20_000
	}
	if cfg.RateLimit.AuthMaxRequests == 0 {
		cfg.RateLimit.AuthMaxRequests = 10
	}
	if cfg.RateLimit.AuthWindowSec == 0 {
		cfg.RateLimit.AuthWindowSec = 60
	}
	if cfg.RateLimit.GenerateMaxRequests == 0 {
		cfg.RateLimit.GenerateMaxRequests = 20
	}
	if cfg.RateLimit.GenerateWindowSec == 0 {
		cfg.RateLimit.GenerateWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	attemptTimeoutStr := k.String("inference.attempt.timeout")
	if attemptTimeoutStr == "" {
		attemptTimeoutStr = "30s"
	}
	cfg.Inference.AttemptTimeout, err = time.ParseDuration(attemptTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing inference attempt timeout: %w", err)
	}

	return cfg, nil
}
