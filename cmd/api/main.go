package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/history"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/provider"
	"github.com/Lideeyah/DevAssist-sub000/internal/ai/quota"
	"github.com/Lideeyah/DevAssist-sub000/internal/api"
	"github.com/Lideeyah/DevAssist-sub000/internal/audit"
	"github.com/Lideeyah/DevAssist-sub000/internal/auth"
	"github.com/Lideeyah/DevAssist-sub000/internal/config"
	"github.com/Lideeyah/DevAssist-sub000/internal/database"
	"github.com/Lideeyah/DevAssist-sub000/internal/events"
	"github.com/Lideeyah/DevAssist-sub000/internal/projects"
	"github.com/Lideeyah/DevAssist-sub000/internal/ratelimit"
	iredis "github.com/Lideeyah/DevAssist-sub000/internal/redis"
	"github.com/Lideeyah/DevAssist-sub000/internal/server"
	"github.com/Lideeyah/DevAssist-sub000/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)
	logger := slog.Default()

	ctx := context.Background()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional)
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Projects
	projectRepo := projects.NewRepository(pool)
	projectSvc := projects.NewService(projectRepo)
	projectHandler := projects.NewHandler(projectSvc)

	// AI pipeline
	ledger := quota.NewLedger(userRepo, cfg.Quota)
	inferenceClient := provider.NewClient(cfg.Inference)
	orchestrator := provider.NewOrchestrator(cfg.Inference, inferenceClient, logger)
	historyRepo := history.NewRepository(pool)
	recorder := history.NewRecorder(historyRepo, logger)

	var servicePublisher ai.Publisher
	if publisher != nil {
		servicePublisher = publisher
	}
	aiSvc := ai.NewService(ledger, projectSvc, orchestrator, recorder, servicePublisher, cfg.Quota, logger)
	aiHandler := ai.NewHandler(aiSvc, recorder)

	// Audit trail
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	if natsClient != nil {
		consumerMgr := events.NewConsumerManager(natsClient.JetStream())
		auditConsumer := audit.NewConsumer(auditRepo, consumerMgr)
		go func() {
			if err := auditConsumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Rate limiting
	limiter := ratelimit.NewSlidingWindowLimiter(redisClient)
	limiter.Configure("auth", cfg.RateLimit.AuthMaxRequests, cfg.RateLimit.AuthWindowSec)
	limiter.Configure("generate", cfg.RateLimit.GenerateMaxRequests, cfg.RateLimit.GenerateWindowSec)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins:  cfg.CORS.AllowedOrigins,
		AuthRateLimiter:     ratelimit.RateLimitByIP(limiter, "auth"),
		GenerateRateLimiter: ratelimit.RateLimitByUser(limiter, "generate"),
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		CreateProject:       projectHandler.Create,
		ListProjects:        projectHandler.List,
		GetProject:          projectHandler.Get,
		UpdateProject:       projectHandler.Update,
		DeleteProject:       projectHandler.Delete,
		PutProjectFile:      projectHandler.PutFile,
		ListProjectFiles:    projectHandler.ListFiles,
		DeleteProjectFile:   projectHandler.DeleteFile,
		OwnershipMiddleware: projectHandler.OwnershipMiddleware,

		Generate:          aiHandler.Generate,
		Usage:             aiHandler.Usage,
		ListInteractions:  aiHandler.ListInteractions,
		GetInteraction:    aiHandler.GetInteraction,
		DeleteInteraction: aiHandler.DeleteInteraction,
		Stats:             aiHandler.Stats,
		ListAuditLogs:     auditHandler.List,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
