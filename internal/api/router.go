package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lideeyah/DevAssist-sub000/internal/database"
	"github.com/Lideeyah/DevAssist-sub000/internal/events"
	mw "github.com/Lideeyah/DevAssist-sub000/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Project handlers
	CreateProject       http.HandlerFunc
	ListProjects        http.HandlerFunc
	GetProject          http.HandlerFunc
	UpdateProject       http.HandlerFunc
	DeleteProject       http.HandlerFunc
	PutProjectFile      http.HandlerFunc
	ListProjectFiles    http.HandlerFunc
	DeleteProjectFile   http.HandlerFunc
	OwnershipMiddleware func(http.Handler) http.Handler

	// AI handlers
	Generate          http.HandlerFunc
	Usage             http.HandlerFunc
	ListInteractions  http.HandlerFunc
	GetInteraction    http.HandlerFunc
	DeleteInteraction http.HandlerFunc
	Stats             http.HandlerFunc
	ListAuditLogs     http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins  []string
	AuthRateLimiter     func(http.Handler) http.Handler
	GenerateRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe: checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public), optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Project routes
			r.Route("/projects", func(r chi.Router) {
				r.Post("/", h.CreateProject)
				r.Get("/", h.ListProjects)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Use(h.OwnershipMiddleware)
					r.Get("/", h.GetProject)
					r.Put("/", h.UpdateProject)
					r.Delete("/", h.DeleteProject)

					r.Route("/files", func(r chi.Router) {
						r.Get("/", h.ListProjectFiles)
						r.Put("/", h.PutProjectFile)
						r.Delete("/{filename}", h.DeleteProjectFile)
					})
				})
			})

			// AI routes
			r.Route("/ai", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					if cfg.GenerateRateLimiter != nil {
						r.Use(cfg.GenerateRateLimiter)
					}
					r.Post("/generate", h.Generate)
				})

				r.Get("/usage", h.Usage)
				r.Get("/stats", h.Stats)
				r.Get("/audit", h.ListAuditLogs)

				r.Route("/interactions", func(r chi.Router) {
					r.Get("/", h.ListInteractions)
					r.Get("/{interactionID}", h.GetInteraction)
					r.Delete("/{interactionID}", h.DeleteInteraction)
				})
			})
		})
	})

	return r
}
