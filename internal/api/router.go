package api

import (
	"context"
	"net/http"
	"time"

	_ "github.com/athebyme/gomarket-sync/internal/api/docs"
	"github.com/athebyme/gomarket-sync/internal/api/handlers"
	"github.com/athebyme/gomarket-sync/internal/api/middleware"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	RoleSyncRead  = "sync:read"
	RoleSyncWrite = "sync:write"
)

// MetricsProvider метрики HTTP и обработчик /metrics
type MetricsProvider interface {
	middleware.RequestRecorder
	Handler() http.Handler
}

// RouterDeps зависимости маршрутизатора. Nil в Auth, Verifier, Metrics и Commands
// отключает соответствующую функциональность
type RouterDeps struct {
	Orchestrator handlers.SyncRunner
	Dashboard    handlers.DashboardReader
	Webhooks     handlers.WebhookIngestor
	WebhookLog   handlers.WebhookLog
	Publisher    handlers.WebhookPublisher
	Commands     handlers.CommandPublisher
	Verifier     handlers.SignatureVerifier
	Auth         interfaces.AuthPort
	Metrics      MetricsProvider
	Logger       interfaces.LoggerPort

	// Health проверяет зависимости (БД, кэш) для /health
	Health         func(ctx context.Context) error
	MetricsPath    string
	CORSOrigins    []string
	BodyLimitBytes int64
	RequestTimeout time.Duration
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(deps RouterDeps) *chi.Mux {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 60 * time.Second
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(middleware.BodyLimit(deps.BodyLimitBytes))

	health := func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
	r.Get("/health", health)
	r.Head("/health", health)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, deps.MetricsPath, deps.Metrics.Handler())
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	syncHandler := handlers.NewSyncHandler(deps.Orchestrator, deps.Commands, deps.Logger)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, deps.Logger)
	webhookHandler := handlers.NewWebhookHandler(deps.Webhooks, deps.WebhookLog, deps.Publisher, deps.Verifier, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(deps.RequestTimeout))

		// Вебхуки маркетплейса защищены подписью, а не токеном
		r.Post("/webhooks", webhookHandler.Receive)

		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(middleware.Auth(deps.Auth, deps.Logger))
			}

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(deps.Auth, RoleSyncRead))

				r.Get("/records", dashboardHandler.ListRecords)
				r.Get("/records/history", dashboardHandler.History)

				r.Route("/dashboard", func(r chi.Router) {
					r.Get("/summary", dashboardHandler.Summary)
					r.Get("/needs-attention", dashboardHandler.NeedsAttention)
					r.Get("/healthy", dashboardHandler.Healthy)
				})

				r.Get("/webhooks", webhookHandler.List)
				r.Post("/webhooks/subscriptions/preview", webhookHandler.PreviewSubscription)
				r.Post("/sync/preview", syncHandler.Preview)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(deps.Auth, RoleSyncWrite))

				r.Post("/sync/check", syncHandler.CheckStatus)
				r.Post("/sync/check-bulk", syncHandler.CheckStatusBulk)
				r.Post("/sync/push", syncHandler.Push)
				r.Post("/sync/push-bulk", syncHandler.PushBulk)
				r.Post("/sync/run", syncHandler.Run)
				r.Post("/sync/commands", syncHandler.EnqueueCommand)
			})
		})
	})

	return r
}
