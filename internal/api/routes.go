package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health and metrics (no auth required)
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints. The webhook authenticates by signature and
		// unsubscribe by token.
		r.Post("/webhooks/resend", h.HandleResendWebhook)
		r.Post("/unsubscribe", h.HandleUnsubscribe)

		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(h.cronSecret))
			r.Post("/cron/sequences", h.HandleSequenceTick)
		})

		r.Route("/team", func(r chi.Router) {
			r.Use(bearerAuth(h.adminToken))

			r.Route("/mail", func(r chi.Router) {
				r.Post("/conditions/evaluate", h.HandleEvaluateConditions)
				r.Post("/send", h.HandleSendCampaign)
				r.Get("/list-types", h.HandleListTypes)
				r.Get("/campaigns/{id}/archive", h.HandleCampaignArchive)
			})

			r.Route("/sequences/{id}", func(r chi.Router) {
				r.Post("/enroll", h.HandleEnroll)
				r.Post("/steps", h.HandleAddStep)
			})

			r.Post("/people/{id}/auto-enroll", h.HandleAutoEnroll)
			r.Post("/contacts/{id}/sync", h.HandleContactSync)
		})
	})

	return r
}
