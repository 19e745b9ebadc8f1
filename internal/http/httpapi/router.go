package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vocalizz/internal/http/handlers"
	"vocalizz/internal/middleware"
)

// NewRouter builds the public API. Webhooks and signed file links carry
// their own authentication and sit outside the JWT group.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.I18N("fr"),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/files/*", app.ServeFile)
	if app.Config.MetricsAddr == "" {
		r.Handle("/metrics", app.Metrics.Handler())
	}

	r.Route("/v1/webhooks", func(r chi.Router) {
		r.Post("/provider", app.ProviderWebhook)
		r.Post("/stripe", app.StripeWebhook)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))
		r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))

		r.Get("/v1/me", app.Me)
		r.Get("/v1/me/transactions", app.Transactions)
		r.Post("/v1/uploads", app.Upload)
		r.Get("/v1/voices", app.ListVoices)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.Post("/training", app.CreateTraining)
			r.Get("/{job_id}", app.GetJob)
			r.Post("/{job_id}/cancel", app.CancelJob)
		})

		r.Route("/v1/synthesis", func(r chi.Router) {
			r.Post("/text", app.SynthesizeText)
			r.Post("/voice", app.ConvertVoice)
		})
	})

	return r
}
