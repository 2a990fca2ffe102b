package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hatchling/journal/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Entry   *EntryHandler
	Auth    *AuthHandler
	User    *UserHandler
	SMS     *SMSHandler
	Image   *ImageHandler
	Billing *BillingHandler
}

// NewRouter constructs the HTTP handler serving the journal API.
//
// Routes:
//
//	GET    /health                    liveness
//	GET    /metrics                   Prometheus exposition
//	POST   /api/auth/login            text a magic link
//	GET    /api/auth/verify           exchange a magic link
//	POST   /api/auth/create-account   register after verification
//	POST   /api/sms/webhook           Twilio inbound messages
//	POST   /api/stripe/webhook        Stripe events
//	POST   /api/entry                 create entry (auth)
//	GET    /api/entries               list entries (auth)
//	GET    /api/entry/{id}            fetch entry (auth)
//	PATCH  /api/entry/{id}            update entry (auth)
//	DELETE /api/entry/{id}            soft-delete entry (auth)
//	POST   /api/image/process         run image operations (auth)
//	POST   /api/image/upload          multipart upload (auth)
//	POST   /api/billing/checkout      start subscription checkout (auth)
//	GET    /api/user/{id}             own profile (auth)
//	PATCH  /api/user/{id}             update own profile (auth)
//
// JSON endpoints enforce Content-Type: application/json on requests with a
// body. Webhooks and uploads accept their provider's encodings.
func NewRouter(h Handlers, tokens middleware.TokenParser, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.Metrics)
	r.Use(chiMiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/sms/webhook", h.SMS.Webhook)
		r.Post("/stripe/webhook", h.Billing.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Post("/auth/login", h.Auth.Login)
			r.Get("/auth/verify", h.Auth.Verify)
			r.Post("/auth/create-account", h.Auth.CreateAccount)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(tokens))

			r.Post("/image/upload", h.Image.Upload)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))

				r.Post("/entry", h.Entry.Create)
				r.Get("/entries", h.Entry.List)
				r.Get("/entry/{id}", h.Entry.Get)
				r.Patch("/entry/{id}", h.Entry.Update)
				r.Delete("/entry/{id}", h.Entry.Delete)

				r.Post("/image/process", h.Image.Process)
				r.Post("/billing/checkout", h.Billing.Checkout)

				r.Get("/user/{id}", h.User.Get)
				r.Patch("/user/{id}", h.User.Update)
			})
		})
	})

	return r
}
