package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// NewRouter assembles the HTTP API
func NewRouter(
	registrations *RegistrationHandler,
	webhooks *WebhookHandler,
	metricsHandler http.Handler,
	logger ports.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metricsHandler)

	r.Post("/webhooks/asaas", webhooks.Receive)

	r.Route("/registrations", func(r chi.Router) {
		r.Post("/", registrations.Create)
		r.Post("/admin", registrations.CreateAdmin)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", registrations.Cancel)
			r.Post("/stages", registrations.AddStages)
			r.Get("/payments", registrations.GetPayments)
			r.Post("/sync", registrations.Sync)
			r.Post("/confirm-direct", registrations.ConfirmDirect)
		})
	})

	return r
}

// requestLogger logs one line per request in the service's structured
// format instead of chi's plain-text logger
func requestLogger(logger ports.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				ports.String("method", r.Method),
				ports.String("path", r.URL.Path),
				ports.Int("status", ww.Status()),
				ports.String("duration", time.Since(start).String()),
				ports.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
