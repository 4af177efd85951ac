package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"qbwc-webhook-adapter/internal/auth"
	"qbwc-webhook-adapter/internal/middleware"
)

const maxCreateBody = 1 << 20

// Routes mounts the write API on r. Every route needs basic auth and is
// rate limited per user.
func (h *Handler) Routes(r chi.Router, logger *slog.Logger, creds auth.Credentials, limiter *middleware.Limiter) {
	r.Use(middleware.BasicAuth(logger, "qbwc-webhook-adapter", creds))
	r.Use(middleware.RateLimit(logger, limiter))

	r.Get("/queue", h.HandleQueue)
	r.Route("/{entity}", func(r chi.Router) {
		r.With(middleware.CaptureBody(logger, maxCreateBody)).Post("/", h.HandleCreate)
		r.Post("/sync", h.HandleSync)
		r.Get("/latest", h.HandleLatest)
		r.Post("/{id}/fetch", h.HandleFetch)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// Health answers liveness checks.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
