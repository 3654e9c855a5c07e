package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route("/audio", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Get("/download/{filename}", h.Download)
	})

	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	return r
}
