package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

type RouterConfig struct {
	Service bookingService
	DB      *bun.DB
	Log     *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	health := NewHealthHandler(cfg.DB, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Get("/", listAppointmentsHandler(cfg.Service))
		r.Put("/status", updateStatusHandler(cfg.Service))
		r.Put("/cancel/{id}", cancelAppointmentHandler(cfg.Service))
		r.Get("/available-times/{ownerID}", availableTimesHandler(cfg.Service))
		r.Get("/user/{userID}", listByRequesterHandler(cfg.Service))
		r.Get("/owner/{ownerID}", listByOwnerHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
	})

	return r
}
