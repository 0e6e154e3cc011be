package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Slots    SlotService
	Bookings BookingService
	Location *time.Location
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Get("/practitioners/{id}/slots", availableSlotsHandler(cfg.Slots))
	r.Get("/practitioners/{id}/conflict", conflictCheckHandler(cfg.Slots, cfg.Location))

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Bookings, cfg.Location))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings))
	r.Post("/appointments/{id}/confirm", transitionHandler(cfg.Bookings.Confirm))
	r.Post("/appointments/{id}/cancel", transitionHandler(cfg.Bookings.Cancel))
	r.Post("/appointments/{id}/complete", transitionHandler(cfg.Bookings.Complete))
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Bookings))

	return r
}
