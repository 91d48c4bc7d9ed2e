package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/carebridge/internal/identity"
	"github.com/carebridge/carebridge/internal/metrics"
)

type RouterConfig struct {
	Handlers *Handlers
	Helpdesk *HelpdeskHandlers
	Tokens   *identity.TokenManager
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Handlers.Log, cfg.Handlers.Metrics))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.MetricsHandler())

	h := cfg.Handlers
	hd := cfg.Helpdesk

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.Tokens))

			r.Get("/doctors", h.ListDoctors)
			r.Get("/doctors/{id}/slots", h.ListDoctorSlots)

			r.With(RequireRole(identity.RoleDoctor)).
				Post("/schedule", h.GenerateSchedule)

			r.With(RequireRole(identity.RolePatient)).
				Post("/appointments", h.CreateAppointment)
			r.Get("/appointments", h.ListAppointments)
			r.Get("/appointments/{id}", h.GetAppointment)
			r.With(RequireRole(identity.RoleDoctor)).
				Post("/appointments/{id}/notes", h.CompleteAppointment)
			r.Get("/appointments/{id}/messages", h.ListMessages)

			r.With(RequireRole(identity.RolePatient)).
				Post("/requests", hd.Submit)
			r.Get("/requests", hd.List)
			r.With(RequireRole(identity.RoleDoctor)).
				Post("/requests/{id}/claim", hd.Claim)
			r.With(RequireRole(identity.RoleDoctor)).
				Post("/requests/{id}/answer", hd.Answer)
			r.With(RequireRole(identity.RolePatient)).
				Post("/requests/{id}/close", hd.Close)
			r.Get("/requests/{id}/prescription", hd.GetPrescription)

			r.Get("/notifications", hd.ListNotifications)
			r.Post("/notifications/{id}/read", hd.MarkNotificationRead)
			r.Post("/notifications/read-all", hd.MarkAllNotificationsRead)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Tokens))
		r.Get("/ws/consult/{appointment_id}", h.ConsultChannel)
	})

	return r
}
