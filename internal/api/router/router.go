// Package router assembles the HTTP API from the feature handlers.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teleseva/teleseva-platform/internal/archive"
	"github.com/teleseva/teleseva-platform/internal/booking"
	"github.com/teleseva/teleseva-platform/internal/directory"
	httpmiddleware "github.com/teleseva/teleseva-platform/internal/http/middleware"
	"github.com/teleseva/teleseva-platform/internal/notify"
	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/internal/realtime"
	"github.com/teleseva/teleseva-platform/internal/triage"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	TriageHandler    *triage.Handler
	ProfilesHandler  *profiles.Handler
	DirectoryHandler *directory.Handler
	BookingHandler   *booking.Handler
	NotifyHandler    *notify.Handler
	ArchiveHandler   *archive.Handler
	RealtimeHandler  *realtime.Handler
	MetricsHandler   http.Handler

	CORSAllowedOrigins []string

	// JWTSecret enables auth on mutating routes. Empty leaves them open,
	// which is only acceptable for local development.
	JWTSecret string

	// TriageRatePerSecond / TriageBurst bound symptom-checker traffic per IP.
	TriageRatePerSecond float64
	TriageBurst         int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	authed := func(r chi.Router) chi.Router {
		if cfg.JWTSecret == "" {
			return r
		}
		return r.With(httpmiddleware.UserJWT(cfg.JWTSecret))
	}
	doctorOnly := func(r chi.Router) chi.Router {
		if cfg.JWTSecret == "" {
			return r
		}
		return r.With(httpmiddleware.UserJWT(cfg.JWTSecret), httpmiddleware.RequireRole("doctor"))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.TriageHandler != nil {
		rate := cfg.TriageRatePerSecond
		if rate <= 0 {
			rate = 2
		}
		burst := cfg.TriageBurst
		if burst <= 0 {
			burst = 10
		}
		r.With(httpmiddleware.RateLimit(rate, burst)).Mount("/triage", cfg.TriageHandler.Routes())
	}

	if cfg.ProfilesHandler != nil {
		r.Post("/patients", cfg.ProfilesHandler.CreatePatient)
		r.Post("/doctors", cfg.ProfilesHandler.CreateDoctor)
		r.Get("/patients/{patientID}", cfg.ProfilesHandler.GetPatient)
		r.Get("/doctors", cfg.ProfilesHandler.ListDoctors)
		r.Get("/doctors/{doctorID}", cfg.ProfilesHandler.GetDoctor)
	}

	if cfg.DirectoryHandler != nil {
		r.Get("/doctors/available", cfg.DirectoryHandler.AvailableDoctors)
		r.Get("/doctors/{doctorID}/availability", cfg.DirectoryHandler.Availability)
		doctorOnly(r).Post("/doctors/{doctorID}/status", cfg.DirectoryHandler.SetStatus)
		doctorOnly(r).Post("/doctors/{doctorID}/heartbeat", cfg.DirectoryHandler.Heartbeat)
	}

	if cfg.BookingHandler != nil {
		authed(r).Post("/appointments", cfg.BookingHandler.Book)
		authed(r).Get("/appointments/{appointmentID}", cfg.BookingHandler.Get)
		authed(r).Patch("/appointments/{appointmentID}/status", cfg.BookingHandler.UpdateStatus)
		authed(r).Post("/appointments/{appointmentID}/cancel", cfg.BookingHandler.Cancel)
		doctorOnly(r).Post("/appointments/{appointmentID}/prescription", cfg.BookingHandler.AttachPrescription)
		authed(r).Get("/patients/{patientID}/appointments", cfg.BookingHandler.ListByPatient)
		authed(r).Get("/doctors/{doctorID}/appointments", cfg.BookingHandler.ListByDoctor)
	}

	if cfg.NotifyHandler != nil {
		authed(r).Get("/notifications/{userID}", cfg.NotifyHandler.List)
		authed(r).Post("/notifications/{notificationID}/read", cfg.NotifyHandler.MarkRead)
	}

	if cfg.ArchiveHandler != nil {
		authed(r).Get("/consultations/{appointmentID}", cfg.ArchiveHandler.GetConsultation)
		authed(r).Get("/patients/{patientID}/consultations", cfg.ArchiveHandler.ListByPatient)
	}

	if cfg.RealtimeHandler != nil {
		r.Get("/ws/doctors", cfg.RealtimeHandler.HandleDoctors)
		r.Get("/ws/appointments", cfg.RealtimeHandler.HandleAppointments)
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "teleseva-api",
	})
}
