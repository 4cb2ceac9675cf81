package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caresync-health/booking-platform/internal/http/handlers"
	httpmiddleware "github.com/caresync-health/booking-platform/internal/http/middleware"
	"github.com/caresync-health/booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Bookings           *handlers.BookingsHandler
	Payments           *handlers.PaymentsHandler
	Patients           *handlers.PatientsHandler
	Audit              *handlers.AuditHandler
	MetricsHandler     http.Handler
	StaffAuthSecret    string
	CORSAllowedOrigins []string

	// Requests per second allowed per client IP on write endpoints.
	// Zero disables rate limiting.
	WriteRateLimit float64
	WriteRateBurst int
}

// New creates a new Chi router with all routes configured
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

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.OptionalStaffJWT(cfg.StaffAuthSecret))
		api.Use(httpmiddleware.PatientIdentity())

		api.Get("/availability", cfg.Availability.Get)

		api.Route("/bookings", func(b chi.Router) {
			if cfg.WriteRateLimit > 0 {
				b.Use(httpmiddleware.RateLimit(cfg.WriteRateLimit, cfg.WriteRateBurst))
			}
			b.Post("/", cfg.Bookings.Create)
			b.Route("/{bookingID}", func(one chi.Router) {
				one.Get("/", cfg.Bookings.Get)
				one.Post("/cancel", cfg.Bookings.Cancel)
				one.Get("/reschedule-eligibility", cfg.Bookings.Eligibility)
				one.Post("/reschedule", cfg.Bookings.Reschedule)
				one.With(httpmiddleware.RequireStaff()).Post("/transition", cfg.Bookings.Transition)
			})
		})

		if cfg.Patients != nil {
			api.With(httpmiddleware.RequireStaff()).Get("/patients/lookup", cfg.Patients.Lookup)
		}
		api.Get("/patients/{patientID}/bookings", cfg.Bookings.History)

		if cfg.Payments != nil {
			api.Route("/payments/{bookingID}", func(p chi.Router) {
				p.Post("/prepare", cfg.Payments.Prepare)
				p.Post("/confirm", cfg.Payments.Confirm)
			})
		}

		if cfg.Audit != nil {
			api.With(httpmiddleware.RequireStaff()).Get("/audit", cfg.Audit.Query)
		}
	})

	return r
}
