package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mobile-home-delivery/internal/http/handlers"
	mw "mobile-home-delivery/internal/http/middleware"
	"mobile-home-delivery/internal/http/middleware/ratelimit"
	"mobile-home-delivery/internal/logx"
)

const defaultTimeout = 30 * time.Second

// Handlers groups the endpoint handlers mounted by New.
type Handlers struct {
	Base        *handlers.Handlers
	Deliveries  *handlers.DeliveryHandler
	Assignments *handlers.AssignmentHandler
	Photos      *handlers.PhotoHandler
	GPS         *handlers.GPSHandler
	Quality     *handlers.QualityHandler
	Wizard      *handlers.WizardHandler
}

// Options configures the middleware stack.
type Options struct {
	Logger    logx.Logger
	RateLimit *ratelimit.Middleware
	// Metrics serves /metrics; nil means the default Prometheus registry.
	Metrics http.Handler
	Timeout time.Duration
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(h Handlers, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logx.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Observability(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/ping", h.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.Base.HealthcheckHead))
	r.Method(http.MethodGet, "/metrics", opts.Metrics)
	r.NotFound(http.HandlerFunc(h.Base.NotFound))

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireDriver(opts.Logger))
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit.Handler())
		}

		r.Route("/deliveries/{id}", func(r chi.Router) {
			r.Get("/", h.Deliveries.Get)
			r.Get("/history", h.Deliveries.History)
			r.Post("/transitions", h.Deliveries.Transition)
			r.Post("/issues", h.Deliveries.ReportIssue)

			r.Post("/photos", h.Photos.Capture)
			r.Get("/photos/checklist", h.Photos.Checklist)

			r.Post("/gps", h.GPS.RecordPoint)
			r.Post("/gps/batch", h.GPS.IngestBatch)

			r.Get("/quality", h.Quality.Validate)

			r.Get("/wizard", h.Wizard.View)
			r.Post("/wizard/start", h.Wizard.Start)
			r.Post("/wizard/advance", h.Wizard.Advance)
		})

		r.Route("/assignments/{id}", func(r chi.Router) {
			r.Post("/accept", h.Assignments.Accept)
			r.Post("/decline", h.Assignments.Decline)
			r.Post("/start", h.Assignments.Start)
			r.Post("/complete", h.Assignments.Complete)
			r.Put("/mileage", h.Assignments.RecordMileage)
		})

		r.With(mw.RequireAdmin(opts.Logger)).Post("/admin/deliveries/{id}/resume", h.Deliveries.Resume)
	})

	return r
}
