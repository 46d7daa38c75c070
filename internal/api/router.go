package api

import (
	"net/http"

	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/api/handlers"
)

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Health       *handlers.HealthHandler
	Contact      *handlers.ContactHandler
	Jobs         *handlers.JobHandler
	Analytics    *handlers.AnalyticsHandler
	Auth         *handlers.AuthHandler
	Messages     *handlers.MessageHandler
	Applications *handlers.ApplicationHandler
}

// Options configures the middleware stack
type Options struct {
	Verifier     TokenVerifier
	LimiterStore limiter.Store
	GeneralRate  limiter.Rate
	FormRate     limiter.Rate
	CORSOrigins  []string
	TrustProxy   bool
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Router sets up all API routes
type Router struct {
	mux *http.ServeMux
	h   Handlers
}

// NewRouter creates a new Router
func NewRouter(h Handlers) *Router {
	return &Router{
		mux: http.NewServeMux(),
		h:   h,
	}
}

// Setup configures all routes
func (r *Router) Setup(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GeneralRate.Limit == 0 {
		opts.GeneralRate = DefaultGeneralRate
	}
	if opts.FormRate.Limit == 0 {
		opts.FormRate = DefaultFormRate
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	forms := RateLimit(opts.LimiterStore, "forms", opts.FormRate, opts.Logger)
	admin := AdminAuth(opts.Verifier)

	form := func(h http.HandlerFunc) http.Handler { return forms(h) }
	protected := func(h http.HandlerFunc) http.Handler { return admin(h) }

	// Public endpoints
	r.mux.HandleFunc("GET /api/health", r.h.Health.Health)
	r.mux.Handle("POST /api/contact", form(r.h.Contact.Contact))
	r.mux.Handle("POST /api/newsletter", form(r.h.Contact.Newsletter))
	r.mux.HandleFunc("GET /api/jobs", r.h.Jobs.List)
	r.mux.HandleFunc("GET /api/jobs/{id}", r.h.Jobs.GetByID)
	r.mux.Handle("POST /api/jobs/{id}/apply", form(r.h.Jobs.Apply))
	r.mux.HandleFunc("POST /api/analytics/visit", r.h.Analytics.RecordVisit)
	r.mux.HandleFunc("POST /api/admin/login", r.h.Auth.Login)

	// Admin endpoints
	r.mux.Handle("GET /api/admin/verify", protected(r.h.Auth.Verify))

	r.mux.Handle("GET /api/admin/messages", protected(r.h.Messages.List))
	r.mux.Handle("GET /api/admin/messages/stats", protected(r.h.Messages.Stats))
	r.mux.Handle("GET /api/admin/messages/{id}", protected(r.h.Messages.GetByID))
	r.mux.Handle("PATCH /api/admin/messages/{id}/read", protected(r.h.Messages.MarkRead))
	r.mux.Handle("DELETE /api/admin/messages/{id}", protected(r.h.Messages.Delete))

	r.mux.Handle("GET /api/admin/applications", protected(r.h.Applications.List))
	r.mux.Handle("GET /api/admin/applications/stats", protected(r.h.Applications.Stats))
	r.mux.Handle("GET /api/admin/applications/export", protected(r.h.Applications.Export))
	r.mux.Handle("GET /api/admin/applications/{id}", protected(r.h.Applications.GetByID))
	r.mux.Handle("PATCH /api/admin/applications/{id}/status", protected(r.h.Applications.UpdateStatus))

	r.mux.Handle("GET /api/admin/analytics", protected(r.h.Analytics.Dashboard))
	r.mux.Handle("GET /api/admin/analytics/{date}", protected(r.h.Analytics.Day))

	r.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		handlers.RenderError(w, http.StatusNotFound, "Not found")
	})

	// Apply middleware
	return Chain(r.mux,
		Recovery(opts.Logger),
		RequestID,
		ClientIP(opts.TrustProxy),
		Logger(opts.Logger),
		CORS(opts.CORSOrigins),
		SecurityHeaders,
		HPP,
		MaxBody(opts.MaxBodyBytes),
		RateLimit(opts.LimiterStore, "general", opts.GeneralRate, opts.Logger),
	)
}
