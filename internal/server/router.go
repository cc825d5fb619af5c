// Package server assembles the HTTP surface.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/guardrail/common/middleware"
	"github.com/telhawk-systems/guardrail/internal/auth"
	"github.com/telhawk-systems/guardrail/internal/handlers"
	"github.com/telhawk-systems/guardrail/internal/metrics"
)

// Options tune the cross-cutting middleware.
type Options struct {
	CORS         middleware.CORSConfig
	HSTS         bool
	MaxBodyBytes int64
}

// NewRouter returns the guardrail HTTP handler.
//
// Route layout:
//
//	GET  /healthz                              liveness and store reachability
//	GET  /metrics                              Prometheus scrape
//	POST /api/v1/log-security-event            client event logging
//	POST /api/v1/enhanced-security-monitoring  logging plus threat detection
//	POST /api/v1/automated-response            containment playbooks
//	POST /api/v1/zero-trust-verification       session verification
//	POST /api/v1/rate-limit/check              sliding-window quota check
//	POST /api/v1/trust/activity                behavioral trust updates
//	POST /api/v1/admin-security-data           staff dashboards (bearer + role)
func NewRouter(h *handlers.Handler, authn *auth.Authenticator, opts Options) http.Handler {
	if len(opts.CORS.AllowedMethods) == 0 {
		opts.CORS.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opts.CORS.AllowedHeaders) == 0 {
		opts.CORS.AllowedHeaders = []string{"Authorization", "Content-Type", "X-Client-ID", "X-Request-ID"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(opts.HSTS))
	r.Use(observe)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(opts.CORS))
		if opts.MaxBodyBytes > 0 {
			r.Use(chimw.RequestSize(opts.MaxBodyBytes))
		}

		r.Post("/log-security-event", h.LogSecurityEvent)
		r.Post("/enhanced-security-monitoring", h.EnhancedMonitoring)
		r.Post("/automated-response", h.AutomatedResponse)
		r.Post("/zero-trust-verification", h.ZeroTrustVerification)
		r.Post("/rate-limit/check", h.RateLimitCheck)
		r.Post("/trust/activity", h.TrustActivity)

		r.With(authn.RequireStaff).Post("/admin-security-data", h.AdminSecurityData)
	})

	return r
}

// observe records request latency by route pattern, so path parameters and
// unknown paths do not create new series.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
