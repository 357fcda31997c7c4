package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slotbook/billing/pkg/httpserver"
	"github.com/slotbook/billing/pkg/requestid"
)

// Handler mounts Routes behind the request middleware and adds the ops
// endpoints: liveness, readiness over checks, and Prometheus metrics from
// gatherer (omitted when nil).
func (s *Service) Handler(gatherer prometheus.Gatherer, checks ...httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", httpserver.Liveness())
	r.Get("/health/ready", httpserver.Readiness(s.log, s.cfg.ReadyTimeout, checks...))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Mount("/", s.Routes())
	return r
}
