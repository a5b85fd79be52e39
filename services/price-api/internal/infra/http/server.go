// Package httpapi is the thin HTTP envelope around the query layer (C6):
// request parsing and validation, status-code mapping per spec.md §7, and
// the health/metrics endpoints operators expect.
package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"pricewatch/libs/middleware"
	"pricewatch/libs/observability"
	"pricewatch/services/price-api/internal/query"
)

// Server wires the query service behind a stdlib mux, matching the
// teacher's Server shape (a struct holding the mux plus cross-cutting
// collaborators, one Register* method per concern).
type Server struct {
	mux         *http.ServeMux
	query       *query.Service
	registry    *observability.Registry
	rateLimiter *middleware.RateLimiter
	corsConfig  middleware.CORSConfig
	validate    *validator.Validate
}

// NewServer builds a Server around an already-constructed query.Service and
// metrics registry, reading CORS and rate-limit tuning from the environment
// the way the teacher's NewServer does.
func NewServer(svc *query.Service, reg *observability.Registry) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		query:       svc,
		registry:    reg,
		rateLimiter: middleware.NewRateLimiterFromEnv(),
		corsConfig:  middleware.CORSConfigFromEnv(),
		validate:    validator.New(),
	}
	s.RegisterHealth()
	s.RegisterMetrics()
	s.RegisterSearch()
	s.RegisterHistory()
	s.RegisterCities()
	return s
}

// Handler returns the HTTP handler with all middleware applied, innermost
// to outermost: rate limiting, then CORS, then flow-id propagation.
func (s *Server) Handler() http.Handler {
	handler := http.Handler(s.mux)
	handler = s.rateLimiter.Middleware(handler)
	handler = middleware.CORS(s.corsConfig)(handler)
	handler = middleware.FlowID(handler)
	return handler
}
