package httpapi

import "net/http"

// RegisterMetrics exposes the query.Metrics registry in Prometheus text
// format, the way libs/observability.Registry.WriteText is meant to be
// served.
func (s *Server) RegisterMetrics() {
	s.mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.registry.WriteText(w)
	})
}
