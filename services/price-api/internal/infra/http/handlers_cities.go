package httpapi

import (
	"encoding/json"
	"net/http"
)

// RegisterCities exposes cities() at GET /v1/cities, SPEC_FULL.md's third
// query-layer entry point alongside search and history.
func (s *Server) RegisterCities() {
	s.mux.HandleFunc("/v1/cities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		cities, err := s.query.Cities(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cities)
	})
}
