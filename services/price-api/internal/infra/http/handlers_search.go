package httpapi

import (
	"encoding/json"
	"net/http"
)

// searchRequest is search()'s boundary DTO: date and q are required, city
// narrows store matches per spec.md §4.6.1.
type searchRequest struct {
	Date string `validate:"required,datetime=2006-01-02"`
	Q    string `validate:"required"`
	City string
}

// RegisterSearch exposes search() at GET /v1/search.
func (s *Server) RegisterSearch() {
	s.mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		req := searchRequest{Date: q.Get("date"), Q: q.Get("q"), City: q.Get("city")}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := s.query.Search(r.Context(), req.Date, req.Q, req.City)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
}
