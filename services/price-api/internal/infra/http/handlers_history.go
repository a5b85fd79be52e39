package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"pricewatch/libs/catalog"
)

// historyRequest is history()'s boundary DTO: barcode wins over name when
// both are given; spec.md §4.6.2 requires at least one to be present,
// enforced by query.Service itself (query.ErrBadRequest) rather than here,
// since "at least one of two fields" isn't expressible with a single
// validator struct tag.
type historyRequest struct {
	Barcode string
	Name    string
	City    string
	Chain   string
	Days    int `validate:"gte=0"`
}

const defaultHistoryDays = 30

// RegisterHistory exposes history() at GET /v1/history.
func (s *Server) RegisterHistory() {
	s.mux.HandleFunc("/v1/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		days := defaultHistoryDays
		if raw := q.Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = n
		}

		req := historyRequest{
			Barcode: q.Get("barcode"),
			Name:    q.Get("name"),
			City:    q.Get("city"),
			Chain:   q.Get("chain"),
			Days:    days,
		}
		if err := s.validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		entries, err := s.query.History(r.Context(), catalog.HistoryParams{
			Barcode: req.Barcode, Name: req.Name, City: req.City, Chain: req.Chain, Days: req.Days,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})
}
