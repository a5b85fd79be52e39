package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// InMemoryStore is a Store test double backed by plain maps, guarded by a
// single mutex. It mirrors PostgresStore's semantics (atomic ReplaceDate,
// same search/history merge rules) closely enough that the ingest driver
// and query layer can be unit-tested against it without a live Postgres.
type InMemoryStore struct {
	mu sync.Mutex

	stores   map[string][]StoreRow   // by date
	products map[string][]ProductRow // by date
	prices   map[string][]PriceRow   // by date
	log      map[string]IngestionLogRow
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stores:   map[string][]StoreRow{},
		products: map[string][]ProductRow{},
		prices:   map[string][]PriceRow{},
		log:      map[string]IngestionLogRow{},
	}
}

func (s *InMemoryStore) ReplaceDate(_ context.Context, date string, in ReplaceDateInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stores[date] = append([]StoreRow(nil), in.Stores...)
	s.products[date] = append([]ProductRow(nil), in.Products...)
	s.prices[date] = append([]PriceRow(nil), in.Prices...)
	s.log[date] = IngestionLogRow{
		Date:         date,
		StoreCount:   len(in.Stores),
		ProductCount: len(in.Products),
		PriceCount:   len(in.Prices),
		Status:       StatusSuccess,
	}
	return nil
}

func (s *InMemoryStore) MarkIngestError(_ context.Context, date string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log[date] = IngestionLogRow{Date: date, Status: StatusError, ErrorMessage: message}
	return nil
}

func (s *InMemoryStore) IsDateIngested(_ context.Context, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.log[date]
	return ok && row.Status == StatusSuccess, nil
}

func (s *InMemoryStore) LatestIngestedDate(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := ""
	found := false
	for date, row := range s.log {
		if row.Status == StatusSuccess && (!found || date > best) {
			best, found = date, true
		}
	}
	return best, found, nil
}

func (s *InMemoryStore) RecentSuccessDates(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dates []string
	for date, row := range s.log {
		if row.Status == StatusSuccess {
			dates = append(dates, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (s *InMemoryStore) SearchProducts(_ context.Context, date, q, city string) ([]ProductGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, nil
	}

	var matched []ProductRow
	chainSet := map[string]bool{}
	for _, p := range s.products[date] {
		if len(matched) >= maxSearchMatches {
			break
		}
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Brand), q) || p.Barcode == q {
			matched = append(matched, p)
			chainSet[p.Chain] = true
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	storeIndex := map[StoreKey]StoreRow{}
	for _, st := range s.stores[date] {
		if !chainSet[st.Chain] {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(st.City), strings.ToLower(city)) {
			continue
		}
		storeIndex[StoreKey{st.Chain, st.StoreID}] = st
	}

	var relevant []PriceRow
	for _, pr := range s.prices[date] {
		if chainSet[pr.Chain] {
			relevant = append(relevant, pr)
		}
	}

	return MergeProducts(matched, storeIndex, relevant), nil
}

func (s *InMemoryStore) PriceHistory(_ context.Context, date string, params HistoryParams) ([]ChainPriceStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matchID := map[StoreKey]bool{} // (chain, productID) of products matching the name/barcode+chain filter
	for _, p := range s.products[date] {
		if params.Chain != "" && p.Chain != params.Chain {
			continue
		}
		if params.Barcode != "" {
			if p.Barcode != params.Barcode {
				continue
			}
		} else if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(strings.TrimSpace(params.Name))) {
			continue
		}
		matchID[StoreKey{p.Chain, p.ProductID}] = true
	}
	if len(matchID) == 0 {
		return nil, nil
	}

	allowedStore := map[StoreKey]bool{}
	for _, st := range s.stores[date] {
		if params.City != "" && !strings.Contains(strings.ToLower(st.City), strings.ToLower(params.City)) {
			continue
		}
		allowedStore[StoreKey{st.Chain, st.StoreID}] = true
	}

	byChain := map[string][]decimal.Decimal{}
	var chainOrder []string
	for _, pr := range s.prices[date] {
		if !matchID[StoreKey{pr.Chain, pr.ProductID}] {
			continue
		}
		if !allowedStore[StoreKey{pr.Chain, pr.StoreID}] {
			continue
		}
		if _, ok := byChain[pr.Chain]; !ok {
			chainOrder = append(chainOrder, pr.Chain)
		}
		byChain[pr.Chain] = append(byChain[pr.Chain], pr.Price)
	}
	sort.Strings(chainOrder)

	return AggregateByChain(chainOrder, byChain), nil
}

func (s *InMemoryStore) Cities(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := map[string]bool{}
	for _, rows := range s.stores {
		for _, st := range rows {
			if st.City != "" {
				set[st.City] = true
			}
		}
	}
	return setToSlice(set), nil
}
