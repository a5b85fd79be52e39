package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pricewatch/libs/catalog"
)

// History implements history(barcode?, name?, city?, chain?, days): the
// catalog path if any date has been ingested, otherwise a remote path that
// reads the archive directly for each of the most recent days dates,
// batched historyBatchSize at a time. Barcode wins over name when both are
// given; one of the two is required.
func (s *Service) History(ctx context.Context, params catalog.HistoryParams) ([]catalog.HistoryEntry, error) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			s.Metrics.HistoryTotal.Inc()
			s.Metrics.QueryLatency.ObserveDuration(time.Since(start))
		}
	}()

	if params.Barcode == "" && params.Name == "" {
		return nil, ErrBadRequest
	}
	if params.Days <= 0 {
		return nil, nil
	}

	dates, err := s.Catalog.RecentSuccessDates(ctx, params.Days)
	if err != nil {
		return nil, err
	}
	if len(dates) > 0 {
		s.recordSource(sourceCatalog)
		return s.historyCatalog(ctx, dates, params)
	}

	s.recordSource(sourceRemote)
	return s.historyRemote(ctx, params)
}

func (s *Service) historyCatalog(ctx context.Context, dates []string, params catalog.HistoryParams) ([]catalog.HistoryEntry, error) {
	var out []catalog.HistoryEntry
	for _, date := range dates {
		stats, err := s.Catalog.PriceHistory(ctx, date, params)
		if err != nil {
			return nil, err
		}
		if len(stats) == 0 {
			continue
		}
		out = append(out, catalog.HistoryEntry{Date: date, Prices: stats})
	}
	sortHistoryAscending(out)
	return out, nil
}

// historyRemote reads the upstream's archive list to pick the most recent
// params.Days dates and computes each date's aggregation directly from its
// archive, historyBatchSize dates in flight at a time.
func (s *Service) historyRemote(ctx context.Context, params catalog.HistoryParams) ([]catalog.HistoryEntry, error) {
	archives, err := s.Archive.ListArchives(ctx)
	if err != nil {
		return nil, err
	}
	n := params.Days
	if n > len(archives) {
		n = len(archives)
	}

	entries := make([]catalog.HistoryEntry, n)
	sem := semaphore.NewWeighted(historyBatchSize)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i, date := i, archives[i].Date
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			stats, err := s.computeRemoteHistoryForDate(gctx, date, params)
			if err != nil {
				return err
			}
			if len(stats) > 0 {
				entries[i] = catalog.HistoryEntry{Date: date, Prices: stats}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []catalog.HistoryEntry
	for _, e := range entries {
		if e.Date != "" {
			out = append(out, e)
		}
	}
	sortHistoryAscending(out)
	return out, nil
}

// computeRemoteHistoryForDate fetches and aggregates one date's matching
// prices directly from its archive: every available chain's three CSVs
// (unless params.Chain narrows it to one), filtered by barcode/name, city,
// and chain exactly as the catalog path filters its SQL query.
func (s *Service) computeRemoteHistoryForDate(ctx context.Context, date string, params catalog.HistoryParams) ([]catalog.ChainPriceStat, error) {
	chains, err := s.Archive.AvailableChains(ctx, date)
	if err != nil {
		return nil, err
	}
	if params.Chain != "" {
		if !containsString(chains, params.Chain) {
			return nil, nil
		}
		chains = []string{params.Chain}
	}

	nameNorm := strings.ToLower(strings.TrimSpace(params.Name))
	byChain := map[string][]decimal.Decimal{}
	var chainOrder []string

	for _, chain := range chains {
		productRecs, ok := s.fetchAndDecode(ctx, date, chain, "products.csv")
		if !ok {
			continue
		}
		matchedIDs := map[string]bool{}
		for _, p := range catalog.MapProducts(chain, date, productRecs) {
			if params.Barcode != "" {
				if p.Barcode == params.Barcode {
					matchedIDs[p.ProductID] = true
				}
			} else if strings.Contains(strings.ToLower(p.Name), nameNorm) {
				matchedIDs[p.ProductID] = true
			}
		}
		if len(matchedIDs) == 0 {
			continue
		}

		storeRecs, ok := s.fetchAndDecode(ctx, date, chain, "stores.csv")
		if !ok {
			continue
		}
		allowedStores := map[string]bool{}
		for _, st := range catalog.MapStores(chain, date, storeRecs) {
			if params.City != "" && !strings.Contains(strings.ToLower(st.City), strings.ToLower(params.City)) {
				continue
			}
			allowedStores[st.StoreID] = true
		}
		if len(allowedStores) == 0 {
			continue
		}

		priceRecs, ok := s.fetchAndDecode(ctx, date, chain, "prices.csv")
		if !ok {
			continue
		}
		for _, pr := range catalog.MapPrices(chain, date, priceRecs) {
			if !matchedIDs[pr.ProductID] || !allowedStores[pr.StoreID] {
				continue
			}
			if _, ok := byChain[chain]; !ok {
				chainOrder = append(chainOrder, chain)
			}
			byChain[chain] = append(byChain[chain], pr.Price)
		}
	}

	return catalog.AggregateByChain(chainOrder, byChain), nil
}

func sortHistoryAscending(entries []catalog.HistoryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

func containsString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
