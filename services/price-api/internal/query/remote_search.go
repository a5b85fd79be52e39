package query

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pricewatch/libs/catalog"
	"pricewatch/libs/csvdecode"
	"pricewatch/libs/observability"
)

// remoteSearchProducts implements the two-phase remote path from spec.md
// §4.6.1: Phase A fetches only products.csv per chain (bounded concurrency
// phaseAConcurrency) to find which chains have a match; Phase B fetches
// stores.csv and prices.csv only for those chains (bounded concurrency
// phaseBConcurrency), then merges exactly as the catalog path does.
func (s *Service) remoteSearchProducts(ctx context.Context, date, q, city string) ([]catalog.ProductGroup, error) {
	qNorm := strings.ToLower(strings.TrimSpace(q))

	chains, err := s.Archive.AvailableChains(ctx, date)
	if err != nil {
		return nil, err
	}

	matches := make([][]catalog.ProductRow, len(chains))
	sem := semaphore.NewWeighted(phaseAConcurrency)
	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range chains {
		i, chain := i, chain
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			recs, ok := s.fetchAndDecode(gctx, date, chain, "products.csv")
			if !ok {
				return nil
			}
			for _, p := range catalog.MapProducts(chain, date, recs) {
				if matchesQuery(p.Name, p.Brand, p.Barcode, qNorm) {
					matches[i] = append(matches[i], p)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matchedProducts []catalog.ProductRow
	var matchedChains []string
	for i, chain := range chains {
		if len(matches[i]) == 0 {
			continue
		}
		matchedProducts = append(matchedProducts, matches[i]...)
		matchedChains = append(matchedChains, chain)
	}
	if len(matchedProducts) == 0 {
		return nil, nil
	}

	type chainRows struct {
		stores []catalog.StoreRow
		prices []catalog.PriceRow
	}
	rowsByChain := make([]chainRows, len(matchedChains))
	sem2 := semaphore.NewWeighted(phaseBConcurrency)
	g2, gctx2 := errgroup.WithContext(ctx)
	for i, chain := range matchedChains {
		i, chain := i, chain
		g2.Go(func() error {
			if err := sem2.Acquire(gctx2, 1); err != nil {
				return err
			}
			defer sem2.Release(1)

			storeRecs, ok := s.fetchAndDecode(gctx2, date, chain, "stores.csv")
			if !ok {
				return nil
			}
			priceRecs, ok := s.fetchAndDecode(gctx2, date, chain, "prices.csv")
			if !ok {
				return nil
			}
			rowsByChain[i] = chainRows{
				stores: catalog.MapStores(chain, date, storeRecs),
				prices: catalog.MapPrices(chain, date, priceRecs),
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	storeIndex := map[catalog.StoreKey]catalog.StoreRow{}
	cityNorm := strings.ToLower(city)
	var allPrices []catalog.PriceRow
	for _, cr := range rowsByChain {
		for _, st := range cr.stores {
			if city != "" && !strings.Contains(strings.ToLower(st.City), cityNorm) {
				continue
			}
			storeIndex[catalog.StoreKey{Chain: st.Chain, StoreID: st.StoreID}] = st
		}
		allPrices = append(allPrices, cr.prices...)
	}

	return catalog.MergeProducts(matchedProducts, storeIndex, allPrices), nil
}

// fetchAndDecode reads and decodes one CSV member, treating a fetch or
// decode failure as "this chain contributes nothing" rather than aborting
// the whole search — one malformed chain must not fail every other chain's
// results.
func (s *Service) fetchAndDecode(ctx context.Context, date, chain, file string) ([]csvdecode.Record, bool) {
	text, err := s.Archive.ReadCsv(ctx, date, chain, file)
	if s.Metrics != nil {
		s.Metrics.RemoteFetches.Inc()
	}
	if err != nil {
		observability.LogEvent(ctx, "warn", "query_remote_fetch_failed", map[string]any{
			"date": date, "chain": chain, "file": file, "error": err.Error(),
		})
		return nil, false
	}
	if text == "" {
		return nil, true
	}
	recs, err := csvdecode.All(strings.NewReader(text))
	if err != nil {
		observability.LogEvent(ctx, "warn", "query_remote_decode_failed", map[string]any{
			"date": date, "chain": chain, "file": file, "error": err.Error(),
		})
		return nil, false
	}
	return recs, true
}
