// Package ingest implements the ingest driver (C5): for a given date,
// enumerate chains, fetch and decode each chain's three CSVs with bounded
// concurrency, and replace that date's catalog rows atomically.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pricewatch/libs/catalog"
	"pricewatch/libs/csvdecode"
	"pricewatch/libs/observability"
)

// ArchiveSource is the subset of archiveclient.Client the driver needs,
// narrowed to an interface so it can run against a fake in tests.
type ArchiveSource interface {
	AvailableChains(ctx context.Context, date string) ([]string, error)
	ReadCsv(ctx context.Context, date, chain, file string) (string, error)
}

// Driver wires the archive client and catalog store together under the
// bounded-concurrency, single-writer-per-date policy spec.md §5 describes.
type Driver struct {
	Archive     ArchiveSource
	Catalog     catalog.Store
	Lock        Locker
	Concurrency int
}

// Summary is the outcome of one Ingest call, logged as a structured JSON
// line for operator tooling (SPEC_FULL.md supplemented feature 5).
type Summary struct {
	Date         string `json:"date"`
	NoOp         bool   `json:"no_op"`
	ChainsTried  int    `json:"chains_tried"`
	ChainsFailed int    `json:"chains_failed"`
	StoreCount   int    `json:"store_count"`
	ProductCount int    `json:"product_count"`
	PriceCount   int    `json:"price_count"`
}

type chainResult struct {
	chain    string
	stores   []catalog.StoreRow
	products []catalog.ProductRow
	prices   []catalog.PriceRow
	err      error
}

// Ingest implements spec.md §4.5. A non-force call whose date already has
// a success record is a no-op; otherwise the driver fetches and replaces
// the date's catalog rows. Per-chain failures are logged and swallowed —
// the ingest still reports success with whatever chains produced rows. A
// failure before any chain is attempted (size probe, directory fetch,
// malformed archive) aborts with status=error.
func (d *Driver) Ingest(ctx context.Context, date string, force bool) (Summary, error) {
	if !force {
		ingested, err := d.Catalog.IsDateIngested(ctx, date)
		if err != nil {
			return Summary{}, err
		}
		if ingested {
			observability.LogEvent(ctx, "info", "ingest_noop_already_success", map[string]any{"date": date})
			return Summary{Date: date, NoOp: true}, nil
		}
	}

	release, ok, err := d.Lock.TryLock(ctx, date)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire ingest lock for %s: %w", date, err)
	}
	if !ok {
		observability.LogEvent(ctx, "info", "ingest_noop_lock_held", map[string]any{"date": date})
		return Summary{Date: date, NoOp: true}, nil
	}
	defer release()

	if !force {
		// Re-check inside the lock: a concurrent ingest may have completed
		// between the first check and acquiring the lock.
		ingested, err := d.Catalog.IsDateIngested(ctx, date)
		if err != nil {
			return Summary{}, err
		}
		if ingested {
			return Summary{Date: date, NoOp: true}, nil
		}
	}

	chains, err := d.Archive.AvailableChains(ctx, date)
	if err != nil {
		markErr := d.Catalog.MarkIngestError(ctx, date, err.Error())
		observability.LogEvent(ctx, "error", "ingest_directory_fetch_failed", map[string]any{"date": date, "error": err.Error()})
		if markErr != nil {
			return Summary{}, fmt.Errorf("%w (also failed to record ingestion_log: %v)", err, markErr)
		}
		return Summary{}, err
	}

	results := d.fetchChains(ctx, date, chains)

	var in catalog.ReplaceDateInput
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			observability.LogEvent(ctx, "warn", "ingest_chain_failed", map[string]any{
				"date": date, "chain": r.chain, "error": r.err.Error(),
			})
			if !catalog.KnownChains[r.chain] {
				observability.LogEvent(ctx, "info", "ingest_unexpected_chain", map[string]any{"date": date, "chain": r.chain})
			}
			continue
		}
		in.Stores = append(in.Stores, r.stores...)
		in.Products = append(in.Products, r.products...)
		in.Prices = append(in.Prices, r.prices...)
	}

	if err := d.Catalog.ReplaceDate(ctx, date, in); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Date:         date,
		ChainsTried:  len(chains),
		ChainsFailed: failed,
		StoreCount:   len(in.Stores),
		ProductCount: len(in.Products),
		PriceCount:   len(in.Prices),
	}
	observability.LogEvent(ctx, "info", "ingest_summary", map[string]any{
		"date":          summary.Date,
		"chains_tried":  summary.ChainsTried,
		"chains_failed": summary.ChainsFailed,
		"store_count":   summary.StoreCount,
		"product_count": summary.ProductCount,
		"price_count":   summary.PriceCount,
	})
	return summary, nil
}

// fetchChains runs one task per chain with at most d.Concurrency in
// flight. Per-chain errors are captured, not propagated through the
// errgroup, since a malformed chain must not cancel its siblings.
func (d *Driver) fetchChains(ctx context.Context, date string, chains []string) []chainResult {
	results := make([]chainResult, len(chains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	var mu sync.Mutex
	for i, chain := range chains {
		i, chain := i, chain
		g.Go(func() error {
			r := d.fetchOneChain(gctx, date, chain)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func (d *Driver) fetchOneChain(ctx context.Context, date, chain string) chainResult {
	storesText, err := d.Archive.ReadCsv(ctx, date, chain, "stores.csv")
	if err != nil {
		return chainResult{chain: chain, err: err}
	}
	productsText, err := d.Archive.ReadCsv(ctx, date, chain, "products.csv")
	if err != nil {
		return chainResult{chain: chain, err: err}
	}
	pricesText, err := d.Archive.ReadCsv(ctx, date, chain, "prices.csv")
	if err != nil {
		return chainResult{chain: chain, err: err}
	}

	storeRecs, err := decodeOrEmpty(storesText)
	if err != nil {
		return chainResult{chain: chain, err: err}
	}
	productRecs, err := decodeOrEmpty(productsText)
	if err != nil {
		return chainResult{chain: chain, err: err}
	}
	priceRecs, err := decodeOrEmpty(pricesText)
	if err != nil {
		return chainResult{chain: chain, err: err}
	}

	return chainResult{
		chain:    chain,
		stores:   catalog.MapStores(chain, date, storeRecs),
		products: catalog.MapProducts(chain, date, productRecs),
		prices:   catalog.MapPrices(chain, date, priceRecs),
	}
}

// decodeOrEmpty decodes text as CSV, treating an empty member (missing
// triple, per spec.md §4.3) as zero records rather than an error.
func decodeOrEmpty(text string) ([]csvdecode.Record, error) {
	if text == "" {
		return nil, nil
	}
	return csvdecode.All(strings.NewReader(text))
}
