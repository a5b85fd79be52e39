package catalog

import "context"

// Store is the persistence port C4 exposes to the ingest driver (C5) and
// the query layer (C6). PostgresStore is the production implementation;
// InMemoryStore is a test double with the same semantics, so both services
// are unit-testable without a live Postgres.
type Store interface {
	// ReplaceDate atomically deletes all rows for date across the three
	// tables and inserts in, then records a success row in ingestion_log
	// with the three counts. On any insert failure it rolls back to the
	// previous state for date and records status=error with message.
	ReplaceDate(ctx context.Context, date string, in ReplaceDateInput) error

	// MarkIngestError records a failed ingest attempt for date without
	// touching the stores/products/prices tables, used when the failure
	// happens before any rows are accumulated (size probe, directory
	// fetch, malformed archive).
	MarkIngestError(ctx context.Context, date string, message string) error

	// IsDateIngested reports whether date has a status=success row.
	IsDateIngested(ctx context.Context, date string) (bool, error)

	// LatestIngestedDate returns the maximum date with status=success, and
	// false if none exists.
	LatestIngestedDate(ctx context.Context) (string, bool, error)

	// RecentSuccessDates returns up to limit status=success dates, most
	// recent first, used to drive the catalog path of PriceHistory.
	RecentSuccessDates(ctx context.Context, limit int) ([]string, error)

	// SearchProducts implements the catalog path of search(): products
	// matching q on name/brand/barcode for date, with prices filtered to
	// stores matching city, merged and capped per spec.md §4.6.1.
	SearchProducts(ctx context.Context, date, q, city string) ([]ProductGroup, error)

	// PriceHistory implements the catalog path of history() for a single
	// date: matching products' prices grouped and aggregated by chain.
	// Returns a nil slice (not an error) when nothing matches on that date.
	PriceHistory(ctx context.Context, date string, params HistoryParams) ([]ChainPriceStat, error)

	// Cities returns the distinct, non-empty city values across every
	// ingested date, for the catalog path of cities().
	Cities(ctx context.Context) ([]string, error)
}
