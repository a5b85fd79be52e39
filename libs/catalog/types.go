// Package catalog is the persistent store (C4): four tables keyed by date —
// stores, products, prices, and an ingestion_log recording which dates are
// queryable. It is the system's durable cache of the upstream archive, not
// a system of record: the only write path is ReplaceDate, and eviction is a
// no-op left to offline tooling.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreRow identifies one physical outlet within a chain on a date.
type StoreRow struct {
	StoreID string
	Chain   string
	Date    string
	Type    string
	Address string
	City    string
	Zipcode string
}

// ProductRow is one catalog item offered by a chain on a date. Barcode may
// be empty; when non-empty it is the fingerprint used to merge the same
// product across chains.
type ProductRow struct {
	ProductID string
	Chain     string
	Date      string
	Barcode   string
	Name      string
	Brand     string
	Category  string
	Unit      string
	Quantity  string
}

// PriceRow is one price observation for one product at one store on a date.
// The four optional fields are nil when the source CSV left them blank or
// unparseable; Price itself defaults to zero on parse failure rather than
// being omitted, per spec.
type PriceRow struct {
	Chain        string
	StoreID      string
	ProductID    string
	Date         string
	Price        decimal.Decimal
	UnitPrice    *decimal.Decimal
	BestPrice30  *decimal.Decimal
	AnchorPrice  *decimal.Decimal
	SpecialPrice *decimal.Decimal
}

// IngestionStatus is the outcome recorded for one date's ingest attempt.
type IngestionStatus string

const (
	StatusSuccess IngestionStatus = "success"
	StatusError   IngestionStatus = "error"
)

// IngestionLogRow surfaces the catalog's knowledge of which dates are
// queryable and, on failure, why a date isn't.
type IngestionLogRow struct {
	Date         string
	IngestedAt   time.Time
	StoreCount   int
	ProductCount int
	PriceCount   int
	Status       IngestionStatus
	ErrorMessage string
}

// ReplaceDateInput is the accumulated, chain-stamped rows a single ingest
// run produces for one date.
type ReplaceDateInput struct {
	Stores   []StoreRow
	Products []ProductRow
	Prices   []PriceRow
}

// ProductGroup is one fingerprint-merged product with the prices attached
// to it after the city/store filter has been applied.
type ProductGroup struct {
	Barcode   string
	Chain     string
	ProductID string
	Name      string
	Brand     string
	Category  string
	Unit      string
	Quantity  string
	Prices    []PriceEntry
}

// PriceEntry is one merged price observation attached to a ProductGroup.
type PriceEntry struct {
	Chain        string
	StoreID      string
	City         string
	Price        decimal.Decimal
	UnitPrice    *decimal.Decimal
	BestPrice30  *decimal.Decimal
	AnchorPrice  *decimal.Decimal
	SpecialPrice *decimal.Decimal
}

// ChainPriceStat is one chain's aggregated price statistics for one date in
// a history result.
type ChainPriceStat struct {
	Chain    string
	MinPrice decimal.Decimal
	AvgPrice decimal.Decimal
}

// HistoryEntry is one date's worth of per-chain aggregates in a history
// result. Chains with no matching observations on that date are omitted.
type HistoryEntry struct {
	Date   string
	Prices []ChainPriceStat
}

// HistoryParams selects the product and filters for a PriceHistory call.
// Barcode wins over Name when both are set.
type HistoryParams struct {
	Barcode string
	Name    string
	City    string
	Chain   string
	Days    int
}

// KnownChains is the set of chain codes spec.md §6 documents as known.
// Unknown codes discovered in an archive still ingest normally; this table
// is consulted only to log an "unexpected chain" notice.
var KnownChains = map[string]bool{
	"konzum": true, "spar": true, "lidl": true, "kaufland": true,
	"plodine": true, "tommy": true, "studenac": true, "eurospin": true,
	"dm": true, "ktc": true, "metro": true, "trgocentar": true,
	"vrutak": true, "ribola": true, "ntl": true, "roto": true,
	"boso": true, "brodokomerc": true, "jadranka_trgovina": true,
	"trgovina-krk": true,
}
