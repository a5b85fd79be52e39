package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"pricewatch/libs/csvdecode"
)

// MapStores, MapProducts, and MapPrices turn CSV records already decoded by
// libs/csvdecode into catalog rows. chain and date are stamped from the
// caller's context rather than read from the CSV, per spec.md §4.5 step 3:
// the upstream's per-chain files carry no chain/date column of their own.
// Both the ingest driver (C5) and the query layer's remote path (C6) share
// these so a CSV member decodes into the identical row shape regardless of
// which caller read it.

func MapStores(chain, date string, records []csvdecode.Record) []StoreRow {
	rows := make([]StoreRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, StoreRow{
			StoreID: r["store_id"],
			Chain:   chain,
			Date:    date,
			Type:    r["type"],
			Address: r["address"],
			City:    r["city"],
			Zipcode: r["zipcode"],
		})
	}
	return rows
}

func MapProducts(chain, date string, records []csvdecode.Record) []ProductRow {
	rows := make([]ProductRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, ProductRow{
			ProductID: r["product_id"],
			Chain:     chain,
			Date:      date,
			Barcode:   r["barcode"],
			Name:      r["name"],
			Brand:     r["brand"],
			Category:  r["category"],
			Unit:      r["unit"],
			Quantity:  r["quantity"],
		})
	}
	return rows
}

func MapPrices(chain, date string, records []csvdecode.Record) []PriceRow {
	rows := make([]PriceRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, PriceRow{
			Chain:        chain,
			StoreID:      r["store_id"],
			ProductID:    r["product_id"],
			Date:         date,
			Price:        ParsePrice(r["price"]),
			UnitPrice:    ParseOptionalPrice(r["unit_price"]),
			BestPrice30:  ParseOptionalPrice(r["best_price_30"]),
			AnchorPrice:  ParseOptionalPrice(r["anchor_price"]),
			SpecialPrice: ParseOptionalPrice(r["special_price"]),
		})
	}
	return rows
}

// ParsePrice coerces a mandatory price field, defaulting to zero on an
// empty or unparseable value rather than rejecting the row (spec.md §4.5:
// "matches the current behavior"; see DESIGN.md for the open-question note
// on whether this should instead skip the row).
func ParsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseOptionalPrice coerces one of the four optional reals, returning nil
// ("absent") on an empty or unparseable value.
func ParseOptionalPrice(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
