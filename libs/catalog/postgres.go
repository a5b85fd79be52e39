package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// maxBatchRows caps the number of rows in a single multi-row INSERT
// statement, per spec.md §4.4, to stay within Postgres's parameter limit
// regardless of how wide a table's column list is.
const maxBatchRows = 500

// PostgresStore implements Store against a Postgres database reachable via
// database/sql and the pgx stdlib driver (libs/database.Connect).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-connected, already-migrated database
// handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ReplaceDate(ctx context.Context, date string, in ReplaceDateInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrCatalogUnavailable, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"prices", "products", "stores"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE date = $1", table), date); err != nil {
			return s.recordFailure(ctx, date, fmt.Errorf("%w: delete %s for %s: %v", ErrCatalogUnavailable, table, date, err))
		}
	}

	if err := insertStores(ctx, tx, in.Stores); err != nil {
		return s.recordFailure(ctx, date, err)
	}
	if err := insertProducts(ctx, tx, in.Products); err != nil {
		return s.recordFailure(ctx, date, err)
	}
	if err := insertPrices(ctx, tx, in.Prices); err != nil {
		return s.recordFailure(ctx, date, err)
	}

	if err := upsertIngestionLog(ctx, tx, IngestionLogRow{
		Date:         date,
		StoreCount:   len(in.Stores),
		ProductCount: len(in.Products),
		PriceCount:   len(in.Prices),
		Status:       StatusSuccess,
	}); err != nil {
		return fmt.Errorf("%w: write ingestion_log for %s: %v", ErrCatalogUnavailable, date, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit replaceDate for %s: %v", ErrCatalogUnavailable, date, err)
	}
	return nil
}

// recordFailure rolls back the caller's transaction (via the deferred
// Rollback) and records the error in ingestion_log on a fresh connection,
// since the failed transaction can no longer be used.
func (s *PostgresStore) recordFailure(ctx context.Context, date string, cause error) error {
	logErr := s.MarkIngestError(ctx, date, cause.Error())
	if logErr != nil {
		return fmt.Errorf("%w (also failed to record ingestion_log: %v)", cause, logErr)
	}
	return cause
}

func (s *PostgresStore) MarkIngestError(ctx context.Context, date string, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrCatalogUnavailable, err)
	}
	defer tx.Rollback()

	if err := upsertIngestionLog(ctx, tx, IngestionLogRow{
		Date:         date,
		Status:       StatusError,
		ErrorMessage: message,
	}); err != nil {
		return fmt.Errorf("%w: write ingestion_log for %s: %v", ErrCatalogUnavailable, date, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit ingest error for %s: %v", ErrCatalogUnavailable, date, err)
	}
	return nil
}

func upsertIngestionLog(ctx context.Context, tx *sql.Tx, row IngestionLogRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingestion_log (date, ingested_at, store_count, product_count, price_count, status, error_message)
		VALUES ($1, extract(epoch from now()), $2, $3, $4, $5, $6)
		ON CONFLICT (date) DO UPDATE SET
			ingested_at = extract(epoch from now()),
			store_count = excluded.store_count,
			product_count = excluded.product_count,
			price_count = excluded.price_count,
			status = excluded.status,
			error_message = excluded.error_message
	`, row.Date, row.StoreCount, row.ProductCount, row.PriceCount, string(row.Status), row.ErrorMessage)
	return err
}

func insertStores(ctx context.Context, tx *sql.Tx, rows []StoreRow) error {
	cols := []string{"store_id", "chain", "date", "type", "address", "city", "zipcode"}
	return batchInsert(ctx, tx, "stores", cols, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.StoreID, r.Chain, r.Date, r.Type, r.Address, r.City, r.Zipcode}
	})
}

func insertProducts(ctx context.Context, tx *sql.Tx, rows []ProductRow) error {
	cols := []string{"product_id", "chain", "date", "barcode", "name", "brand", "category", "unit", "quantity"}
	return batchInsert(ctx, tx, "products", cols, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.ProductID, r.Chain, r.Date, r.Barcode, r.Name, r.Brand, r.Category, r.Unit, r.Quantity}
	})
}

func insertPrices(ctx context.Context, tx *sql.Tx, rows []PriceRow) error {
	cols := []string{"chain", "store_id", "product_id", "date", "price", "unit_price", "best_price_30", "anchor_price", "special_price"}
	return batchInsert(ctx, tx, "prices", cols, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Chain, r.StoreID, r.ProductID, r.Date, r.Price,
			nullableDecimal(r.UnitPrice), nullableDecimal(r.BestPrice30),
			nullableDecimal(r.AnchorPrice), nullableDecimal(r.SpecialPrice),
		}
	})
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

// batchInsert issues one multi-row INSERT per batch of at most
// maxBatchRows rows, rather than one statement per row, trading statement
// count for parameter count.
func batchInsert(ctx context.Context, tx *sql.Tx, table string, cols []string, n int, row func(i int) []any) error {
	for start := 0; start < n; start += maxBatchRows {
		end := start + maxBatchRows
		if end > n {
			end = n
		}

		var placeholders []string
		var args []any
		argN := 1
		for i := start; i < end; i++ {
			vals := row(i)
			ph := make([]string, len(vals))
			for j := range vals {
				ph[j] = fmt.Sprintf("$%d", argN)
				argN++
			}
			placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
			args = append(args, vals...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: insert into %s: %v", ErrCatalogUnavailable, table, err)
		}
	}
	return nil
}

func (s *PostgresStore) IsDateIngested(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ingestion_log WHERE date = $1 AND status = 'success')`, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: isDateIngested(%s): %v", ErrCatalogUnavailable, date, err)
	}
	return exists, nil
}

func (s *PostgresStore) LatestIngestedDate(ctx context.Context) (string, bool, error) {
	var date string
	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM ingestion_log WHERE status = 'success' ORDER BY date DESC LIMIT 1`,
	).Scan(&date)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: latestIngestedDate: %v", ErrCatalogUnavailable, err)
	}
	return date, true, nil
}

func (s *PostgresStore) RecentSuccessDates(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date FROM ingestion_log WHERE status = 'success' ORDER BY date DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recentSuccessDates: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: scan recentSuccessDates: %v", ErrCatalogUnavailable, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

const maxSearchMatches = 500
const maxSearchGroups = 50

func (s *PostgresStore) SearchProducts(ctx context.Context, date, q, city string) ([]ProductGroup, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil, nil
	}
	like := "%" + q + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, chain, barcode, name, brand, category, unit, quantity
		FROM products
		WHERE date = $1 AND (lower(name) LIKE $2 OR lower(brand) LIKE $2 OR barcode = $3)
		LIMIT $4
	`, date, like, q, maxSearchMatches)
	if err != nil {
		return nil, fmt.Errorf("%w: searchProducts query products: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var products []ProductRow
	chainSet := map[string]bool{}
	var productIDs []string
	for rows.Next() {
		var p ProductRow
		p.Date = date
		if err := rows.Scan(&p.ProductID, &p.Chain, &p.Barcode, &p.Name, &p.Brand, &p.Category, &p.Unit, &p.Quantity); err != nil {
			return nil, fmt.Errorf("%w: scan product: %v", ErrCatalogUnavailable, err)
		}
		products = append(products, p)
		chainSet[p.Chain] = true
		productIDs = append(productIDs, p.ProductID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate products: %v", ErrCatalogUnavailable, err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	chains := setToSlice(chainSet)
	storeIndex, err := s.loadStoreIndex(ctx, date, chains, city)
	if err != nil {
		return nil, err
	}

	prices, err := s.loadPrices(ctx, date, chains, productIDs)
	if err != nil {
		return nil, err
	}

	return MergeProducts(products, storeIndex, prices), nil
}

// StoreKey identifies a store row for merge/aggregation lookups. Exported
// so the query layer's remote path can build the same index shape C4 does
// from CSV-parsed rows instead of SQL rows.
type StoreKey struct{ Chain, StoreID string }

func (s *PostgresStore) loadStoreIndex(ctx context.Context, date string, chains []string, city string) (map[StoreKey]StoreRow, error) {
	if len(chains) == 0 {
		return map[StoreKey]StoreRow{}, nil
	}
	query := `SELECT store_id, chain, city FROM stores WHERE date = $1 AND chain = ANY($2)`
	args := []any{date, chains}
	if city != "" {
		query += ` AND city ILIKE $3`
		args = append(args, "%"+city+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: load stores: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	idx := map[StoreKey]StoreRow{}
	for rows.Next() {
		var r StoreRow
		if err := rows.Scan(&r.StoreID, &r.Chain, &r.City); err != nil {
			return nil, fmt.Errorf("%w: scan store: %v", ErrCatalogUnavailable, err)
		}
		idx[StoreKey{r.Chain, r.StoreID}] = r
	}
	return idx, rows.Err()
}

func (s *PostgresStore) loadPrices(ctx context.Context, date string, chains, productIDs []string) ([]PriceRow, error) {
	if len(chains) == 0 || len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain, store_id, product_id, price, unit_price, best_price_30, anchor_price, special_price
		FROM prices
		WHERE date = $1 AND chain = ANY($2) AND product_id = ANY($3)
	`, date, chains, productIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: load prices: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var out []PriceRow
	for rows.Next() {
		var r PriceRow
		r.Date = date
		var unit, best, anchor, special sql.NullString
		if err := rows.Scan(&r.Chain, &r.StoreID, &r.ProductID, &r.Price, &unit, &best, &anchor, &special); err != nil {
			return nil, fmt.Errorf("%w: scan price: %v", ErrCatalogUnavailable, err)
		}
		r.UnitPrice = parseNullableDecimal(unit)
		r.BestPrice30 = parseNullableDecimal(best)
		r.AnchorPrice = parseNullableDecimal(anchor)
		r.SpecialPrice = parseNullableDecimal(special)
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseNullableDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MergeProducts groups products by fingerprint (barcode, or (chain,
// product_id) when barcode is empty), attaches every price whose store
// survived the city filter, discards empty groups, and returns at most
// maxSearchGroups sorted descending by attached price count.
func MergeProducts(products []ProductRow, storeIndex map[StoreKey]StoreRow, prices []PriceRow) []ProductGroup {
	groups := map[string]*ProductGroup{}
	order := []string{}

	fingerprint := func(chain, productID, barcode string) string {
		if barcode != "" {
			return "b:" + barcode
		}
		return "p:" + chain + ":" + productID
	}

	for _, p := range products {
		fp := fingerprint(p.Chain, p.ProductID, p.Barcode)
		if _, ok := groups[fp]; !ok {
			groups[fp] = &ProductGroup{
				Barcode:   p.Barcode,
				Chain:     p.Chain,
				ProductID: p.ProductID,
				Name:      p.Name,
				Brand:     p.Brand,
				Category:  p.Category,
				Unit:      p.Unit,
				Quantity:  p.Quantity,
			}
			order = append(order, fp)
		}
	}

	productFP := map[StoreKey]string{} // (chain, productID) -> fingerprint, for price attachment
	for _, p := range products {
		productFP[StoreKey{p.Chain, p.ProductID}] = fingerprint(p.Chain, p.ProductID, p.Barcode)
	}

	for _, pr := range prices {
		st, ok := storeIndex[StoreKey{pr.Chain, pr.StoreID}]
		if !ok {
			continue // filtered out by city, or orphaned price row
		}
		fp, ok := productFP[StoreKey{pr.Chain, pr.ProductID}]
		if !ok {
			continue
		}
		g := groups[fp]
		g.Prices = append(g.Prices, PriceEntry{
			Chain:        pr.Chain,
			StoreID:      pr.StoreID,
			City:         st.City,
			Price:        pr.Price,
			UnitPrice:    pr.UnitPrice,
			BestPrice30:  pr.BestPrice30,
			AnchorPrice:  pr.AnchorPrice,
			SpecialPrice: pr.SpecialPrice,
		})
	}

	var out []ProductGroup
	for _, fp := range order {
		g := groups[fp]
		if len(g.Prices) == 0 {
			continue
		}
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Prices) > len(out[j].Prices) })
	if len(out) > maxSearchGroups {
		out = out[:maxSearchGroups]
	}
	return out
}

func (s *PostgresStore) PriceHistory(ctx context.Context, date string, params HistoryParams) ([]ChainPriceStat, error) {
	query := `
		SELECT p.chain, pr.price
		FROM products p
		JOIN prices pr ON pr.chain = p.chain AND pr.product_id = p.product_id AND pr.date = p.date
		JOIN stores st ON st.chain = pr.chain AND st.store_id = pr.store_id AND st.date = pr.date
		WHERE p.date = $1`
	args := []any{date}
	argN := 2

	if params.Barcode != "" {
		query += fmt.Sprintf(" AND p.barcode = $%d", argN)
		args = append(args, params.Barcode)
		argN++
	} else {
		query += fmt.Sprintf(" AND lower(p.name) LIKE $%d", argN)
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(params.Name))+"%")
		argN++
	}
	if params.Chain != "" {
		query += fmt.Sprintf(" AND p.chain = $%d", argN)
		args = append(args, params.Chain)
		argN++
	}
	if params.City != "" {
		query += fmt.Sprintf(" AND st.city ILIKE $%d", argN)
		args = append(args, "%"+params.City+"%")
		argN++
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: priceHistory(%s): %v", ErrCatalogUnavailable, date, err)
	}
	defer rows.Close()

	byChain := map[string][]decimal.Decimal{}
	var chainOrder []string
	for rows.Next() {
		var chain string
		var price decimal.Decimal
		if err := rows.Scan(&chain, &price); err != nil {
			return nil, fmt.Errorf("%w: scan priceHistory row: %v", ErrCatalogUnavailable, err)
		}
		if _, ok := byChain[chain]; !ok {
			chainOrder = append(chainOrder, chain)
		}
		byChain[chain] = append(byChain[chain], price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate priceHistory: %v", ErrCatalogUnavailable, err)
	}

	return AggregateByChain(chainOrder, byChain), nil
}

// AggregateByChain computes min and mean price per chain, equal weight per
// store observation.
func AggregateByChain(chainOrder []string, byChain map[string][]decimal.Decimal) []ChainPriceStat {
	var out []ChainPriceStat
	for _, chain := range chainOrder {
		prices := byChain[chain]
		if len(prices) == 0 {
			continue
		}
		min := prices[0]
		sum := decimal.Zero
		for _, p := range prices {
			if p.LessThan(min) {
				min = p
			}
			sum = sum.Add(p)
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(prices))))
		out = append(out, ChainPriceStat{Chain: chain, MinPrice: min, AvgPrice: avg})
	}
	return out
}

func (s *PostgresStore) Cities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT city FROM stores WHERE city <> '' ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("%w: cities: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%w: scan city: %v", ErrCatalogUnavailable, err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}
