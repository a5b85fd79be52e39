package query

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
	"pricewatch/libs/observability"
)

type fakeArchive struct {
	archives []archiveclient.ArchiveDescriptor
	chains   []string
	csv      map[string]string // key: date/chain/file
}

func (f *fakeArchive) ListArchives(context.Context) ([]archiveclient.ArchiveDescriptor, error) {
	return f.archives, nil
}

func (f *fakeArchive) ResolveDate(_ context.Context, date string) (string, error) {
	for _, a := range f.archives {
		if a.Date == date {
			return date, nil
		}
	}
	if len(f.archives) == 0 {
		return "", archiveclient.ErrArchiveNotFound
	}
	return f.archives[0].Date, nil
}

func (f *fakeArchive) AvailableChains(context.Context, string) ([]string, error) {
	return f.chains, nil
}

func (f *fakeArchive) ReadCsv(_ context.Context, date, chain, file string) (string, error) {
	return f.csv[date+"/"+chain+"/"+file], nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSearchCatalogHit(t *testing.T) {
	store := catalog.NewInMemoryStore()
	store.ReplaceDate(context.Background(), "2025-06-01", catalog.ReplaceDateInput{
		Stores: []catalog.StoreRow{{StoreID: "1", Chain: "lidl", Date: "2025-06-01", City: "Zagreb"}},
		Products: []catalog.ProductRow{{
			ProductID: "A1", Chain: "lidl", Date: "2025-06-01",
			Barcode: "5901234123457", Name: "Mlijeko 1L", Brand: "Latte",
		}},
		Prices: []catalog.PriceRow{{Chain: "lidl", StoreID: "1", ProductID: "A1", Date: "2025-06-01", Price: dec("1.29")}},
	})

	s := &Service{Catalog: store, Archive: &fakeArchive{}}
	result, err := s.Search(context.Background(), "2025-06-01", "mlij", "Zagreb")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Source != "db" || result.ActualDate != "2025-06-01" {
		t.Fatalf("unexpected resolution: %#v", result)
	}
	if len(result.Products) != 1 || len(result.Products[0].Prices) != 1 {
		t.Fatalf("unexpected products: %#v", result.Products)
	}
	if !result.Products[0].Prices[0].Price.Equal(dec("1.29")) {
		t.Fatalf("unexpected price: %v", result.Products[0].Prices[0].Price)
	}
}

func TestSearchFallsBackToLatestIngestedDate(t *testing.T) {
	store := catalog.NewInMemoryStore()
	store.ReplaceDate(context.Background(), "2025-05-30", catalog.ReplaceDateInput{
		Stores:   []catalog.StoreRow{{StoreID: "1", Chain: "spar", Date: "2025-05-30", City: "Split"}},
		Products: []catalog.ProductRow{{ProductID: "J1", Chain: "spar", Date: "2025-05-30", Name: "Jaja"}},
		Prices:   []catalog.PriceRow{{Chain: "spar", StoreID: "1", ProductID: "J1", Date: "2025-05-30", Price: dec("2.10")}},
	})

	s := &Service{Catalog: store, Archive: &fakeArchive{}}
	result, err := s.Search(context.Background(), "2025-06-02", "jaja", "Split")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.ActualDate != "2025-05-30" || result.Source != "db" {
		t.Fatalf("expected fallback to latest ingested date, got %#v", result)
	}
	if len(result.Products) != 1 {
		t.Fatalf("expected one product, got %#v", result.Products)
	}
}

func TestSearchBlankQueryShortCircuits(t *testing.T) {
	s := &Service{Catalog: catalog.NewInMemoryStore(), Archive: &fakeArchive{}}
	result, err := s.Search(context.Background(), "2025-06-01", "   ", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Products) != 0 {
		t.Fatalf("expected no products for a blank query, got %#v", result.Products)
	}
}

func TestSearchRemoteTwoPhase(t *testing.T) {
	archive := &fakeArchive{
		archives: []archiveclient.ArchiveDescriptor{{Date: "2025-06-10", Size: 83_000_000}},
		chains:   []string{"lidl", "spar"},
		csv: map[string]string{
			"2025-06-10/lidl/products.csv": "product_id,name\nB1,Mlijeko\n",
			"2025-06-10/spar/products.csv": "product_id,name\nC1,Kruh Integralni\n",
			"2025-06-10/spar/stores.csv":   "store_id,city\n9,Rijeka\n",
			"2025-06-10/spar/prices.csv":   "store_id,product_id,price\n9,C1,5.49\n",
		},
	}

	s := &Service{Catalog: catalog.NewInMemoryStore(), Archive: archive, Metrics: NewMetrics(observability.NewRegistry())}
	result, err := s.Search(context.Background(), "2025-06-10", "kruh", "Rijeka")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Source != "zip" || result.ActualDate != "2025-06-10" {
		t.Fatalf("unexpected resolution: %#v", result)
	}
	if len(result.Products) != 1 || result.Products[0].ProductID != "C1" {
		t.Fatalf("expected only spar's matching product, got %#v", result.Products)
	}
}

func TestHistoryRequiresBarcodeOrName(t *testing.T) {
	s := &Service{Catalog: catalog.NewInMemoryStore(), Archive: &fakeArchive{}}
	_, err := s.History(context.Background(), catalog.HistoryParams{Days: 7})
	if err != ErrBadRequest {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestHistoryCatalogAggregation(t *testing.T) {
	store := catalog.NewInMemoryStore()
	ctx := context.Background()
	days := []struct {
		date   string
		prices []string
	}{
		{"2025-06-01", []string{"1.19", "1.29"}},
		{"2025-06-02", []string{"1.25"}},
		{"2025-06-03", []string{"1.29", "1.29"}},
	}
	for _, d := range days {
		var prices []catalog.PriceRow
		var stores []catalog.StoreRow
		for i, p := range d.prices {
			storeID := string(rune('1' + i))
			stores = append(stores, catalog.StoreRow{StoreID: storeID, Chain: "lidl", Date: d.date, City: "Zagreb"})
			prices = append(prices, catalog.PriceRow{
				Chain: "lidl", StoreID: storeID, ProductID: "A1", Date: d.date, Price: dec(p),
			})
		}
		store.ReplaceDate(ctx, d.date, catalog.ReplaceDateInput{
			Stores:   stores,
			Products: []catalog.ProductRow{{ProductID: "A1", Chain: "lidl", Date: d.date, Barcode: "5901234123457"}},
			Prices:   prices,
		})
	}

	s := &Service{Catalog: store, Archive: &fakeArchive{}}
	entries, err := s.History(ctx, catalog.HistoryParams{Barcode: "5901234123457", Chain: "lidl", Days: 7})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %#v", len(entries), entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Date >= entries[i].Date {
			t.Fatalf("entries not ascending: %#v", entries)
		}
	}
	mid := entries[1].Prices[0]
	if !mid.MinPrice.Equal(dec("1.25")) || !mid.AvgPrice.Equal(dec("1.25")) {
		t.Fatalf("unexpected middle-day aggregate: %#v", mid)
	}
}

func TestCitiesFloorsWhenCatalogEmpty(t *testing.T) {
	s := &Service{Catalog: catalog.NewInMemoryStore(), Archive: &fakeArchive{}}
	cities, err := s.Cities(context.Background())
	if err != nil {
		t.Fatalf("Cities: %v", err)
	}
	found := false
	for _, c := range cities {
		if c == "Zagreb" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected floor list to include Zagreb, got %v", cities)
	}
}
