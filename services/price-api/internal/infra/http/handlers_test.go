package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
	"pricewatch/libs/observability"
	"pricewatch/services/price-api/internal/query"
)

type fakeArchive struct{}

func (fakeArchive) ListArchives(context.Context) ([]archiveclient.ArchiveDescriptor, error) {
	return nil, nil
}
func (fakeArchive) ResolveDate(context.Context, string) (string, error) {
	return "", archiveclient.ErrArchiveNotFound
}
func (fakeArchive) AvailableChains(context.Context, string) ([]string, error) { return nil, nil }
func (fakeArchive) ReadCsv(context.Context, string, string, string) (string, error) {
	return "", nil
}

func newTestServer(store catalog.Store) *Server {
	reg := observability.NewRegistry()
	svc := &query.Service{Catalog: store, Archive: fakeArchive{}, Metrics: query.NewMetrics(reg)}
	return NewServer(svc, reg)
}

func TestSearchHandlerHappyPath(t *testing.T) {
	store := catalog.NewInMemoryStore()
	store.ReplaceDate(context.Background(), "2025-06-01", catalog.ReplaceDateInput{
		Stores:   []catalog.StoreRow{{StoreID: "1", Chain: "lidl", Date: "2025-06-01", City: "Zagreb"}},
		Products: []catalog.ProductRow{{ProductID: "A1", Chain: "lidl", Date: "2025-06-01", Name: "Mlijeko 1L"}},
		Prices: []catalog.PriceRow{{
			Chain: "lidl", StoreID: "1", ProductID: "A1", Date: "2025-06-01",
			Price: decimal.RequireFromString("1.29"),
		}},
	})

	srv := newTestServer(store)
	req := httptest.NewRequest(http.MethodGet, "/v1/search?date=2025-06-01&q=mlij&city=Zagreb", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result query.SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Source != "db" || len(result.Products) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestSearchHandlerRejectsMissingQuery(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/v1/search?date=2025-06-01", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchHandlerRejectsMalformedDate(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/v1/search?date=06-01-2025&q=bread", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryHandlerRequiresBarcodeOrName(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/v1/history?days=7", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCitiesHandlerFloorsWhenCatalogEmpty(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/v1/cities", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cities []string
	if err := json.Unmarshal(rec.Body.Bytes(), &cities); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, c := range cities {
		if c == "Zagreb" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Zagreb in floor list, got %v", cities)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesPrometheusText(t *testing.T) {
	srv := newTestServer(catalog.NewInMemoryStore())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty body once at least one metric is registered")
	}
}
