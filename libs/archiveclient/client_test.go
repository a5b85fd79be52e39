package archiveclient_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"pricewatch/libs/archiveclient"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("CreateHeader: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

// parseRangeHeader parses "bytes=<a>-<b>" as sent by libs/archiveclient's
// httpFetcher.
func parseRangeHeader(s string) (start, end int64, ok bool) {
	s, found := strings.CutPrefix(s, "bytes=")
	if !found {
		return 0, 0, false
	}
	a, b, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	startVal, err1 := strconv.ParseInt(a, 10, 64)
	endVal, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return startVal, endVal, true
}

// newUpstream serves a list response plus one archive, honoring HEAD and
// Range GET the way the real upstream does.
func newUpstream(t *testing.T, date string, archive []byte) *httptest.Server {
	t.Helper()
	var archiveURL string
	mux := http.NewServeMux()

	mux.HandleFunc("/v0/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"archives": []map[string]any{
				{"date": date, "url": archiveURL, "size": len(archive), "updated": "2025-06-10T00:00:00Z"},
			},
		})
	})

	path := "/v0/archive/" + date + ".zip"
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
			w.WriteHeader(http.StatusOK)
			return
		}
		start, end, ok := parseRangeHeader(r.Header.Get("Range"))
		if !ok {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(archive[start : end+1])
	})

	srv := httptest.NewServer(mux)
	archiveURL = srv.URL + path
	return srv
}

func TestAvailableChainsAndReadCsv(t *testing.T) {
	date := "2025-06-10"
	archive := buildZip(t, map[string]string{
		"lidl/stores.csv":   "store_id,city\n1,Zagreb\n",
		"lidl/products.csv": "product_id,name\nA1,Kruh\n",
		"spar/products.csv": "product_id,name\nB1,Mlijeko\n",
	})
	srv := newUpstream(t, date, archive)
	defer srv.Close()

	client := archiveclient.New(srv.URL, nil)
	ctx := context.Background()

	chains, err := client.AvailableChains(ctx, date)
	if err != nil {
		t.Fatalf("AvailableChains: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains, got %#v", chains)
	}

	text, err := client.ReadCsv(ctx, date, "lidl", "products.csv")
	if err != nil {
		t.Fatalf("ReadCsv: %v", err)
	}
	if text != "product_id,name\nA1,Kruh\n" {
		t.Fatalf("got %q", text)
	}

	missing, err := client.ReadCsv(ctx, date, "lidl", "prices.csv")
	if err != nil {
		t.Fatalf("ReadCsv missing: %v", err)
	}
	if missing != "" {
		t.Fatalf("expected empty text for an absent member, got %q", missing)
	}
}

func TestResolveDateFallsBackToLatestListed(t *testing.T) {
	date := "2025-06-10"
	archive := buildZip(t, map[string]string{"lidl/stores.csv": "a\n1\n"})
	srv := newUpstream(t, date, archive)
	defer srv.Close()

	client := archiveclient.New(srv.URL, nil)
	resolved, err := client.ResolveDate(context.Background(), "2025-06-12")
	if err != nil {
		t.Fatalf("ResolveDate: %v", err)
	}
	if resolved != date {
		t.Fatalf("expected fallback to %s, got %s", date, resolved)
	}
}
