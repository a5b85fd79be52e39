package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
)

// SearchResult is the shape spec.md §4.6.1 defines: the merged products, the
// date the result actually came from (which may differ from the requested
// date under fallback), and which path answered it.
type SearchResult struct {
	Products   []catalog.ProductGroup
	ActualDate string
	Source     string
}

// Search implements search(date, q, city): catalog-first against date, then
// the latest ingested date, then a remote two-phase range-fetch. A blank or
// whitespace-only q returns an empty result without touching the catalog or
// the upstream, per spec.md §8.
func (s *Service) Search(ctx context.Context, date, q, city string) (SearchResult, error) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			s.Metrics.SearchTotal.Inc()
			s.Metrics.QueryLatency.ObserveDuration(time.Since(start))
		}
	}()

	if strings.TrimSpace(q) == "" {
		return SearchResult{ActualDate: date, Source: sourceCatalog}, nil
	}

	ingested, err := s.Catalog.IsDateIngested(ctx, date)
	if err != nil {
		return SearchResult{}, err
	}
	if ingested {
		return s.searchCatalog(ctx, date, date, q, city)
	}

	latest, ok, err := s.Catalog.LatestIngestedDate(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	if ok {
		return s.searchCatalog(ctx, date, latest, q, city)
	}

	return s.searchRemote(ctx, date, q, city)
}

func (s *Service) searchCatalog(ctx context.Context, requested, actual, q, city string) (SearchResult, error) {
	groups, err := s.Catalog.SearchProducts(ctx, actual, q, city)
	if err != nil {
		return SearchResult{}, err
	}
	s.recordSource(sourceCatalog)
	return SearchResult{Products: groups, ActualDate: actual, Source: sourceCatalog}, nil
}

// searchRemote resolves the requested date against the upstream's archive
// list and runs the two-phase fetch from spec.md §4.6.1. A date the
// upstream does not list resolves to its most recent archive; an empty
// archive list resolves to an empty result with the requested date as
// actualDate, per the NotFound policy in spec.md §7; any other upstream
// failure is propagated.
func (s *Service) searchRemote(ctx context.Context, date, q, city string) (SearchResult, error) {
	actualDate, err := s.Archive.ResolveDate(ctx, date)
	if err != nil {
		if errors.Is(err, archiveclient.ErrArchiveNotFound) {
			return SearchResult{ActualDate: date, Source: sourceRemote}, nil
		}
		return SearchResult{}, err
	}

	groups, err := s.remoteSearchProducts(ctx, actualDate, q, city)
	if err != nil {
		return SearchResult{}, err
	}
	s.recordSource(sourceRemote)
	return SearchResult{Products: groups, ActualDate: actualDate, Source: sourceRemote}, nil
}

func (s *Service) recordSource(source string) {
	if s.Metrics != nil {
		s.Metrics.SourceTotal.Inc("source", source)
	}
}

// matchesQuery is the substring/barcode predicate shared by the catalog and
// remote search paths: name or brand contains q (case-insensitive), or
// barcode equals q exactly. q is assumed already normalized.
func matchesQuery(name, brand, barcode, q string) bool {
	return strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(brand), q) || barcode == q
}
