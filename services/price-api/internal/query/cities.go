package query

import (
	"context"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"pricewatch/libs/catalog"
)

// floorCities is the fixed list of major cities that serves as a floor when
// the catalog is empty and the upstream has nothing listed either, per
// spec.md §4.6.3.
var floorCities = []string{
	"Zagreb", "Split", "Rijeka", "Osijek", "Zadar",
	"Pula", "Varaždin", "Slavonski Brod", "Karlovac", "Sisak",
}

var cityCollator = collate.New(language.Croatian)

// Cities implements cities(): the union of store cities across every
// ingested date, falling back to the latest archive's stores when the
// catalog has nothing, floored by floorCities when both come back empty.
func (s *Service) Cities(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			s.Metrics.CitiesTotal.Inc()
			s.Metrics.QueryLatency.ObserveDuration(time.Since(start))
		}
	}()

	cities, err := s.Catalog.Cities(ctx)
	if err != nil {
		return nil, err
	}
	if len(cities) > 0 {
		s.recordSource(sourceCatalog)
		return mergeWithFloor(cities), nil
	}

	remote, err := s.remoteCities(ctx)
	if err != nil {
		return nil, err
	}
	if len(remote) > 0 {
		s.recordSource(sourceRemote)
	}
	return mergeWithFloor(remote), nil
}

func (s *Service) remoteCities(ctx context.Context) ([]string, error) {
	archives, err := s.Archive.ListArchives(ctx)
	if err != nil || len(archives) == 0 {
		return nil, nil
	}
	latest := archives[0].Date

	chains, err := s.Archive.AvailableChains(ctx, latest)
	if err != nil {
		return nil, nil
	}

	set := map[string]bool{}
	for _, chain := range chains {
		recs, ok := s.fetchAndDecode(ctx, latest, chain, "stores.csv")
		if !ok {
			continue
		}
		for _, st := range catalog.MapStores(chain, latest, recs) {
			if st.City != "" {
				set[st.City] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for city := range set {
		out = append(out, city)
	}
	return out, nil
}

// mergeWithFloor dedupes cities and sorts for the Croatian locale the
// upstream publishes in. When cities is empty it falls back to floorCities
// so callers always get a usable list even with nothing ingested or
// upstream.
func mergeWithFloor(cities []string) []string {
	set := make(map[string]bool, len(cities)+len(floorCities))
	for _, c := range cities {
		set[c] = true
	}
	if len(cities) == 0 {
		for _, c := range floorCities {
			set[c] = true
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	cityCollator.SortStrings(out)
	return out
}
