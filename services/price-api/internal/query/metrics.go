package query

import "pricewatch/libs/observability"

// Metrics is the query layer's pre-wired metric set: registered once into an
// observability.Registry, then passed around by pointer.
type Metrics struct {
	SearchTotal    *observability.Counter
	HistoryTotal   *observability.Counter
	CitiesTotal    *observability.Counter
	SourceTotal    *observability.Counter // labeled source="db"|"zip"
	RemoteFetches  *observability.Counter // range-like requests issued by the remote path
	QueryLatency   *observability.Histogram
}

// NewMetrics registers the query layer's metrics into reg.
func NewMetrics(reg *observability.Registry) *Metrics {
	return &Metrics{
		SearchTotal:   reg.NewCounter("priceapi_search_total", "Total search() calls."),
		HistoryTotal:  reg.NewCounter("priceapi_history_total", "Total history() calls."),
		CitiesTotal:   reg.NewCounter("priceapi_cities_total", "Total cities() calls."),
		SourceTotal:   reg.NewCounter("priceapi_query_source_total", "Query results served, by source (db/zip)."),
		RemoteFetches: reg.NewCounter("priceapi_remote_fetches_total", "Range-like requests issued by the remote fallback path."),
		QueryLatency: reg.NewHistogram("priceapi_query_latency_seconds",
			"End-to-end latency of a query-layer call.", nil),
	}
}
