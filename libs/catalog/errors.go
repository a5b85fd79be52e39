package catalog

import "errors"

var (
	// ErrCatalogUnavailable wraps a database I/O failure or constraint
	// violation encountered while reading or writing the catalog.
	ErrCatalogUnavailable = errors.New("catalog: store unavailable")

	// ErrNoSuccessfulIngest names the state in which no date has ever
	// completed with status=success. LatestIngestedDate reports that state
	// by returning false with a nil error, not with this error.
	ErrNoSuccessfulIngest = errors.New("catalog: no successful ingest on record")
)
