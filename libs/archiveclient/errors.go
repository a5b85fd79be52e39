package archiveclient

import "errors"

var (
	// ErrUpstreamUnavailable covers a list/HEAD/range request that failed
	// at the network layer or returned a non-success status.
	ErrUpstreamUnavailable = errors.New("archiveclient: upstream unavailable")

	// ErrArchiveNotFound is returned by ResolveDate when the upstream's
	// archive list is empty. A date that is not listed is not an error: it
	// resolves to the most recent listed archive.
	ErrArchiveNotFound = errors.New("archiveclient: archive not found for date")
)
