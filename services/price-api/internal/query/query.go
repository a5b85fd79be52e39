// Package query implements the query layer (C6): search, history, and
// cities, each resolving against the catalog first and falling back to a
// direct remote range-fetch only when the catalog has no successfully
// ingested date to answer from (search first tries the latest ingested
// date when the requested one is missing).
package query

import (
	"context"

	"pricewatch/libs/archiveclient"
	"pricewatch/libs/catalog"
)

// ArchiveSource is the subset of archiveclient.Client the remote fallback
// path needs, narrowed to an interface so the query layer is unit-testable
// with a fake rather than a live HTTP archive.
type ArchiveSource interface {
	ListArchives(ctx context.Context) ([]archiveclient.ArchiveDescriptor, error)
	ResolveDate(ctx context.Context, date string) (string, error)
	AvailableChains(ctx context.Context, date string) ([]string, error)
	ReadCsv(ctx context.Context, date, chain, file string) (string, error)
}

// Service wires the catalog and archive client together under the
// catalog-first, remote-fallback resolution order spec.md §4.6 describes.
type Service struct {
	Catalog catalog.Store
	Archive ArchiveSource
	Metrics *Metrics
}

const (
	sourceCatalog = "db"
	sourceRemote  = "zip"
)

// phaseAConcurrency and phaseBConcurrency bound the remote search fan-out;
// historyBatchSize bounds the remote history fan-out. Per spec.md §5 these
// are a property of the core, not a tuning knob.
const (
	phaseAConcurrency = 8
	phaseBConcurrency = 8
	historyBatchSize  = 5
)
