package archiveclient

import (
	"sync"

	"pricewatch/libs/zipaccess"
)

// directoryCache is the process-lifetime, append-only cache of parsed
// central directories keyed by archive URL, the one piece of shared
// mutable state in the core (spec.md §5). A cache hit requires the size to
// still match; a size change (the upstream republishing a date) evicts and
// refetches rather than serving a stale directory.
type directoryCache struct {
	mu      sync.Mutex
	entries map[string]cachedDirectory
}

type cachedDirectory struct {
	size int64
	dir  *zipaccess.Directory
}

func newDirectoryCache() *directoryCache {
	return &directoryCache{entries: map[string]cachedDirectory{}}
}

func (c *directoryCache) get(url string, size int64) (*zipaccess.Directory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok || entry.size != size {
		return nil, false
	}
	return entry.dir, true
}

func (c *directoryCache) put(url string, size int64, dir *zipaccess.Directory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = cachedDirectory{size: size, dir: dir}
}
