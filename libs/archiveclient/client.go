// Package archiveclient is the thin facade atop libs/zipaccess that speaks
// the upstream's actual schema (C3): archive discovery via GET /v0/list,
// size probes via HEAD, and chain/member resolution via the random-access
// ZIP reader. It owns the process-lifetime central-directory cache and a
// one-hour Redis-backed cache of the archive list.
package archiveclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"

	"pricewatch/libs/observability"
	"pricewatch/libs/resilience"
	"pricewatch/libs/zipaccess"
)

const listCacheKey = "archiveclient:list"
const listCacheTTL = time.Hour

// Client is the archive client described in spec.md §4.3.
type Client struct {
	http    *resty.Client
	redis   *redis.Client
	baseURL string

	listBreaker  *resilience.HTTPClientWrapper
	headBreaker  *resilience.HTTPClientWrapper
	rangeBreaker *resilience.HTTPClientWrapper

	dirCache *directoryCache
}

// New builds a Client against baseURL. redisClient may be nil, in which
// case the archive-list cache is simply skipped (every call hits upstream).
func New(baseURL string, redisClient *redis.Client) *Client {
	return &Client{
		http:         resty.New().SetTimeout(30 * time.Second),
		redis:        redisClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		listBreaker:  resilience.NewHTTPClientWrapper("archiveclient.list"),
		headBreaker:  resilience.NewHTTPClientWrapper("archiveclient.head"),
		rangeBreaker: resilience.NewHTTPClientWrapper("archiveclient.range"),
		dirCache:     newDirectoryCache(),
	}
}

func (c *Client) archiveURL(date string) string {
	return fmt.Sprintf("%s/v0/archive/%s.zip", c.baseURL, date)
}

// ListArchives returns the upstream's archive index, sorted descending by
// date, serving from a one-hour Redis cache when available.
func (c *Client) ListArchives(ctx context.Context) ([]ArchiveDescriptor, error) {
	if c.redis != nil {
		if cached, ok := c.listFromCache(ctx); ok {
			return cached, nil
		}
	}

	result, err := c.listBreaker.Execute(ctx, func() (any, error) {
		resp, err := c.http.R().SetContext(ctx).Get(c.baseURL + "/v0/list")
		if err != nil {
			return nil, fmt.Errorf("%w: list archives: %v", ErrUpstreamUnavailable, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("%w: list archives: status %d", ErrUpstreamUnavailable, resp.StatusCode())
		}
		var parsed listResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return nil, fmt.Errorf("%w: decode archive list: %v", ErrUpstreamUnavailable, err)
		}
		return parsed.Archives, nil
	})
	if err != nil {
		return nil, err
	}

	archives := result.([]ArchiveDescriptor)
	sort.Slice(archives, func(i, j int) bool { return archives[i].Date > archives[j].Date })

	if c.redis != nil {
		c.storeInCache(ctx, archives)
	}
	return archives, nil
}

func (c *Client) listFromCache(ctx context.Context) ([]ArchiveDescriptor, bool) {
	raw, err := c.redis.Get(ctx, listCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var archives []ArchiveDescriptor
	if err := json.Unmarshal(raw, &archives); err != nil {
		return nil, false
	}
	return archives, true
}

func (c *Client) storeInCache(ctx context.Context, archives []ArchiveDescriptor) {
	raw, err := json.Marshal(archives)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, listCacheKey, raw, listCacheTTL).Err(); err != nil {
		observability.LogEvent(ctx, "warn", "archive_list_cache_write_failed", map[string]any{"error": err.Error()})
	}
}

// sizeProbe issues HEAD {base}/v0/archive/{date}.zip and returns
// Content-Length.
func (c *Client) sizeProbe(ctx context.Context, date string) (int64, error) {
	url := c.archiveURL(date)
	result, err := c.headBreaker.Execute(ctx, func() (any, error) {
		resp, err := c.http.R().SetContext(ctx).Head(url)
		if err != nil {
			return nil, fmt.Errorf("%w: HEAD %s: %v", ErrUpstreamUnavailable, url, err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("%w: HEAD %s: status %d", ErrUpstreamUnavailable, url, resp.StatusCode())
		}
		length, err := strconv.ParseInt(resp.Header().Get("Content-Length"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: HEAD %s: invalid Content-Length: %v", ErrUpstreamUnavailable, url, err)
		}
		return length, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// directoryFor returns the archive's parsed central directory and the
// fetcher that produced it, from cache when the size hasn't changed.
func (c *Client) directoryFor(ctx context.Context, date string) (*zipaccess.Directory, *httpFetcher, error) {
	url := c.archiveURL(date)

	size, err := c.sizeProbe(ctx, date)
	if err != nil {
		return nil, nil, err
	}

	fetcher := newHTTPFetcher(c.http, c.rangeBreaker, url, size)
	if dir, ok := c.dirCache.get(url, size); ok {
		return dir, fetcher, nil
	}

	dir, err := zipaccess.OpenDirectory(ctx, fetcher)
	if err != nil {
		return nil, nil, err
	}
	c.dirCache.put(url, size, dir)
	return dir, fetcher, nil
}

// AvailableChains returns the set of top-level directory names in the
// archive that contain at least one member.
func (c *Client) AvailableChains(ctx context.Context, date string) ([]string, error) {
	dir, _, err := c.directoryFor(ctx, date)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	for _, e := range dir.Entries {
		if idx := strings.Index(e.Name, "/"); idx > 0 {
			set[e.Name[:idx]] = true
		}
	}
	chains := make([]string, 0, len(set))
	for chain := range set {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains, nil
}

// ReadCsv returns the decoded text of {chain}/{file} within date's
// archive, or "" if the member is absent (a missing triple is common for
// some chains on some days, per spec.md §4.3).
func (c *Client) ReadCsv(ctx context.Context, date, chain, file string) (string, error) {
	dir, fetcher, err := c.directoryFor(ctx, date)
	if err != nil {
		return "", err
	}

	entry, ok := dir.Find(chain + "/" + file)
	if !ok {
		return "", nil
	}
	return zipaccess.ReadMemberText(ctx, fetcher, entry)
}

// ResolveDate returns the most recent date the upstream actually has, used
// when a requested date is not listed (spec.md §4.6.1 remote path).
func (c *Client) ResolveDate(ctx context.Context, date string) (string, error) {
	archives, err := c.ListArchives(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range archives {
		if a.Date == date {
			return date, nil
		}
	}
	if len(archives) == 0 {
		return "", ErrArchiveNotFound
	}
	return archives[0].Date, nil // archives is sorted descending by date
}
