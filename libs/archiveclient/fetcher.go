package archiveclient

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"pricewatch/libs/resilience"
)

// httpFetcher implements zipaccess.RangeFetcher over a single archive URL
// of known size, issuing Range requests through resty and a circuit
// breaker so a flaky upstream trips open instead of cascading into ingest
// or query timeouts.
type httpFetcher struct {
	http    *resty.Client
	breaker *resilience.HTTPClientWrapper
	url     string
	size    int64
}

func newHTTPFetcher(http *resty.Client, breaker *resilience.HTTPClientWrapper, url string, size int64) *httpFetcher {
	return &httpFetcher{http: http, breaker: breaker, url: url, size: size}
}

func (f *httpFetcher) Size() int64 { return f.size }

func (f *httpFetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	want := end - start + 1

	result, err := f.breaker.Execute(ctx, func() (any, error) {
		resp, err := f.http.R().
			SetContext(ctx).
			SetHeader("Range", fmt.Sprintf("bytes=%d-%d", start, end)).
			Get(f.url)
		if err != nil {
			return nil, fmt.Errorf("%w: range fetch %s: %v", ErrUpstreamUnavailable, f.url, err)
		}
		switch resp.StatusCode() {
		case 206:
			return resp.Body(), nil
		case 200:
			// Server ignored the Range header; per the reader's HTTP
			// contract, treat the first want bytes of the full body as
			// the requested range.
			body := resp.Body()
			if int64(len(body)) > want {
				body = body[:want]
			}
			return body, nil
		default:
			return nil, fmt.Errorf("%w: range fetch %s: status %d", ErrUpstreamUnavailable, f.url, resp.StatusCode())
		}
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
