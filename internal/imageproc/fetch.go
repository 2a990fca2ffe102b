package imageproc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPFetcher downloads remote images with a timeout and bounded retries on
// transport errors, 429 and 5xx responses.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher. retries is the number of extra attempts.
func NewHTTPFetcher(timeout time.Duration, retries int) *HTTPFetcher {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &HTTPFetcher{client: c}
}

// Fetch returns the body of rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode())
	}
	return resp.Body(), nil
}
