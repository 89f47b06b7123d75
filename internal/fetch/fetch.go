// Package fetch provides the memoized JSON GET used by the data-source
// clients. Each URL is fetched at most once per Cache lifetime, which
// in this program is one poll cycle.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Cache memoizes successful GET responses by URL. Failures are not
// memoized so a transient error does not poison the rest of the cycle.
// Not safe for concurrent use; the poll cycle is sequential.
type Cache struct {
	client    *http.Client
	userAgent string
	entries   map[string][]byte
}

// NewCache builds a cache with the given request timeout and User-Agent.
func NewCache(timeout time.Duration, userAgent string) *Cache {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Cache{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		entries:   map[string][]byte{},
	}
}

// GetJSON fetches url (memoized) and unmarshals the body into v.
func (c *Cache) GetJSON(ctx context.Context, url string, v any) error {
	body, ok := c.entries[url]
	if !ok {
		var err error
		body, err = c.get(ctx, url)
		if err != nil {
			return err
		}
		c.entries[url] = body
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("fetch: decode %s: %w", url, err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch: get %s: status %d", url, res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
