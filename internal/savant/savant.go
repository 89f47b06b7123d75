// Package savant reads exit-velocity readings from the baseballsavant
// game feed.
package savant

import (
	"context"
	"fmt"

	"github.com/troxellophilus/baseball-clerk/internal/fetch"
)

const defaultBaseURL = "https://baseballsavant.mlb.com"

// Client fetches savant game feeds through a per-cycle cache.
type Client struct {
	cache   *fetch.Cache
	baseURL string
}

// NewClient builds a savant client over the given fetch cache.
func NewClient(cache *fetch.Cache) *Client {
	return &Client{cache: cache, baseURL: defaultBaseURL}
}

// NewClientURL is NewClient with a base URL override, for tests.
func NewClientURL(cache *fetch.Cache, baseURL string) *Client {
	return &Client{cache: cache, baseURL: baseURL}
}

// ExitVelocities lists the game feed exit-velocity readings, in feed
// order. A feed without the section yields an empty list.
func (c *Client) ExitVelocities(ctx context.Context, gamePk string) ([]map[string]any, error) {
	var feed map[string]any
	url := fmt.Sprintf("%s/gf?game_pk=%s", c.baseURL, gamePk)
	if err := c.cache.GetJSON(ctx, url, &feed); err != nil {
		return nil, err
	}

	raw, _ := feed["exit_velocity"].([]any)
	evos := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if evo, ok := e.(map[string]any); ok {
			evos = append(evos, evo)
		}
	}
	return evos, nil
}
