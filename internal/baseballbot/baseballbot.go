// Package baseballbot lists game discussion threads from baseballbot.io
// and applies the active-window policy.
package baseballbot

import (
	"context"
	"strconv"
	"time"

	"github.com/troxellophilus/baseball-clerk/internal/fetch"
)

const defaultURL = "https://baseballbot.io/game_threads.json"

// Window around the scheduled start during which a Posted thread is
// eligible for commentary.
const (
	leadTime = 600 * time.Second
	maxAfter = 12 * time.Hour
)

// GameThread is one discussion-thread descriptor.
type GameThread struct {
	GamePk    int64     `json:"gamePk"`
	PostID    string    `json:"postId"`
	Status    string    `json:"status"`
	StartsAt  time.Time `json:"starts_at"`
	Subreddit struct {
		Name string `json:"name"`
	} `json:"subreddit"`
}

// GamePkString renders the game identifier the way dedup keys expect it.
func (g GameThread) GamePkString() string {
	return strconv.FormatInt(g.GamePk, 10)
}

// Client fetches the thread listing through a per-cycle cache.
type Client struct {
	cache *fetch.Cache
	url   string
}

// NewClient builds a baseballbot client over the given fetch cache.
func NewClient(cache *fetch.Cache) *Client {
	return &Client{cache: cache, url: defaultURL}
}

// NewClientURL is NewClient with a URL override, for tests.
func NewClientURL(cache *fetch.Cache, url string) *Client {
	return &Client{cache: cache, url: url}
}

func (c *Client) gameThreads(ctx context.Context) ([]GameThread, error) {
	var doc struct {
		Data []GameThread `json:"data"`
	}
	if err := c.cache.GetJSON(ctx, c.url, &doc); err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// ActiveGameThreads lists threads eligible for commentary at now: status
// Posted and now within [start - 10m, start + 12h].
func (c *Client) ActiveGameThreads(ctx context.Context, now time.Time) ([]GameThread, error) {
	threads, err := c.gameThreads(ctx)
	if err != nil {
		return nil, err
	}

	var active []GameThread
	for _, gt := range threads {
		if gt.Status != "Posted" {
			continue
		}
		if now.Before(gt.StartsAt.Add(-leadTime)) {
			continue
		}
		if now.After(gt.StartsAt.Add(maxAfter)) {
			continue
		}
		active = append(active, gt)
	}
	return active, nil
}
