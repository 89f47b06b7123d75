// Package mlb reads the statsapi gumbo live feed for a game. Payloads
// stay as nested maps; consumers pull the fields they need and fail
// explicitly when one is missing.
package mlb

import (
	"context"
	"fmt"
	"strings"

	"github.com/troxellophilus/baseball-clerk/internal/fetch"
)

const defaultBaseURL = "https://statsapi.mlb.com"

// Client fetches gumbo documents through a per-cycle cache.
type Client struct {
	cache   *fetch.Cache
	baseURL string
}

// NewClient builds a statsapi client over the given fetch cache.
func NewClient(cache *fetch.Cache) *Client {
	return &Client{cache: cache, baseURL: defaultBaseURL}
}

// NewClientURL is NewClient with a base URL override, for tests.
func NewClientURL(cache *fetch.Cache, baseURL string) *Client {
	return &Client{cache: cache, baseURL: baseURL}
}

func (c *Client) getPath(ctx context.Context, path string) (map[string]any, error) {
	var doc map[string]any
	if err := c.cache.GetJSON(ctx, c.baseURL+path, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) gumbo(ctx context.Context, gamePk string) (map[string]any, error) {
	return c.getPath(ctx, fmt.Sprintf("/api/v1.1/game/%s/feed/live", gamePk))
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// CompletedPlays lists the gumbo plays marked complete, in feed order.
func (c *Client) CompletedPlays(ctx context.Context, gamePk string) ([]map[string]any, error) {
	gumbo, err := c.gumbo(ctx, gamePk)
	if err != nil {
		return nil, err
	}

	all := asSlice(asMap(asMap(asMap(gumbo["liveData"])["plays"]))["allPlays"])
	plays := make([]map[string]any, 0, len(all))
	for _, p := range all {
		play := asMap(p)
		if play == nil {
			continue
		}
		if complete, _ := asMap(play["about"])["isComplete"].(bool); complete {
			plays = append(plays, play)
		}
	}
	return plays, nil
}

// AtBatIndex returns the play's stable at-bat index, or fallback when the
// feed omits it. The at-bat index survives provider reordering; list
// position does not.
func AtBatIndex(play map[string]any, fallback int) int {
	if idx, ok := asMap(play["about"])["atBatIndex"].(float64); ok && idx >= 0 {
		return int(idx)
	}
	return fallback
}

// Final-ish status codes for which there is no due-up to announce.
var inactiveStatusCodes = map[string]bool{"f": true, "s": true, "di": true, "d": true}

// DueUp derives the upcoming half inning and its first three batters
// from the linescore. Returns (nil, nil) when the game is not in a
// state with a due-up.
func (c *Client) DueUp(ctx context.Context, gamePk string) (map[string]any, error) {
	gumbo, err := c.gumbo(ctx, gamePk)
	if err != nil {
		return nil, err
	}

	status, _ := asMap(asMap(gumbo["gameData"])["status"])["statusCode"].(string)
	if inactiveStatusCodes[strings.ToLower(status)] {
		return nil, nil
	}

	linescore := asMap(asMap(gumbo["liveData"])["linescore"])
	if linescore == nil {
		return nil, fmt.Errorf("mlb: game %s: gumbo missing linescore", gamePk)
	}
	inningF, ok := linescore["currentInning"].(float64)
	if !ok {
		return nil, fmt.Errorf("mlb: game %s: linescore missing currentInning", gamePk)
	}
	inning := int(inningF)
	half, _ := linescore["inningHalf"].(string)

	// Between innings the linescore still points at the finished half;
	// announce the one about to start.
	state, _ := linescore["inningState"].(string)
	switch strings.ToLower(state) {
	case "end":
		inning++
		half = "Top"
	case "middle":
		half = "Bottom"
	}

	offense := asMap(linescore["offense"])
	batters := make([]any, 0, 3)
	for _, slot := range []string{"batter", "onDeck", "inHole"} {
		link, _ := asMap(offense[slot])["link"].(string)
		if link == "" {
			return nil, fmt.Errorf("mlb: game %s: offense missing %s link", gamePk, slot)
		}
		profile, err := c.getPath(ctx, link)
		if err != nil {
			return nil, err
		}
		people := asSlice(profile["people"])
		if len(people) == 0 {
			return nil, fmt.Errorf("mlb: game %s: empty people for %s", gamePk, slot)
		}
		person := asMap(people[0])
		batters = append(batters, map[string]any{
			"fullName":      person["fullName"],
			"primaryNumber": person["primaryNumber"],
			"batSide":       asMap(person["batSide"])["code"],
		})
	}

	return map[string]any{
		"inning":     inning,
		"inningHalf": half,
		"batters":    batters,
	}, nil
}
