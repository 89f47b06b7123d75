package mlb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/troxellophilus/baseball-clerk/internal/fetch"
)

func gumboHandler(statusCode, inningState string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1.1/game/G1/feed/live", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"gameData": {"status": {"statusCode": %q}},
			"liveData": {
				"plays": {"allPlays": [
					{"about": {"isComplete": true, "atBatIndex": 0}},
					{"about": {"isComplete": false, "atBatIndex": 1}},
					{"about": {"isComplete": true, "atBatIndex": 2}}
				]},
				"linescore": {
					"currentInning": 6,
					"inningHalf": "Bottom",
					"inningState": %q,
					"offense": {
						"batter": {"link": "/api/v1/people/1"},
						"onDeck": {"link": "/api/v1/people/2"},
						"inHole": {"link": "/api/v1/people/3"}
					}
				}
			}
		}`, statusCode, inningState)
	})
	for i := 1; i <= 3; i++ {
		n := i
		mux.HandleFunc(fmt.Sprintf("/api/v1/people/%d", n), func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"people": [{"fullName": "Batter %d", "primaryNumber": "%d", "batSide": {"code": "R"}}]}`, n, n)
		})
	}
	return mux
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientURL(fetch.NewCache(time.Second, ""), srv.URL)
}

func TestCompletedPlaysFiltersIncomplete(t *testing.T) {
	c := newTestClient(t, gumboHandler("I", "Top"))
	plays, err := c.CompletedPlays(context.Background(), "G1")
	if err != nil {
		t.Fatal(err)
	}
	if len(plays) != 2 {
		t.Fatalf("plays=%d want 2", len(plays))
	}
	if AtBatIndex(plays[1], 99) != 2 {
		t.Fatalf("atBatIndex=%d want 2", AtBatIndex(plays[1], 99))
	}
}

func TestAtBatIndexFallsBackToPosition(t *testing.T) {
	if got := AtBatIndex(map[string]any{}, 7); got != 7 {
		t.Fatalf("fallback=%d want 7", got)
	}
}

func TestDueUpAdvancesBetweenInnings(t *testing.T) {
	c := newTestClient(t, gumboHandler("I", "End"))
	d, err := c.DueUp(context.Background(), "G1")
	if err != nil {
		t.Fatal(err)
	}
	if d["inning"] != 7 || d["inningHalf"] != "Top" {
		t.Fatalf("due up = %v/%v want 7/Top", d["inning"], d["inningHalf"])
	}
	batters, _ := d["batters"].([]any)
	if len(batters) != 3 {
		t.Fatalf("batters=%d want 3", len(batters))
	}
}

func TestDueUpMiddleFlipsHalf(t *testing.T) {
	c := newTestClient(t, gumboHandler("I", "Middle"))
	d, err := c.DueUp(context.Background(), "G1")
	if err != nil {
		t.Fatal(err)
	}
	if d["inning"] != 6 || d["inningHalf"] != "Bottom" {
		t.Fatalf("due up = %v/%v want 6/Bottom", d["inning"], d["inningHalf"])
	}
}

func TestDueUpNilWhenGameOver(t *testing.T) {
	c := newTestClient(t, gumboHandler("F", "Top"))
	d, err := c.DueUp(context.Background(), "G1")
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Fatalf("due up = %v want nil for final game", d)
	}
}
