package freshness

import (
	"testing"
	"time"
)

func TestFreshnessBoundary(t *testing.T) {
	now := time.Date(2021, 6, 8, 19, 30, 0, 0, time.UTC)
	maxAge := 300 * time.Second

	if !IsFresh(now.Add(-299*time.Second), now, maxAge) {
		t.Fatal("event 299s old should be fresh")
	}
	if IsFresh(now.Add(-301*time.Second), now, maxAge) {
		t.Fatal("event 301s old should be stale")
	}
}

func TestFutureEventIsFresh(t *testing.T) {
	now := time.Now()
	if !IsFresh(now.Add(30*time.Second), now, PlayMaxAge) {
		t.Fatal("clock skew into the future should not mark an event stale")
	}
}
