// Package freshness suppresses commentary on events that are new to the
// ledger but stale on the wall clock, so a backlog after downtime does
// not flood a thread.
package freshness

import "time"

// Default windows. Plays older than PlayMaxAge are archived but never
// posted; inbox messages older than InboxMaxAge are marked read without
// a reply.
const (
	PlayMaxAge  = 300 * time.Second
	InboxMaxAge = 600 * time.Second
)

// IsFresh reports whether an event that occurred at eventTime is still
// worth announcing at now. Events from the future are fresh.
func IsFresh(eventTime, now time.Time, maxAge time.Duration) bool {
	return now.Sub(eventTime) <= maxAge
}
