// Package dedup decides whether an observed event still needs posting
// and commits that decision durably. Presence of a key in the posted
// table is the sole source of truth for "already handled".
package dedup

import (
	"context"

	"go.uber.org/zap"

	"github.com/troxellophilus/baseball-clerk/internal/datastore"
)

// Status is the terminal classification of one PostIfNew call.
type Status int

const (
	// StatusSkipped means the key was already in the posted ledger.
	StatusSkipped Status = iota
	// StatusPosted means the side effect fired and the record committed.
	StatusPosted
	// StatusFailed means posting failed; the key stays eligible for the
	// next cycle.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusPosted:
		return "posted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports what happened for one key.
type Outcome struct {
	Status Status
	Record any // the posting record, set on StatusPosted
	Err    error
}

// PostFunc performs the external side effect and returns the record to
// persist in the posted ledger.
type PostFunc func(ctx context.Context) (any, error)

// Gate runs the check-then-act discipline over the two ledger tables.
// It assumes a single writer per key per cycle; overlapping invocations
// must be serialized by the deployer.
type Gate struct {
	Events   *datastore.Table
	Comments *datastore.Table
	Log      *zap.Logger
}

// New builds a Gate over the archive and posted tables.
func New(events, comments *datastore.Table, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{Events: events, Comments: comments, Log: log}
}

// PostIfNew archives event under key, then posts via post unless the key
// is already in the posted ledger. The posted record is committed only
// after post returns successfully, so a failure leaves the key
// retryable without ever allowing a second visible post for a key that
// succeeded.
func (g *Gate) PostIfNew(ctx context.Context, key string, event any, post PostFunc) Outcome {
	// Archive regardless of outcome so the archive always holds the
	// latest observed state.
	if err := g.Events.PutJSON(ctx, key, event); err != nil {
		g.Log.Error("archive write failed", zap.String("key", key), zap.Error(err))
	}

	_, posted, err := g.Comments.Get(ctx, key)
	if err != nil {
		// A read failure is treated as absent; the posted-table write
		// below will surface a real storage outage.
		g.Log.Error("posted-ledger read failed", zap.String("key", key), zap.Error(err))
	}
	if posted {
		return Outcome{Status: StatusSkipped}
	}

	record, err := post(ctx)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	if err := g.Comments.PutJSON(ctx, key, record); err != nil {
		// The side effect already happened; losing the record risks a
		// duplicate next cycle, so this is the one write worth shouting
		// about.
		g.Log.Error("posted-ledger write failed", zap.String("key", key), zap.Error(err))
		return Outcome{Status: StatusPosted, Record: record, Err: err}
	}
	return Outcome{Status: StatusPosted, Record: record}
}
