// Package clerk drives one poll cycle: active game threads times
// configured subreddits, each event category dedup-gated, then a pass
// over the unread inbox. A failure in one event, category, or
// destination never aborts the rest of the sweep.
package clerk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troxellophilus/baseball-clerk/internal/baseballbot"
	"github.com/troxellophilus/baseball-clerk/internal/comment"
	"github.com/troxellophilus/baseball-clerk/internal/config"
	"github.com/troxellophilus/baseball-clerk/internal/datastore"
	"github.com/troxellophilus/baseball-clerk/internal/dedup"
	"github.com/troxellophilus/baseball-clerk/internal/eventkey"
	"github.com/troxellophilus/baseball-clerk/internal/freshness"
	"github.com/troxellophilus/baseball-clerk/internal/metrics"
	"github.com/troxellophilus/baseball-clerk/internal/mlb"
	"github.com/troxellophilus/baseball-clerk/internal/util"
)

// Exit-velocity trigger thresholds.
const (
	robbedXBA    = 0.90
	lineDriveXBA = 0.10
)

// PlaySource lists completed plays and the current due-up for a game.
type PlaySource interface {
	CompletedPlays(ctx context.Context, gamePk string) ([]map[string]any, error)
	DueUp(ctx context.Context, gamePk string) (map[string]any, error)
}

// EVOSource lists statcast exit-velocity readings for a game.
type EVOSource interface {
	ExitVelocities(ctx context.Context, gamePk string) ([]map[string]any, error)
}

// ThreadSource lists game threads eligible for commentary.
type ThreadSource interface {
	ActiveGameThreads(ctx context.Context, now time.Time) ([]baseballbot.GameThread, error)
}

// InboxItem is one unread message.
type InboxItem interface {
	comment.Replier
	ID() string
	Body() string
	IsComment() bool
	CreatedAt() time.Time
	MarkRead(ctx context.Context) error
}

// Session is an authenticated bot account for one credential.
type Session interface {
	Username() string
	Submission(postID string) comment.Replier
	Unread(ctx context.Context) ([]InboxItem, error)
}

// SessionFactory opens a session for a credential.
type SessionFactory func(ctx context.Context, cred config.RedditCredential) (Session, error)

// Clerk owns the dependencies of a poll cycle.
type Clerk struct {
	Config     config.Config
	Events     *datastore.Table
	Comments   *datastore.Table
	Gate       *dedup.Gate
	Threads    ThreadSource
	Plays      PlaySource
	EVOs       EVOSource
	NewSession SessionFactory
	Metrics    *metrics.Metrics
	Log        *zap.Logger
	Now        func() time.Time
}

// New wires a Clerk with defaults for clock, metrics, and logger.
func New(
	cfg config.Config,
	events, comments *datastore.Table,
	threads ThreadSource,
	plays PlaySource,
	evos EVOSource,
	sessions SessionFactory,
	log *zap.Logger,
) *Clerk {
	if log == nil {
		log = zap.NewNop()
	}
	return &Clerk{
		Config:     cfg,
		Events:     events,
		Comments:   comments,
		Gate:       dedup.New(events, comments, log),
		Threads:    threads,
		Plays:      plays,
		EVOs:       evos,
		NewSession: sessions,
		Metrics:    metrics.New(),
		Log:        log,
		Now:        time.Now,
	}
}

// Run executes one full sweep. Errors inside the sweep are logged, not
// returned; the scheduler retries naturally on the next invocation.
func (c *Clerk) Run(ctx context.Context) {
	runID := util.NewRunID()
	log := c.Log.With(zap.String("run_id", runID))
	start := time.Now()

	subs := make([]string, 0, len(c.Config.Subreddits))
	for name := range c.Config.Subreddits {
		subs = append(subs, name)
	}
	log.Info("starting run", zap.Strings("subreddits", subs))

	// Sessions are cached per credential for the run.
	sessions := map[string]Session{}
	getSession := func(credName string) (Session, error) {
		if s, ok := sessions[credName]; ok {
			return s, nil
		}
		cred, ok := c.Config.Credentials[credName]
		if !ok {
			return nil, fmt.Errorf("clerk: unknown credential %q", credName)
		}
		s, err := c.NewSession(ctx, cred)
		if err != nil {
			return nil, err
		}
		sessions[credName] = s
		return s, nil
	}

	threads, err := c.Threads.ActiveGameThreads(ctx, c.Now())
	if err != nil {
		log.Error("listing game threads failed", zap.Error(err))
	}
	for _, gt := range threads {
		sub := gt.Subreddit.Name
		subCfg, ok := c.Config.Subreddits[sub]
		if !ok {
			continue
		}

		log.Info("running game thread",
			zap.String("subreddit", sub),
			zap.Int64("game_pk", gt.GamePk),
		)

		sess, err := getSession(subCfg.CredentialName)
		if err != nil {
			log.Error("session failed", zap.String("subreddit", sub), zap.Error(err))
			continue
		}
		gamechat := sess.Submission(gt.PostID)
		gamePk := gt.GamePkString()

		c.playByPlay(ctx, log, gamePk, sub, gamechat)
		c.exitVelocities(ctx, log, gamePk, sub, gamechat)
		c.dueUp(ctx, log, gamePk, sub, gamechat)

		if c.Config.Poll.ThreadPause > 0 {
			time.Sleep(c.Config.Poll.ThreadPause)
		}
	}

	c.inbox(ctx, log, getSession)

	elapsed := time.Since(start)
	c.Metrics.RunDuration.Set(elapsed.Seconds())
	log.Info("finished run", zap.Duration("elapsed", elapsed))
}

func (c *Clerk) observe(log *zap.Logger, key, kind string, out dedup.Outcome) {
	switch out.Status {
	case dedup.StatusPosted:
		c.Metrics.CommentsTotal.WithLabelValues(kind).Inc()
		log.Info("posted comment", zap.String("key", key), zap.String("kind", kind))
	case dedup.StatusSkipped:
		c.Metrics.EventsSkippedTotal.WithLabelValues("already_posted").Inc()
	case dedup.StatusFailed:
		c.Metrics.PostFailuresTotal.WithLabelValues(kind).Inc()
		log.Error("posting failed", zap.String("key", key), zap.String("kind", kind), zap.Error(out.Err))
	}
}

func resultEvent(play map[string]any) string {
	result, _ := play["result"].(map[string]any)
	event, _ := result["event"].(string)
	return strings.ToLower(event)
}

func (c *Clerk) playByPlay(ctx context.Context, log *zap.Logger, gamePk, sub string, gamechat comment.Replier) {
	plays, err := c.Plays.CompletedPlays(ctx, gamePk)
	if err != nil {
		log.Error("fetching plays failed", zap.String("game_pk", gamePk), zap.Error(err))
		return
	}

	for idx, play := range plays {
		key, err := eventkey.Play(gamePk, sub, mlb.AtBatIndex(play, idx))
		if err != nil {
			log.Error("bad play key", zap.Error(err))
			continue
		}

		// Always refresh the stored play, posted or not.
		if err := c.Events.PutJSON(ctx, key, play); err != nil {
			log.Error("archiving play failed", zap.String("key", key), zap.Error(err))
		}

		endRaw, _ := play["playEndTime"].(string)
		end, perr := time.Parse(time.RFC3339, endRaw)
		if perr != nil {
			log.Error("bad playEndTime", zap.String("key", key), zap.String("value", endRaw))
			continue
		}
		if !freshness.IsFresh(end, c.Now(), c.Config.Freshness.PlayMaxAge) {
			c.Metrics.EventsSkippedTotal.WithLabelValues("stale").Inc()
			continue
		}

		var kind string
		var post dedup.PostFunc
		switch resultEvent(play) {
		case "strikeout":
			kind = "strikeout"
			post = func(ctx context.Context) (any, error) { return comment.Strikeout(ctx, gamechat, play) }
		case "home run":
			kind = "homerun"
			post = func(ctx context.Context) (any, error) { return comment.Homerun(ctx, gamechat, play) }
		default:
			c.Metrics.EventsSkippedTotal.WithLabelValues("no_trigger").Inc()
			continue
		}

		c.observe(log, key, kind, c.Gate.PostIfNew(ctx, key, play, post))
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var hitResults = map[string]bool{"single": true, "double": true, "triple": true, "home run": true}

func (c *Clerk) exitVelocities(ctx context.Context, log *zap.Logger, gamePk, sub string, gamechat comment.Replier) {
	evos, err := c.EVOs.ExitVelocities(ctx, gamePk)
	if err != nil {
		log.Error("fetching exit velocities failed", zap.String("game_pk", gamePk), zap.Error(err))
		return
	}

	for idx, evo := range evos {
		key, err := eventkey.ExitVelocity(gamePk, sub, idx)
		if err != nil {
			log.Error("bad evo key", zap.Error(err))
			continue
		}

		if err := c.Events.PutJSON(ctx, key, evo); err != nil {
			log.Error("archiving evo failed", zap.String("key", key), zap.Error(err))
		}

		xba, xok := asFloat(evo["xba"])
		bip, _ := evo["is_bip_out"].(string)
		des, _ := evo["des"].(string)
		if !xok || bip == "" || strings.TrimSpace(des) == "" {
			c.Metrics.EventsSkippedTotal.WithLabelValues("no_trigger").Inc()
			continue
		}
		isBipOut := strings.EqualFold(bip, "y")
		result, _ := evo["result"].(string)
		isHit := hitResults[strings.ToLower(result)]

		var kind string
		var post dedup.PostFunc
		switch {
		case xba > robbedXBA && isBipOut:
			kind = "robbed"
			post = func(ctx context.Context) (any, error) { return comment.Robbed(ctx, gamechat, evo) }
		case xba < lineDriveXBA && !isBipOut && isHit:
			kind = "linedrive"
			post = func(ctx context.Context) (any, error) { return comment.BoxscoreLineDrive(ctx, gamechat, evo) }
		default:
			c.Metrics.EventsSkippedTotal.WithLabelValues("no_trigger").Inc()
			continue
		}

		c.observe(log, key, kind, c.Gate.PostIfNew(ctx, key, evo, post))
	}
}

func (c *Clerk) dueUp(ctx context.Context, log *zap.Logger, gamePk, sub string, gamechat comment.Replier) {
	d, err := c.Plays.DueUp(ctx, gamePk)
	if err != nil {
		log.Error("fetching due up failed", zap.String("game_pk", gamePk), zap.Error(err))
		return
	}
	if d == nil {
		return
	}

	inning, iok := asFloat(d["inning"])
	half, _ := d["inningHalf"].(string)
	if !iok || half == "" {
		log.Error("due up missing inning", zap.String("game_pk", gamePk))
		return
	}

	key, err := eventkey.DueUp(gamePk, sub, int(inning), half)
	if err != nil {
		log.Error("bad due up key", zap.Error(err))
		return
	}

	out := c.Gate.PostIfNew(ctx, key, d, func(ctx context.Context) (any, error) {
		return comment.DueUp(ctx, gamechat, d)
	})
	c.observe(log, key, "dueup", out)
}

func (c *Clerk) inbox(ctx context.Context, log *zap.Logger, getSession func(string) (Session, error)) {
	for subName, subCfg := range c.Config.Subreddits {
		log.Info("running replies", zap.String("subreddit", subName))

		sess, err := getSession(subCfg.CredentialName)
		if err != nil {
			log.Error("session failed", zap.String("subreddit", subName), zap.Error(err))
			continue
		}

		msgs, err := sess.Unread(ctx)
		if err != nil {
			log.Error("reading inbox failed", zap.String("subreddit", subName), zap.Error(err))
			continue
		}

		botName := strings.ToLower(sess.Username())
		for _, m := range msgs {
			if !freshness.IsFresh(m.CreatedAt(), c.Now(), c.Config.Freshness.InboxMaxAge) {
				c.Metrics.EventsSkippedTotal.WithLabelValues("stale").Inc()
				c.markRead(ctx, log, m)
				continue
			}

			if m.IsComment() && strings.Contains(strings.ToLower(m.Body()), botName) {
				key, err := eventkey.Mention(m.ID())
				if err != nil {
					log.Error("bad mention key", zap.Error(err))
				} else {
					event := map[string]any{"id": m.ID(), "body": m.Body()}
					out := c.Gate.PostIfNew(ctx, key, event, func(ctx context.Context) (any, error) {
						return comment.DefaultMentionReply(ctx, m, subCfg.DefaultReplies)
					})
					c.observe(log, key, "mention", out)
				}
			}

			// Keep the inbox clean.
			c.markRead(ctx, log, m)
		}
	}
}

func (c *Clerk) markRead(ctx context.Context, log *zap.Logger, m InboxItem) {
	if err := m.MarkRead(ctx); err != nil {
		log.Error("mark read failed", zap.String("message_id", m.ID()), zap.Error(err))
	}
}
