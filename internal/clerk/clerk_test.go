package clerk

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/troxellophilus/baseball-clerk/internal/baseballbot"
	"github.com/troxellophilus/baseball-clerk/internal/comment"
	"github.com/troxellophilus/baseball-clerk/internal/config"
	"github.com/troxellophilus/baseball-clerk/internal/datastore"
	"github.com/troxellophilus/baseball-clerk/internal/reddit"
)

type fakeThreads struct {
	threads []baseballbot.GameThread
}

func (f fakeThreads) ActiveGameThreads(ctx context.Context, now time.Time) ([]baseballbot.GameThread, error) {
	return f.threads, nil
}

type fakePlays struct {
	plays []map[string]any
	dueUp map[string]any
}

func (f fakePlays) CompletedPlays(ctx context.Context, gamePk string) ([]map[string]any, error) {
	return f.plays, nil
}

func (f fakePlays) DueUp(ctx context.Context, gamePk string) (map[string]any, error) {
	return f.dueUp, nil
}

type fakeEVOs struct {
	evos []map[string]any
}

func (f fakeEVOs) ExitVelocities(ctx context.Context, gamePk string) ([]map[string]any, error) {
	return f.evos, nil
}

type fakeGamechat struct {
	replies []string
}

func (f *fakeGamechat) Reply(ctx context.Context, body string) (*reddit.Comment, error) {
	f.replies = append(f.replies, body)
	return &reddit.Comment{Subreddit: "baseball", CommentID: "c1", ParentID: "t3_p1", Body: body}, nil
}

type fakeMessage struct {
	id        string
	body      string
	comment   bool
	createdAt time.Time
	read      bool
	replies   int
}

func (m *fakeMessage) ID() string           { return m.id }
func (m *fakeMessage) Body() string         { return m.body }
func (m *fakeMessage) IsComment() bool      { return m.comment }
func (m *fakeMessage) CreatedAt() time.Time { return m.createdAt }

func (m *fakeMessage) Reply(ctx context.Context, body string) (*reddit.Comment, error) {
	m.replies++
	return &reddit.Comment{Subreddit: "baseball", CommentID: "r" + m.id, ParentID: "t1_" + m.id, Body: body}, nil
}

func (m *fakeMessage) MarkRead(ctx context.Context) error {
	m.read = true
	return nil
}

type fakeSession struct {
	username string
	gamechat *fakeGamechat
	msgs     []*fakeMessage
}

func (f *fakeSession) Username() string { return f.username }

func (f *fakeSession) Submission(postID string) comment.Replier { return f.gamechat }

func (f *fakeSession) Unread(ctx context.Context) ([]InboxItem, error) {
	items := make([]InboxItem, len(f.msgs))
	for i, m := range f.msgs {
		items[i] = m
	}
	return items, nil
}

func testConfig() config.Config {
	return config.Config{
		Subreddits: map[string]config.SubredditConfig{
			"baseball": {CredentialName: "bot1", DefaultReplies: []string{"howdy"}},
		},
		Credentials: map[string]config.RedditCredential{
			"bot1": {Username: "BaseballClerk"},
		},
		Freshness: config.FreshnessConfig{
			PlayMaxAge:  300 * time.Second,
			InboxMaxAge: 600 * time.Second,
		},
	}
}

func testTables(t *testing.T) (*datastore.Table, *datastore.Table) {
	t.Helper()
	s, err := datastore.Open(filepath.Join(t.TempDir(), "clerk.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	events := s.Table("event")
	comments := s.Table("comment")
	if err := events.Ensure(ctx); err != nil {
		t.Fatal(err)
	}
	if err := comments.Ensure(ctx); err != nil {
		t.Fatal(err)
	}
	return events, comments
}

func freshStrikeoutPlay(endedAt time.Time) map[string]any {
	return map[string]any{
		"result":      map[string]any{"event": "Strikeout"},
		"about":       map[string]any{"isComplete": true, "atBatIndex": float64(0)},
		"playEndTime": endedAt.UTC().Format(time.RFC3339),
		"matchup": map[string]any{
			"pitcher": map[string]any{"fullName": "Jacob deGrom"},
			"batter":  map[string]any{"fullName": "Ronald Acuna Jr."},
		},
		"playEvents": []any{
			map[string]any{
				"details": map[string]any{
					"code": "S",
					"type": map[string]any{"code": "FF", "description": "Four-Seam Fastball"},
				},
				"count":     map[string]any{"balls": float64(2)},
				"pitchData": map[string]any{"startSpeed": 98.9},
			},
		},
	}
}

func TestRunPostsOnceAcrossCycles(t *testing.T) {
	ctx := context.Background()
	events, comments := testTables(t)

	thread := baseballbot.GameThread{
		GamePk:   662021,
		PostID:   "p1",
		Status:   "Posted",
		StartsAt: time.Now().Add(-5 * time.Minute),
	}
	thread.Subreddit.Name = "baseball"

	gamechat := &fakeGamechat{}
	sess := &fakeSession{username: "BaseballClerk", gamechat: gamechat}
	sessions := func(ctx context.Context, cred config.RedditCredential) (Session, error) {
		return sess, nil
	}

	c := New(
		testConfig(),
		events, comments,
		fakeThreads{threads: []baseballbot.GameThread{thread}},
		fakePlays{plays: []map[string]any{freshStrikeoutPlay(time.Now().Add(-30 * time.Second))}},
		fakeEVOs{},
		sessions,
		nil,
	)

	c.Run(ctx)
	if len(gamechat.replies) != 1 {
		t.Fatalf("replies=%d want 1", len(gamechat.replies))
	}

	// Identical cycle: same play list must produce zero additional posts.
	c.Run(ctx)
	if len(gamechat.replies) != 1 {
		t.Fatalf("replies=%d after re-run, want still 1", len(gamechat.replies))
	}

	if _, ok, err := comments.Get(ctx, "play-662021-baseball-0"); err != nil || !ok {
		t.Fatalf("posted ledger missing play key: ok=%v err=%v", ok, err)
	}
	if _, ok, err := events.Get(ctx, "play-662021-baseball-0"); err != nil || !ok {
		t.Fatalf("archive missing play key: ok=%v err=%v", ok, err)
	}
}

func evoReading(xba, bipOut, result, des string) map[string]any {
	return map[string]any{
		"xba":          xba,
		"is_bip_out":   bipOut,
		"result":       result,
		"des":          des,
		"hit_speed":    "104.3",
		"hit_angle":    "27",
		"hit_distance": "402",
	}
}

func TestRunPostsExitVelocityTriggers(t *testing.T) {
	ctx := context.Background()
	events, comments := testTables(t)

	thread := baseballbot.GameThread{GamePk: 662021, PostID: "p1", Status: "Posted", StartsAt: time.Now().Add(-time.Hour)}
	thread.Subreddit.Name = "baseball"

	gamechat := &fakeGamechat{}
	sess := &fakeSession{username: "BaseballClerk", gamechat: gamechat}

	// String xba and upper-case is_bip_out, as the savant feed sends them.
	evos := []map[string]any{
		evoReading(".940", "Y", "Flyout", "Smith makes a leaping catch at the wall."),
		evoReading(".050", "N", "Single", "Jones flares a single to short right."),
		evoReading(".500", "N", "Flyout", "Routine fly ball to center."),
	}

	c := New(
		testConfig(),
		events, comments,
		fakeThreads{threads: []baseballbot.GameThread{thread}},
		fakePlays{},
		fakeEVOs{evos: evos},
		func(ctx context.Context, cred config.RedditCredential) (Session, error) { return sess, nil },
		nil,
	)
	c.Run(ctx)

	if len(gamechat.replies) != 2 {
		t.Fatalf("replies=%d want 2: %v", len(gamechat.replies), gamechat.replies)
	}
	if !strings.Contains(gamechat.replies[0], "Robbed") {
		t.Fatalf("first reply not a robbed comment: %q", gamechat.replies[0])
	}
	if !strings.Contains(gamechat.replies[1], "line drive in the box score") {
		t.Fatalf("second reply not a line-drive comment: %q", gamechat.replies[1])
	}

	for _, key := range []string{"evo-662021-baseball-0", "evo-662021-baseball-1"} {
		if _, ok, err := comments.Get(ctx, key); err != nil || !ok {
			t.Fatalf("posted ledger missing %s: ok=%v err=%v", key, ok, err)
		}
	}
	if _, ok, err := events.Get(ctx, "evo-662021-baseball-2"); err != nil || !ok {
		t.Fatalf("untriggered reading not archived: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := comments.Get(ctx, "evo-662021-baseball-2"); ok {
		t.Fatal("untriggered reading in posted ledger")
	}

	// Identical cycle: both triggered readings dedup.
	c.Run(ctx)
	if len(gamechat.replies) != 2 {
		t.Fatalf("replies=%d after re-run, want still 2", len(gamechat.replies))
	}
}

func TestRunPostsDueUpOncePerHalfInning(t *testing.T) {
	ctx := context.Background()
	events, comments := testTables(t)

	thread := baseballbot.GameThread{GamePk: 3, PostID: "p1", Status: "Posted", StartsAt: time.Now().Add(-time.Hour)}
	thread.Subreddit.Name = "baseball"

	gamechat := &fakeGamechat{}
	sess := &fakeSession{username: "BaseballClerk", gamechat: gamechat}

	dueUp := map[string]any{
		"inning":     7,
		"inningHalf": "Bottom",
		"batters": []any{
			map[string]any{"batSide": "R", "fullName": "First Batter"},
			map[string]any{"batSide": "L", "fullName": "Second Batter"},
			map[string]any{"batSide": "S", "fullName": "Third Batter"},
		},
	}

	c := New(
		testConfig(),
		events, comments,
		fakeThreads{threads: []baseballbot.GameThread{thread}},
		fakePlays{dueUp: dueUp},
		fakeEVOs{},
		func(ctx context.Context, cred config.RedditCredential) (Session, error) { return sess, nil },
		nil,
	)
	c.Run(ctx)

	if len(gamechat.replies) != 1 {
		t.Fatalf("replies=%d want 1", len(gamechat.replies))
	}
	if !strings.Contains(gamechat.replies[0], "First Batter") {
		t.Fatalf("due-up reply missing batter: %q", gamechat.replies[0])
	}
	if _, ok, err := comments.Get(ctx, "dueup-3-baseball-7-Bottom"); err != nil || !ok {
		t.Fatalf("posted ledger missing due-up key: ok=%v err=%v", ok, err)
	}

	// The half inning has not changed, so the key dedups.
	c.Run(ctx)
	if len(gamechat.replies) != 1 {
		t.Fatalf("replies=%d after re-run, want still 1", len(gamechat.replies))
	}
}

func TestRunStalePlayArchivedNotPosted(t *testing.T) {
	ctx := context.Background()
	events, comments := testTables(t)

	thread := baseballbot.GameThread{GamePk: 1, PostID: "p1", Status: "Posted", StartsAt: time.Now().Add(-2 * time.Hour)}
	thread.Subreddit.Name = "baseball"

	gamechat := &fakeGamechat{}
	sess := &fakeSession{username: "BaseballClerk", gamechat: gamechat}

	c := New(
		testConfig(),
		events, comments,
		fakeThreads{threads: []baseballbot.GameThread{thread}},
		fakePlays{plays: []map[string]any{freshStrikeoutPlay(time.Now().Add(-20 * time.Minute))}},
		fakeEVOs{},
		func(ctx context.Context, cred config.RedditCredential) (Session, error) { return sess, nil },
		nil,
	)
	c.Run(ctx)

	if len(gamechat.replies) != 0 {
		t.Fatalf("stale play posted: %v", gamechat.replies)
	}
	if _, ok, err := events.Get(ctx, "play-1-baseball-0"); err != nil || !ok {
		t.Fatalf("stale play not archived: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := comments.Get(ctx, "play-1-baseball-0"); ok {
		t.Fatal("stale play in posted ledger")
	}
}

func TestInboxRepliesToMentionsAndMarksAllRead(t *testing.T) {
	ctx := context.Background()
	events, comments := testTables(t)

	now := time.Now()
	msgs := []*fakeMessage{
		{id: "m1", body: "hey baseballclerk nice bot", comment: true, createdAt: now.Add(-time.Minute)},
		{id: "m2", body: "unrelated chatter", comment: true, createdAt: now.Add(-time.Minute)},
		{id: "m3", body: "BaseballClerk ancient ping", comment: true, createdAt: now.Add(-20 * time.Minute)},
	}
	sess := &fakeSession{username: "BaseballClerk", gamechat: &fakeGamechat{}, msgs: msgs}

	c := New(
		testConfig(),
		events, comments,
		fakeThreads{},
		fakePlays{},
		fakeEVOs{},
		func(ctx context.Context, cred config.RedditCredential) (Session, error) { return sess, nil },
		nil,
	)
	c.Run(ctx)

	if msgs[0].replies != 1 {
		t.Fatalf("mention replies=%d want 1", msgs[0].replies)
	}
	if msgs[1].replies != 0 || msgs[2].replies != 0 {
		t.Fatalf("unexpected replies: %d %d", msgs[1].replies, msgs[2].replies)
	}
	for _, m := range msgs {
		if !m.read {
			t.Fatalf("message %s not marked read", m.id)
		}
	}

	// Re-run with the same unread listing: the mention key dedups.
	c.Run(ctx)
	if msgs[0].replies != 1 {
		t.Fatalf("mention replied twice: %d", msgs[0].replies)
	}

	if _, ok, err := comments.Get(ctx, "textface-m1"); err != nil || !ok {
		t.Fatalf("mention ledger record missing: ok=%v err=%v", ok, err)
	}
}
