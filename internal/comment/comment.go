// Package comment renders game events into thread comments and posts
// them with retry. Events arrive as opaque nested maps; every template
// extracts its fields explicitly and returns a DataShapeError when one
// is missing, which callers treat as not retryable.
package comment

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/troxellophilus/baseball-clerk/internal/reddit"
)

const byline = "^^^[⚾](https://github.com/troxellophilus/baseball-clerk/issues)"

const maxReplyTries = 4

// Shortened in tests.
var retryInitialInterval = 500 * time.Millisecond

// Replier posts a reply under some thread or message.
type Replier interface {
	Reply(ctx context.Context, body string) (*reddit.Comment, error)
}

// DataShapeError reports an event missing a field its template needs.
type DataShapeError struct {
	Path string
}

func (e *DataShapeError) Error() string {
	return "comment: event missing " + e.Path
}

func digMap(m map[string]any, keys ...string) (map[string]any, error) {
	cur := m
	for i, k := range keys {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil, &DataShapeError{Path: strings.Join(keys[:i+1], ".")}
		}
		cur = next
	}
	return cur, nil
}

func digString(m map[string]any, keys ...string) (string, error) {
	parent, err := digMap(m, keys[:len(keys)-1]...)
	if err != nil {
		return "", err
	}
	s, ok := parent[keys[len(keys)-1]].(string)
	if !ok {
		return "", &DataShapeError{Path: strings.Join(keys, ".")}
	}
	return s, nil
}

func digNum(m map[string]any, keys ...string) (float64, error) {
	parent, err := digMap(m, keys[:len(keys)-1]...)
	if err != nil {
		return 0, err
	}
	switch v := parent[keys[len(keys)-1]].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, &DataShapeError{Path: strings.Join(keys, ".")}
	}
}

func digSlice(m map[string]any, keys ...string) ([]any, error) {
	parent, err := digMap(m, keys[:len(keys)-1]...)
	if err != nil {
		return nil, err
	}
	s, ok := parent[keys[len(keys)-1]].([]any)
	if !ok {
		return nil, &DataShapeError{Path: strings.Join(keys, ".")}
	}
	return s, nil
}

func digAny(m map[string]any, keys ...string) (any, error) {
	parent, err := digMap(m, keys[:len(keys)-1]...)
	if err != nil {
		return nil, err
	}
	v, ok := parent[keys[len(keys)-1]]
	if !ok || v == nil {
		return nil, &DataShapeError{Path: strings.Join(keys, ".")}
	}
	return v, nil
}

func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func replyWithRetry(ctx context.Context, r Replier, body string) (*reddit.Comment, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	return backoff.Retry(ctx,
		func() (*reddit.Comment, error) { return r.Reply(ctx, body) },
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxReplyTries),
	)
}

// Strikeout posts a comment for a strikeout play.
func Strikeout(ctx context.Context, r Replier, play map[string]any) (*reddit.Comment, error) {
	pitcher, err := digString(play, "matchup", "pitcher", "fullName")
	if err != nil {
		return nil, err
	}
	batter, err := digString(play, "matchup", "batter", "fullName")
	if err != nil {
		return nil, err
	}
	events, err := digSlice(play, "playEvents")
	if err != nil || len(events) == 0 {
		return nil, &DataShapeError{Path: "playEvents"}
	}
	last, ok := events[len(events)-1].(map[string]any)
	if !ok {
		return nil, &DataShapeError{Path: "playEvents[-1]"}
	}

	code, err := digString(last, "details", "code")
	if err != nil {
		return nil, err
	}
	k := "K"
	if strings.ToLower(code) == "c" {
		k = "ꓘ" // called third strike, backwards K
	}
	pitchType, err := digString(last, "details", "type", "description")
	if err != nil {
		return nil, err
	}
	balls, err := digNum(last, "count", "balls")
	if err != nil {
		return nil, err
	}
	speed, err := digNum(last, "pitchData", "startSpeed")
	if err != nil {
		return nil, err
	}

	breakDetails := ""
	if breaks, berr := digMap(last, "pitchData", "breaks"); berr == nil {
		spinRate, sok := breaks["spinRate"].(float64)
		breakLength, bok := breaks["breakLength"].(float64)
		if sok && bok {
			breakDetails = fmt.Sprintf("Spin Rate: **%s rpm**. Break Length: **%s in**.\n\n",
				fnum(spinRate), fnum(breakLength))
		}
	}

	var sequence []string
	for _, e := range events {
		ev, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if _, hasPitch := ev["pitchData"]; !hasPitch {
			continue
		}
		typeCode, err := digString(ev, "details", "type", "code")
		if err != nil {
			return nil, err
		}
		resCode, err := digString(ev, "details", "code")
		if err != nil {
			return nil, err
		}
		resCode = strings.ToLower(strings.Trim(resCode, "*"))
		sequence = append(sequence, fmt.Sprintf("%s *(%s)*", typeCode, resCode))
	}

	body := fmt.Sprintf(
		"# %s\n\n**%s** strikes out **%s** on a **%d-2** count with a **%s mph** %s.\n\n%s*Sequence (%d):* %s\n\n%s",
		k, pitcher, batter, int(balls), fnum(speed), pitchType,
		breakDetails, len(sequence), strings.Join(sequence, ", "), byline,
	)
	return replyWithRetry(ctx, r, body)
}

// Verbs to pick from for home run comments.
var dongerVerbs = []string{"cracks", "smashes", "crushes", "rips", "hammers", "socks", "nails"}

// Homerun posts a comment for a home run play.
func Homerun(ctx context.Context, r Replier, play map[string]any) (*reddit.Comment, error) {
	pitcher, err := digString(play, "matchup", "pitcher", "fullName")
	if err != nil {
		return nil, err
	}
	batter, err := digString(play, "matchup", "batter", "fullName")
	if err != nil {
		return nil, err
	}
	runs, err := digNum(play, "result", "rbi")
	if err != nil {
		return nil, err
	}
	events, err := digSlice(play, "playEvents")
	if err != nil || len(events) == 0 {
		return nil, &DataShapeError{Path: "playEvents"}
	}
	last, ok := events[len(events)-1].(map[string]any)
	if !ok {
		return nil, &DataShapeError{Path: "playEvents[-1]"}
	}

	pitchType, err := digString(last, "details", "type", "description")
	if err != nil {
		return nil, err
	}
	pitchSpeed, err := digNum(last, "pitchData", "startSpeed")
	if err != nil {
		return nil, err
	}
	launchSpeed, err := digNum(last, "hitData", "launchSpeed")
	if err != nil {
		return nil, err
	}
	launchAngle, err := digNum(last, "hitData", "launchAngle")
	if err != nil {
		return nil, err
	}
	distance, err := digNum(last, "hitData", "totalDistance")
	if err != nil {
		return nil, err
	}

	verb := dongerVerbs[rand.Intn(len(dongerVerbs))]
	body := fmt.Sprintf(
		"# HR\n\n**%s** %s a **%s mph %s** from **%s** for a **%d-run** home run.\n\nLaunch Speed: **%s mph**. Launch Angle: **%s°**. Distance: **%s ft**.\n\n%s",
		batter, verb, fnum(pitchSpeed), pitchType, pitcher, int(runs),
		fnum(launchSpeed), fnum(launchAngle), fnum(distance), byline,
	)
	return replyWithRetry(ctx, r, body)
}

// DueUp posts a comment announcing the batters due up.
func DueUp(ctx context.Context, r Replier, dueUp map[string]any) (*reddit.Comment, error) {
	inning, err := digNum(dueUp, "inning")
	if err != nil {
		return nil, err
	}
	half, err := digString(dueUp, "inningHalf")
	if err != nil {
		return nil, err
	}
	batters, err := digSlice(dueUp, "batters")
	if err != nil {
		return nil, err
	}

	var battersUp []string
	for _, b := range batters {
		batter, ok := b.(map[string]any)
		if !ok {
			return nil, &DataShapeError{Path: "batters[]"}
		}
		hand, err := digString(batter, "batSide")
		if err != nil {
			return nil, err
		}
		name, err := digString(batter, "fullName")
		if err != nil {
			return nil, err
		}
		battersUp = append(battersUp, fmt.Sprintf("%s %s", hand, name))
	}

	if len(half) > 3 {
		half = half[:3]
	}
	body := fmt.Sprintf("**Due Up (%s %d)**\n\n%s\n\n%s",
		half, int(inning), strings.Join(battersUp, "\n\n"), byline)
	return replyWithRetry(ctx, r, body)
}

func evoStatsLine(evo map[string]any) (string, error) {
	speed, err := digAny(evo, "hit_speed")
	if err != nil {
		return "", err
	}
	angle, err := digAny(evo, "hit_angle")
	if err != nil {
		return "", err
	}
	distance, err := digAny(evo, "hit_distance")
	if err != nil {
		return "", err
	}
	xba, err := digAny(evo, "xba")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Launch Speed: **%v mph**. Launch Angle: **%v°**. Distance: **%v ft**. Expected Batting Average: ***%v***.",
		speed, angle, distance, xba,
	), nil
}

// Robbed posts a comment for a likely hit turned into an out.
func Robbed(ctx context.Context, r Replier, evo map[string]any) (*reddit.Comment, error) {
	desc, err := digString(evo, "des")
	if err != nil {
		return nil, err
	}
	stats, err := evoStatsLine(evo)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("**Robbed**\n\n%s\n\n%s\n\n%s", desc, stats, byline)
	return replyWithRetry(ctx, r, body)
}

// BoxscoreLineDrive posts a comment for a hit with a very low expected
// batting average.
func BoxscoreLineDrive(ctx context.Context, r Replier, evo map[string]any) (*reddit.Comment, error) {
	desc, err := digString(evo, "des")
	if err != nil {
		return nil, err
	}
	stats, err := evoStatsLine(evo)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("*Looks like a line drive in the box score...*\n\n%s\n\n%s\n\n%s", desc, stats, byline)
	return replyWithRetry(ctx, r, body)
}

// DefaultMentionReply posts a random choice from the configured reply
// bodies.
func DefaultMentionReply(ctx context.Context, r Replier, choices []string) (*reddit.Comment, error) {
	if len(choices) == 0 {
		return nil, &DataShapeError{Path: "default_replies"}
	}
	return replyWithRetry(ctx, r, choices[rand.Intn(len(choices))])
}
