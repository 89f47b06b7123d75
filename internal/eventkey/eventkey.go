// Package eventkey builds the composite dedup keys used by the ledger.
// A key identifies one postable occurrence: the category tag leads,
// followed by the game, destination, and a category-specific
// discriminator. Re-deriving from the same inputs always yields the
// same key.
package eventkey

import "fmt"

// Category tags. They are the first key segment, which keeps categories
// collision-free even when every other field matches.
const (
	CategoryPlay         = "play"
	CategoryDueUp        = "dueup"
	CategoryExitVelocity = "evo"
	CategoryMention      = "textface"
)

func checkSegment(name, v string) error {
	if v == "" {
		return fmt.Errorf("eventkey: empty %s", name)
	}
	return nil
}

// Play keys a completed play by its at-bat index within the game.
func Play(gamePk, subreddit string, atBatIndex int) (string, error) {
	if err := checkSegment("gamePk", gamePk); err != nil {
		return "", err
	}
	if err := checkSegment("subreddit", subreddit); err != nil {
		return "", err
	}
	if atBatIndex < 0 {
		return "", fmt.Errorf("eventkey: negative at-bat index %d", atBatIndex)
	}
	return fmt.Sprintf("%s-%s-%s-%d", CategoryPlay, gamePk, subreddit, atBatIndex), nil
}

// DueUp keys a due-up announcement by inning and half, so each half
// inning is announced at most once per destination.
func DueUp(gamePk, subreddit string, inning int, half string) (string, error) {
	if err := checkSegment("gamePk", gamePk); err != nil {
		return "", err
	}
	if err := checkSegment("subreddit", subreddit); err != nil {
		return "", err
	}
	if inning < 1 {
		return "", fmt.Errorf("eventkey: bad inning %d", inning)
	}
	if err := checkSegment("inning half", half); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s-%d-%s", CategoryDueUp, gamePk, subreddit, inning, half), nil
}

// ExitVelocity keys a statcast exit-velocity reading by its index in
// the game feed.
func ExitVelocity(gamePk, subreddit string, idx int) (string, error) {
	if err := checkSegment("gamePk", gamePk); err != nil {
		return "", err
	}
	if err := checkSegment("subreddit", subreddit); err != nil {
		return "", err
	}
	if idx < 0 {
		return "", fmt.Errorf("eventkey: negative reading index %d", idx)
	}
	return fmt.Sprintf("%s-%s-%s-%d", CategoryExitVelocity, gamePk, subreddit, idx), nil
}

// Mention keys an inbound mention by the platform message id.
func Mention(messageID string) (string, error) {
	if err := checkSegment("message id", messageID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", CategoryMention, messageID), nil
}
