package clerk

import (
	"context"

	"github.com/troxellophilus/baseball-clerk/internal/comment"
	"github.com/troxellophilus/baseball-clerk/internal/config"
	"github.com/troxellophilus/baseball-clerk/internal/reddit"
)

// redditSession adapts *reddit.Session to the Session interface.
type redditSession struct {
	s *reddit.Session
}

func (r redditSession) Username() string { return r.s.Username() }

func (r redditSession) Submission(postID string) comment.Replier {
	return r.s.Submission(postID)
}

func (r redditSession) Unread(ctx context.Context) ([]InboxItem, error) {
	msgs, err := r.s.Unread(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]InboxItem, len(msgs))
	for i, m := range msgs {
		items[i] = m
	}
	return items, nil
}

// RedditSessions is the production SessionFactory.
func RedditSessions() SessionFactory {
	return func(ctx context.Context, cred config.RedditCredential) (Session, error) {
		s, err := reddit.Connect(ctx, reddit.Credentials{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			Username:     cred.Username,
			Password:     cred.Password,
			UserAgent:    cred.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		return redditSession{s: s}, nil
	}
}
