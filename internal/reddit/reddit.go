// Package reddit is the thin posting collaborator: script-app OAuth,
// comment replies, and the unread inbox. Only the surface the clerk
// needs is implemented.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
)

// Credentials identifies one script app acting as one bot account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// Comment is the posted-comment metadata stored in the dedup ledger.
type Comment struct {
	Subreddit string `json:"subreddit"`
	CommentID string `json:"comment_id"`
	ParentID  string `json:"parent_id"`
	Body      string `json:"body"`
}

// Session is an authenticated bot account.
type Session struct {
	http      *http.Client
	apiBase   string
	token     string
	username  string
	userAgent string
}

// Connect performs the password-grant token exchange and returns an
// authenticated session.
func Connect(ctx context.Context, creds Credentials) (*Session, error) {
	return connect(ctx, creds, tokenURL, apiBase)
}

func connect(ctx context.Context, creds Credentials, tokURL, base string) (*Session, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", creds.UserAgent)

	client := &http.Client{Timeout: 15 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit: token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit: token: status %d", res.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("reddit: token decode: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("reddit: token missing in response")
	}

	return &Session{
		http:      client,
		apiBase:   base,
		token:     tok.AccessToken,
		username:  creds.Username,
		userAgent: creds.UserAgent,
	}, nil
}

// Username returns the bot account name.
func (s *Session) Username() string { return s.username }

func (s *Session) do(ctx context.Context, method, path string, form url.Values, v any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("User-Agent", s.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	res, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("reddit: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("reddit: %s %s: status %d", method, path, res.StatusCode)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(v)
}

// reply posts a comment under the given fullname (t3_* or t1_*).
func (s *Session) reply(ctx context.Context, parentFullname, body string) (*Comment, error) {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {parentFullname},
		"text":     {body},
	}

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Things []struct {
					Data struct {
						ID        string `json:"id"`
						Subreddit string `json:"subreddit"`
						ParentID  string `json:"parent_id"`
						Body      string `json:"body"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/comment", form, &out); err != nil {
		return nil, err
	}
	if len(out.JSON.Errors) > 0 {
		return nil, fmt.Errorf("reddit: comment on %s: %v", parentFullname, out.JSON.Errors)
	}
	if len(out.JSON.Data.Things) == 0 {
		return nil, fmt.Errorf("reddit: comment on %s: empty response", parentFullname)
	}

	d := out.JSON.Data.Things[0].Data
	return &Comment{
		Subreddit: d.Subreddit,
		CommentID: d.ID,
		ParentID:  d.ParentID,
		Body:      d.Body,
	}, nil
}

// Submission is a game-thread handle.
type Submission struct {
	session *Session
	postID  string
}

// Submission returns a handle for the thread with the given post id.
func (s *Session) Submission(postID string) *Submission {
	return &Submission{session: s, postID: postID}
}

// Reply posts a top-level comment to the thread.
func (sub *Submission) Reply(ctx context.Context, body string) (*Comment, error) {
	return sub.session.reply(ctx, "t3_"+sub.postID, body)
}

// Message is one inbox item.
type Message struct {
	session    *Session
	id         string
	fullname   string
	body       string
	wasComment bool
	createdAt  time.Time
}

// ID returns the message id (without type prefix).
func (m *Message) ID() string { return m.id }

// Body returns the message text.
func (m *Message) Body() string { return m.body }

// IsComment reports whether the item is a comment (vs a private message).
func (m *Message) IsComment() bool { return m.wasComment }

// CreatedAt returns the message creation time.
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// Reply posts a reply to the message.
func (m *Message) Reply(ctx context.Context, body string) (*Comment, error) {
	return m.session.reply(ctx, m.fullname, body)
}

// MarkRead removes the message from the unread listing.
func (m *Message) MarkRead(ctx context.Context) error {
	form := url.Values{"id": {m.fullname}}
	return m.session.do(ctx, http.MethodPost, "/api/read_message", form, nil)
}

// Unread lists the session's unread inbox items, newest first.
func (s *Session) Unread(ctx context.Context) ([]*Message, error) {
	var out struct {
		Data struct {
			Children []struct {
				Kind string `json:"kind"`
				Data struct {
					ID         string  `json:"id"`
					Name       string  `json:"name"`
					Body       string  `json:"body"`
					WasComment bool    `json:"was_comment"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := s.do(ctx, http.MethodGet, "/message/unread", nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]*Message, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		d := child.Data
		msgs = append(msgs, &Message{
			session:    s,
			id:         d.ID,
			fullname:   d.Name,
			body:       d.Body,
			wasComment: child.Kind == "t1" || d.WasComment,
			createdAt:  time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return msgs, nil
}
