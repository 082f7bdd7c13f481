// Package fanvue acts through the Fanvue creator API.
package fanvue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

const (
	audienceFollowers   = "followers"
	audienceSubscribers = "subscribers"
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Opener     platform.CredentialOpener
	Limit      rate.Limit
	Burst      int
}

func NewFactory(opts Options) platform.Factory {
	return func(_ context.Context, account *models.PlatformAccount) (platform.Adapter, error) {
		creds, err := platform.OpenCredentials(opts.Opener, account)
		if err != nil {
			return nil, err
		}
		if creds.AccessToken == "" {
			return nil, platform.Auth(models.PlatformFanvue, "open_credentials", errors.New("no access token"))
		}
		return New(creds.AccessToken, opts), nil
	}
}

type Adapter struct {
	api *platform.APIClient
}

func New(accessToken string, opts Options) *Adapter {
	if opts.Limit == 0 {
		opts.Limit = rate.Every(time.Second)
	}
	if opts.Burst == 0 {
		opts.Burst = 2
	}
	api := platform.NewAPIClient(models.PlatformFanvue, opts.BaseURL, opts.HTTPClient, rate.NewLimiter(opts.Limit, opts.Burst))
	api.Authorize = platform.BearerAuthorizer(models.PlatformFanvue, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	return &Adapter{api: api}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformFanvue }

// Publish creates a post. NSFW content is only shown to paying subscribers.
func (a *Adapter) Publish(ctx context.Context, c *models.Content) (platform.PostResult, error) {
	media := append(append([]string{}, c.MediaURLs...), c.VideoURLs...)
	if c.Caption == "" && len(media) == 0 {
		return platform.PostResult{}, platform.Permanent(models.PlatformFanvue, "publish", errors.New("post has neither text nor media"))
	}

	audience := audienceFollowers
	if c.IsNSFW {
		audience = audienceSubscribers
	}

	var post transfer.FanvuePost
	req := transfer.FanvuePostRequest{Text: c.Caption, MediaURLs: media, Audience: audience}
	if err := a.api.Post(ctx, "publish", "/posts", req, &post); err != nil {
		return platform.PostResult{}, err
	}
	return platform.PostResult{PlatformPostID: post.UUID, URL: post.URL}, nil
}

func (a *Adapter) Like(ctx context.Context, target platform.Target) error {
	return a.api.Post(ctx, "like", fmt.Sprintf("/posts/%s/likes", target.ID), nil, nil)
}

func (a *Adapter) Comment(ctx context.Context, target platform.Target, text string) error {
	return a.api.Post(ctx, "comment", fmt.Sprintf("/posts/%s/comments", target.ID), transfer.FanvueCommentRequest{Text: text}, nil)
}

func (a *Adapter) Follow(ctx context.Context, target platform.Target) error {
	if target.UserID == "" {
		return platform.Permanent(models.PlatformFanvue, "follow", errors.New("target has no user id"))
	}
	return a.api.Post(ctx, "follow", fmt.Sprintf("/users/%s/follow", target.UserID), nil, nil)
}

// SendMessage replies in the chat with recipientID; Fanvue keys chats by
// the fan's user id, so threadID is only a fallback.
func (a *Adapter) SendMessage(ctx context.Context, threadID, recipientID, body string) (string, error) {
	chat := recipientID
	if chat == "" {
		chat = threadID
	}
	var msg transfer.FanvueMessage
	if err := a.api.Post(ctx, "send_message", fmt.Sprintf("/chats/%s/message", chat), transfer.FanvueMessageRequest{Text: body}, &msg); err != nil {
		return "", err
	}
	return msg.UUID, nil
}

func (a *Adapter) FetchAnalytics(ctx context.Context) (platform.Analytics, error) {
	var p transfer.FanvueProfile
	if err := a.api.Get(ctx, "analytics", "/users/me", nil, &p); err != nil {
		return platform.Analytics{}, err
	}
	return platform.Analytics{Followers: p.FollowersCount, Following: p.FollowingCount, MediaCount: p.PostsCount}, nil
}

func (a *Adapter) Close() error { return nil }
