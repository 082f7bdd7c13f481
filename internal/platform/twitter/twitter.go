// Package twitter acts through the X (Twitter) API v2 with OAuth2 user tokens.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

const (
	defaultBaseURL  = "https://api.twitter.com/2"
	defaultTokenURL = "https://api.twitter.com/2/oauth2/token"
	maxTweetLength  = 280
)

type Options struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Opener       platform.CredentialOpener
	Save         platform.CredentialSaver
	Limit        rate.Limit
	Burst        int
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.TokenURL == "" {
		o.TokenURL = defaultTokenURL
	}
	if o.Limit == 0 {
		o.Limit = rate.Every(time.Minute / 10)
	}
	if o.Burst == 0 {
		o.Burst = 3
	}
	return o
}

func NewFactory(opts Options) platform.Factory {
	opts = opts.withDefaults()
	log := logger.OrDiscard(opts.Logger).With("component", "twitter")

	return func(ctx context.Context, account *models.PlatformAccount) (platform.Adapter, error) {
		creds, err := platform.OpenCredentials(opts.Opener, account)
		if err != nil {
			return nil, err
		}

		conf := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: opts.TokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		tokenCtx := context.WithoutCancel(ctx)
		if opts.HTTPClient != nil {
			tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
		}
		initial := creds.Token()
		ts := platform.PersistingTokenSource(conf.TokenSource(tokenCtx, initial), initial, func(tok *oauth2.Token) {
			if opts.Save == nil {
				return
			}
			if err := opts.Save(tokenCtx, account, platform.CredentialsFromToken(tok)); err != nil {
				log.Error("failed to store refreshed token", "account_id", account.ID, "error", err)
			}
		})

		return New(account.ExternalID, ts, opts), nil
	}
}

type Adapter struct {
	userID string
	api    *platform.APIClient
}

func New(userID string, ts oauth2.TokenSource, opts Options) *Adapter {
	opts = opts.withDefaults()
	api := platform.NewAPIClient(models.PlatformTwitter, opts.BaseURL, opts.HTTPClient, rate.NewLimiter(opts.Limit, opts.Burst))
	api.Authorize = platform.BearerAuthorizer(models.PlatformTwitter, ts)
	return &Adapter{userID: userID, api: api}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformTwitter }

// Publish posts the caption as a tweet. Media is linked rather than uploaded.
func (a *Adapter) Publish(ctx context.Context, c *models.Content) (platform.PostResult, error) {
	text := c.Caption
	if link := firstMedia(c); link != "" {
		text = platform.Truncate(text, maxTweetLength-len(link)-1) + "\n" + link
	}
	text = strings.TrimSpace(platform.Truncate(text, maxTweetLength))
	if text == "" {
		return platform.PostResult{}, platform.Permanent(models.PlatformTwitter, "publish", errors.New("tweet is empty"))
	}

	var resp transfer.TweetResponse
	if err := a.api.Post(ctx, "publish", "/tweets", transfer.TweetRequest{Text: text}, &resp); err != nil {
		return platform.PostResult{}, err
	}
	return platform.PostResult{
		PlatformPostID: resp.Data.ID,
		URL:            fmt.Sprintf("https://x.com/i/web/status/%s", resp.Data.ID),
	}, nil
}

func firstMedia(c *models.Content) string {
	if len(c.VideoURLs) > 0 {
		return c.VideoURLs[0]
	}
	if len(c.MediaURLs) > 0 {
		return c.MediaURLs[0]
	}
	return ""
}

func (a *Adapter) Like(ctx context.Context, target platform.Target) error {
	return a.api.Post(ctx, "like", fmt.Sprintf("/users/%s/likes", a.userID), transfer.TwitterLikeRequest{TweetID: target.ID}, nil)
}

func (a *Adapter) Comment(ctx context.Context, target platform.Target, text string) error {
	req := transfer.TweetRequest{
		Text:  platform.Truncate(text, maxTweetLength),
		Reply: &transfer.TweetReply{InReplyToTweetID: target.ID},
	}
	return a.api.Post(ctx, "comment", "/tweets", req, nil)
}

func (a *Adapter) Follow(ctx context.Context, target platform.Target) error {
	if target.UserID == "" {
		return platform.Permanent(models.PlatformTwitter, "follow", errors.New("target has no user id"))
	}
	return a.api.Post(ctx, "follow", fmt.Sprintf("/users/%s/following", a.userID), transfer.TwitterFollowRequest{TargetUserID: target.UserID}, nil)
}

func (a *Adapter) SendMessage(ctx context.Context, threadID, recipientID, body string) (string, error) {
	path := fmt.Sprintf("/dm_conversations/%s/messages", threadID)
	if threadID == "" {
		path = fmt.Sprintf("/dm_conversations/with/%s/messages", recipientID)
	}

	var resp transfer.TwitterDMResponse
	if err := a.api.Post(ctx, "send_message", path, transfer.TwitterDMRequest{Text: body}, &resp); err != nil {
		return "", err
	}
	return resp.Data.DMEventID, nil
}

func (a *Adapter) Discover(ctx context.Context, hashtags []string, limit int) ([]platform.Target, error) {
	if len(hashtags) == 0 {
		return nil, nil
	}
	terms := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		terms = append(terms, "#"+strings.TrimPrefix(tag, "#"))
	}
	maxResults := min(max(limit, 10), 100)

	var resp transfer.TwitterSearchResponse
	err := a.api.Get(ctx, "discover", "/tweets/search/recent", url.Values{
		"query":        {"(" + strings.Join(terms, " OR ") + ") -is:retweet -is:reply"},
		"tweet.fields": {"created_at,author_id,entities"},
		"max_results":  {fmt.Sprint(maxResults)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	targets := make([]platform.Target, 0, len(resp.Data))
	for _, tw := range resp.Data {
		if tw.AuthorID == a.userID {
			continue
		}
		postedAt, _ := time.Parse(time.RFC3339, tw.CreatedAt)
		tags := make([]string, 0, len(tw.Entities.Hashtags))
		for _, h := range tw.Entities.Hashtags {
			tags = append(tags, strings.ToLower(h.Tag))
		}
		targets = append(targets, platform.Target{
			ID:       tw.ID,
			UserID:   tw.AuthorID,
			URL:      fmt.Sprintf("https://x.com/i/web/status/%s", tw.ID),
			Text:     tw.Text,
			Hashtags: tags,
			PostedAt: postedAt,
			Hashtag:  matchedHashtag(tags, hashtags),
		})
	}
	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	return targets, nil
}

func matchedHashtag(tags, wanted []string) string {
	for _, w := range wanted {
		w = strings.ToLower(strings.TrimPrefix(w, "#"))
		for _, t := range tags {
			if t == w {
				return w
			}
		}
	}
	return ""
}

func (a *Adapter) FetchAnalytics(ctx context.Context) (platform.Analytics, error) {
	var resp transfer.TwitterUserResponse
	err := a.api.Get(ctx, "analytics", "/users/"+a.userID, url.Values{"user.fields": {"public_metrics"}}, &resp)
	if err != nil {
		return platform.Analytics{}, err
	}
	m := resp.Data.PublicMetrics
	return platform.Analytics{Followers: m.FollowersCount, Following: m.FollowingCount, MediaCount: m.TweetCount}, nil
}

func (a *Adapter) Close() error { return nil }
