// Package youtube acts through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/persona-scheduler/internal/logger"
	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

const (
	categoryPeopleAndBlogs = "22"
	maxTitleLength         = 100
)

var scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.force-ssl",
}

type Options struct {
	ClientID     string
	ClientSecret string
	Opener       platform.CredentialOpener
	Save         platform.CredentialSaver
	// HTTPClient downloads the media being uploaded.
	HTTPClient *http.Client
	// ClientOptions are appended when building the API service.
	ClientOptions []option.ClientOption
	Logger        *slog.Logger
}

func NewFactory(opts Options) platform.Factory {
	log := logger.OrDiscard(opts.Logger).With("component", "youtube")

	return func(ctx context.Context, account *models.PlatformAccount) (platform.Adapter, error) {
		creds, err := platform.OpenCredentials(opts.Opener, account)
		if err != nil {
			return nil, err
		}

		conf := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}
		tokenCtx := context.WithoutCancel(ctx)
		initial := creds.Token()
		ts := platform.PersistingTokenSource(conf.TokenSource(tokenCtx, initial), initial, func(tok *oauth2.Token) {
			if opts.Save == nil {
				return
			}
			if err := opts.Save(tokenCtx, account, platform.CredentialsFromToken(tok)); err != nil {
				log.Error("failed to store refreshed token", "account_id", account.ID, "error", err)
			}
		})

		clientOpts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(tokenCtx, ts))}, opts.ClientOptions...)
		svc, err := yt.NewService(tokenCtx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("error creating youtube service: %w", err)
		}
		return New(svc, account.ExternalID, opts.HTTPClient), nil
	}
}

type Adapter struct {
	svc       *yt.Service
	channelID string
	http      *http.Client
}

func New(svc *yt.Service, channelID string, httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Adapter{svc: svc, channelID: channelID, http: httpClient}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformYoutube }

// Publish uploads the first video of the content, streaming it from its URL.
func (a *Adapter) Publish(ctx context.Context, c *models.Content) (platform.PostResult, error) {
	if len(c.VideoURLs) == 0 {
		return platform.PostResult{}, platform.Permanent(models.PlatformYoutube, "publish", errors.New("youtube requires a video"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.VideoURLs[0], nil)
	if err != nil {
		return platform.PostResult{}, platform.Permanent(models.PlatformYoutube, "publish", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return platform.PostResult{}, platform.Transient(models.PlatformYoutube, "publish", fmt.Errorf("downloading video: %w", err))
	}
	defer resp.Body.Close()
	if kind, failed := platform.ClassifyStatus(resp.StatusCode); failed {
		if kind == platform.KindAuth {
			kind = platform.KindPermanent
		}
		return platform.PostResult{}, &platform.Error{Kind: kind, Platform: models.PlatformYoutube, Op: "publish",
			Err: &platform.StatusError{StatusCode: resp.StatusCode}}
	}

	title := c.Topic
	if title == "" {
		title = firstLine(c.Caption)
	}
	if c.Type == models.ContentTypeReel && !strings.Contains(c.Caption, "#Shorts") {
		title += " #Shorts"
	}

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       platform.Truncate(title, maxTitleLength),
			Description: c.Caption,
			Tags:        platform.ExtractHashtags(c.Caption),
			CategoryId:  categoryPeopleAndBlogs,
		},
		Status: &yt.VideoStatus{PrivacyStatus: "public"},
	}
	uploaded, err := a.svc.Videos.Insert([]string{"snippet", "status"}, video).Media(resp.Body).Context(ctx).Do()
	if err != nil {
		return platform.PostResult{}, classify("publish", err)
	}
	return platform.PostResult{PlatformPostID: uploaded.Id, URL: "https://youtu.be/" + uploaded.Id}, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if line == "" {
		return "New video"
	}
	return line
}

func (a *Adapter) Like(ctx context.Context, target platform.Target) error {
	if err := a.svc.Videos.Rate(target.ID, "like").Context(ctx).Do(); err != nil {
		return classify("like", err)
	}
	return nil
}

func (a *Adapter) Comment(ctx context.Context, target platform.Target, text string) error {
	thread := &yt.CommentThread{
		Snippet: &yt.CommentThreadSnippet{
			VideoId: target.ID,
			TopLevelComment: &yt.Comment{
				Snippet: &yt.CommentSnippet{TextOriginal: text},
			},
		},
	}
	if _, err := a.svc.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do(); err != nil {
		return classify("comment", err)
	}
	return nil
}

// Follow subscribes to the channel behind the target.
func (a *Adapter) Follow(ctx context.Context, target platform.Target) error {
	if target.UserID == "" {
		return platform.Permanent(models.PlatformYoutube, "follow", errors.New("target has no channel id"))
	}
	sub := &yt.Subscription{
		Snippet: &yt.SubscriptionSnippet{
			ResourceId: &yt.ResourceId{Kind: "youtube#channel", ChannelId: target.UserID},
		},
	}
	if _, err := a.svc.Subscriptions.Insert([]string{"snippet"}, sub).Context(ctx).Do(); err != nil {
		return classify("follow", err)
	}
	return nil
}

func (a *Adapter) Discover(ctx context.Context, hashtags []string, limit int) ([]platform.Target, error) {
	if len(hashtags) == 0 {
		return nil, nil
	}
	terms := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		terms = append(terms, "#"+strings.TrimPrefix(tag, "#"))
	}
	if limit <= 0 {
		limit = 25
	}

	res, err := a.svc.Search.List([]string{"snippet"}).
		Q(strings.Join(terms, "|")).
		Type("video").
		Order("date").
		MaxResults(int64(min(limit, 50))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("discover", err)
	}

	targets := make([]platform.Target, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil || item.Snippet.ChannelId == a.channelID {
			continue
		}
		text := strings.TrimSpace(item.Snippet.Title + "\n" + item.Snippet.Description)
		postedAt, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		tags := platform.ExtractHashtags(text)
		targets = append(targets, platform.Target{
			ID:       item.Id.VideoId,
			UserID:   item.Snippet.ChannelId,
			URL:      "https://youtu.be/" + item.Id.VideoId,
			Text:     text,
			Hashtags: tags,
			PostedAt: postedAt,
			Hashtag:  matchedHashtag(tags, hashtags),
		})
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
	res, err := a.svc.Channels.List([]string{"statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return platform.Analytics{}, classify("analytics", err)
	}
	if len(res.Items) == 0 || res.Items[0].Statistics == nil {
		return platform.Analytics{}, platform.Permanent(models.PlatformYoutube, "analytics", errors.New("channel not found"))
	}
	stats := res.Items[0].Statistics
	return platform.Analytics{
		Followers:  int(stats.SubscriberCount),
		MediaCount: int(stats.VideoCount),
	}, nil
}

func (a *Adapter) Close() error { return nil }

// classify maps client library failures onto platform errors. YouTube reports
// exhausted quota as 403, which is worth retrying later.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return platform.ClassifyTokenError(models.PlatformYoutube, err)
	}

	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return platform.Transient(models.PlatformYoutube, op, err)
	}
	for _, item := range ge.Errors {
		switch item.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return platform.Transient(models.PlatformYoutube, op, err)
		}
	}
	kind, failed := platform.ClassifyStatus(ge.Code)
	if !failed {
		kind = platform.KindPermanent
	}
	return &platform.Error{Kind: kind, Platform: models.PlatformYoutube, Op: op, Err: err}
}
