// Package instagram publishes and engages through the Instagram Graph API.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
	"github.com/maheshrc27/persona-scheduler/internal/transfer"
)

const (
	defaultBaseURL = "https://graph.instagram.com/v21.0"
	tokenExpired   = 190
)

// Graph API error codes that signal throttling.
var throttleCodes = map[int]bool{1: true, 2: true, 4: true, 17: true, 32: true, 613: true}

// MediaMirror re-hosts media so the Graph API can fetch it.
type MediaMirror interface {
	Mirror(ctx context.Context, sourceURL string) (string, error)
}

type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	Opener       platform.CredentialOpener
	Mirror       MediaMirror
	Limit        rate.Limit
	Burst        int
	PollInterval time.Duration
	MaxPolls     int
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.Limit == 0 {
		o.Limit = rate.Every(time.Hour / 200)
	}
	if o.Burst == 0 {
		o.Burst = 5
	}
	if o.PollInterval == 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.MaxPolls == 0 {
		o.MaxPolls = 24
	}
	return o
}

func NewFactory(opts Options) platform.Factory {
	return func(_ context.Context, account *models.PlatformAccount) (platform.Adapter, error) {
		creds, err := platform.OpenCredentials(opts.Opener, account)
		if err != nil {
			return nil, err
		}
		return New(account.ExternalID, creds.AccessToken, opts), nil
	}
}

type Adapter struct {
	userID       string
	api          *platform.APIClient
	mirror       MediaMirror
	pollInterval time.Duration
	maxPolls     int
}

func New(userID, accessToken string, opts Options) *Adapter {
	opts = opts.withDefaults()

	api := platform.NewAPIClient(models.PlatformInstagram, opts.BaseURL, opts.HTTPClient, rate.NewLimiter(opts.Limit, opts.Burst))
	api.Authorize = func(req *http.Request) error {
		q := req.URL.Query()
		q.Set("access_token", accessToken)
		req.URL.RawQuery = q.Encode()
		return nil
	}
	api.Refine = refine

	return &Adapter{
		userID:       userID,
		api:          api,
		mirror:       opts.Mirror,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
	}
}

func refine(_ int, body []byte, kind platform.ErrorKind) platform.ErrorKind {
	var resp transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return kind
	}
	switch {
	case resp.Error.Code == tokenExpired:
		return platform.KindAuth
	case resp.Error.IsTransient, throttleCodes[resp.Error.Code]:
		return platform.KindTransient
	default:
		return kind
	}
}

func (a *Adapter) Platform() models.Platform { return models.PlatformInstagram }

func (a *Adapter) Publish(ctx context.Context, c *models.Content) (platform.PostResult, error) {
	images, err := a.mirrorAll(ctx, c.MediaURLs)
	if err != nil {
		return platform.PostResult{}, err
	}
	videos, err := a.mirrorAll(ctx, c.VideoURLs)
	if err != nil {
		return platform.PostResult{}, err
	}

	var containerID string
	switch {
	case c.Type == models.ContentTypeStory:
		containerID, err = a.storyContainer(ctx, images, videos)
	case c.Type == models.ContentTypeReel, c.Type == models.ContentTypePost && len(videos) == 1 && len(images) == 0:
		containerID, err = a.reelContainer(ctx, c.Caption, videos)
	case c.Type == models.ContentTypeCarousel, len(images)+len(videos) > 1:
		containerID, err = a.carouselContainer(ctx, c.Caption, images, videos)
	default:
		containerID, err = a.imageContainer(ctx, c.Caption, images)
	}
	if err != nil {
		return platform.PostResult{}, err
	}

	var published transfer.InstagramID
	err = a.api.Post(ctx, "publish", fmt.Sprintf("/%s/media_publish", a.userID),
		transfer.InstagramPublish{CreationID: containerID}, &published)
	if err != nil {
		return platform.PostResult{}, err
	}
	if published.ID == "" {
		return platform.PostResult{}, platform.Permanent(models.PlatformInstagram, "publish", errors.New("no media ID returned from Instagram"))
	}

	result := platform.PostResult{PlatformPostID: published.ID}
	var media transfer.InstagramMedia
	if err := a.api.Get(ctx, "permalink", "/"+published.ID, url.Values{"fields": {"permalink"}}, &media); err == nil {
		result.URL = media.Permalink
	}
	return result, nil
}

func (a *Adapter) mirrorAll(ctx context.Context, urls []string) ([]string, error) {
	if a.mirror == nil {
		return urls, nil
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		mirrored, err := a.mirror.Mirror(ctx, u)
		if err != nil {
			return nil, platform.Transient(models.PlatformInstagram, "mirror_media", err)
		}
		out = append(out, mirrored)
	}
	return out, nil
}

func (a *Adapter) imageContainer(ctx context.Context, caption string, images []string) (string, error) {
	if len(images) == 0 {
		return "", platform.Permanent(models.PlatformInstagram, "publish", errors.New("post has no media"))
	}
	return a.createContainer(ctx, transfer.InstagramContainer{ImageURL: images[0], Caption: caption}, false)
}

func (a *Adapter) reelContainer(ctx context.Context, caption string, videos []string) (string, error) {
	if len(videos) == 0 {
		return "", platform.Permanent(models.PlatformInstagram, "publish", errors.New("reel has no video"))
	}
	share := true
	return a.createContainer(ctx, transfer.InstagramContainer{
		MediaType:   "REELS",
		VideoURL:    videos[0],
		Caption:     caption,
		ShareToFeed: &share,
	}, true)
}

func (a *Adapter) storyContainer(ctx context.Context, images, videos []string) (string, error) {
	switch {
	case len(videos) > 0:
		return a.createContainer(ctx, transfer.InstagramContainer{MediaType: "STORIES", VideoURL: videos[0]}, true)
	case len(images) > 0:
		return a.createContainer(ctx, transfer.InstagramContainer{MediaType: "STORIES", ImageURL: images[0]}, false)
	default:
		return "", platform.Permanent(models.PlatformInstagram, "publish", errors.New("story has no media"))
	}
}

func (a *Adapter) carouselContainer(ctx context.Context, caption string, images, videos []string) (string, error) {
	children := make([]string, 0, len(images)+len(videos))
	for _, img := range images {
		id, err := a.createContainer(ctx, transfer.InstagramContainer{ImageURL: img, IsCarousel: true}, false)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	for _, vid := range videos {
		id, err := a.createContainer(ctx, transfer.InstagramContainer{MediaType: "VIDEO", VideoURL: vid, IsCarousel: true}, true)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	if len(children) < 2 {
		return "", platform.Permanent(models.PlatformInstagram, "publish", errors.New("carousel needs at least two items"))
	}

	return a.createContainer(ctx, transfer.InstagramContainer{
		MediaType: "CAROUSEL",
		Caption:   caption,
		Children:  children,
	}, false)
}

func (a *Adapter) createContainer(ctx context.Context, body transfer.InstagramContainer, video bool) (string, error) {
	var created transfer.InstagramID
	if err := a.api.Post(ctx, "create_container", fmt.Sprintf("/%s/media", a.userID), body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", platform.Permanent(models.PlatformInstagram, "create_container", errors.New("no media ID returned from Instagram"))
	}
	if video {
		if err := a.waitReady(ctx, created.ID); err != nil {
			return "", err
		}
	}
	return created.ID, nil
}

// waitReady polls a video container until Instagram finishes processing it.
func (a *Adapter) waitReady(ctx context.Context, containerID string) error {
	for range a.maxPolls {
		var status transfer.InstagramContainerStatus
		if err := a.api.Get(ctx, "container_status", "/"+containerID, url.Values{"fields": {"status_code"}}, &status); err != nil {
			return err
		}
		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return platform.Permanent(models.PlatformInstagram, "container_status",
				fmt.Errorf("container %s is %s", containerID, status.StatusCode))
		}

		t := time.NewTimer(a.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return platform.Transient(models.PlatformInstagram, "container_status", ctx.Err())
		case <-t.C:
		}
	}
	return platform.Transient(models.PlatformInstagram, "container_status",
		fmt.Errorf("container %s still processing", containerID))
}

// Supports reports that comments are the only engagement the Graph API allows.
func (a *Adapter) Supports(kind models.ActionKind) bool {
	return kind == models.ActionComment
}

func (a *Adapter) Like(context.Context, platform.Target) error {
	return platform.Unsupported(models.PlatformInstagram, "like")
}

func (a *Adapter) Follow(context.Context, platform.Target) error {
	return platform.Unsupported(models.PlatformInstagram, "follow")
}

func (a *Adapter) Comment(ctx context.Context, target platform.Target, text string) error {
	var created transfer.InstagramID
	return a.api.Post(ctx, "comment", fmt.Sprintf("/%s/comments", target.ID), transfer.InstagramComment{Message: text}, &created)
}

func (a *Adapter) SendMessage(ctx context.Context, _, recipientID, body string) (string, error) {
	var msg transfer.InstagramMessage
	msg.Recipient.ID = recipientID
	msg.Message.Text = body

	var resp transfer.InstagramMessageResponse
	if err := a.api.Post(ctx, "send_message", fmt.Sprintf("/%s/messages", a.userID), msg, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

func (a *Adapter) Discover(ctx context.Context, hashtags []string, limit int) ([]platform.Target, error) {
	var targets []platform.Target
	for _, tag := range hashtags {
		if limit > 0 && len(targets) >= limit {
			break
		}
		tag = strings.TrimPrefix(strings.ToLower(tag), "#")

		var search transfer.InstagramHashtagSearch
		err := a.api.Get(ctx, "hashtag_search", "/ig_hashtag_search", url.Values{"user_id": {a.userID}, "q": {tag}}, &search)
		if err != nil {
			return targets, err
		}
		if len(search.Data) == 0 {
			continue
		}

		var recent transfer.InstagramMediaList
		err = a.api.Get(ctx, "recent_media", fmt.Sprintf("/%s/recent_media", search.Data[0].ID), url.Values{
			"user_id": {a.userID},
			"fields":  {"id,caption,permalink,timestamp"},
		}, &recent)
		if err != nil {
			return targets, err
		}

		for _, m := range recent.Data {
			postedAt, _ := time.Parse("2006-01-02T15:04:05-0700", m.Timestamp)
			targets = append(targets, platform.Target{
				ID:       m.ID,
				UserID:   m.OwnerID,
				URL:      m.Permalink,
				Text:     m.Caption,
				Hashtags: platform.ExtractHashtags(m.Caption),
				PostedAt: postedAt,
				Hashtag:  tag,
			})
		}
	}
	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	return targets, nil
}

func (a *Adapter) FetchAnalytics(ctx context.Context) (platform.Analytics, error) {
	var info transfer.InstagramAccountInfo
	err := a.api.Get(ctx, "analytics", "/"+a.userID, url.Values{"fields": {"followers_count,follows_count,media_count"}}, &info)
	if err != nil {
		return platform.Analytics{}, err
	}
	return platform.Analytics{
		Followers:  info.FollowersCount,
		Following:  info.FollowsCount,
		MediaCount: info.MediaCount,
	}, nil
}

func (a *Adapter) Close() error { return nil }
