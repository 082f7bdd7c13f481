// Package platform defines the uniform action surface over social platforms
// and the registry that owns adapter instances.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/maheshrc27/persona-scheduler/internal/models"
)

// Target is something an engagement action can be aimed at: a post, or the
// user behind it.
type Target struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	URL      string    `json:"url"`
	Text     string    `json:"text"`
	Hashtags []string  `json:"hashtags"`
	PostedAt time.Time `json:"posted_at"`
	// Hashtag is the search term that surfaced the target, if any.
	Hashtag string `json:"hashtag"`
}

type PostResult struct {
	PlatformPostID string
	URL            string
}

type Analytics struct {
	Followers  int
	Following  int
	MediaCount int
}

// Adapter performs actions for one platform account. Expected failures are
// returned as *Error; any other error is an internal fault.
type Adapter interface {
	Platform() models.Platform
	Publish(ctx context.Context, content *models.Content) (PostResult, error)
	Like(ctx context.Context, target Target) error
	Comment(ctx context.Context, target Target, text string) error
	Follow(ctx context.Context, target Target) error
	FetchAnalytics(ctx context.Context) (Analytics, error)
	Close() error
}

// Messenger is implemented by adapters that can send direct messages.
type Messenger interface {
	SendMessage(ctx context.Context, threadID, recipientID, body string) (string, error)
}

// Discoverer is implemented by adapters that can search for engagement targets.
type Discoverer interface {
	Discover(ctx context.Context, hashtags []string, limit int) ([]Target, error)
}

// ActionSupporter is implemented by adapters that offer only some engagement
// kinds. Adapters without it are assumed to offer all of them.
type ActionSupporter interface {
	Supports(kind models.ActionKind) bool
}

// Credentials is the plaintext form of an account's sealed credential blob.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// CredentialOpener unseals credential blobs.
type CredentialOpener interface {
	OpenJSON(sealed []byte, v any) error
}

// OpenCredentials unseals the account's credentials. A missing or unreadable
// blob is an auth failure: the account has to be reconnected.
func OpenCredentials(opener CredentialOpener, account *models.PlatformAccount) (Credentials, error) {
	var creds Credentials
	if len(account.Credentials) == 0 {
		return creds, Auth(account.Platform, "open_credentials", errors.New("no credentials stored"))
	}
	if err := opener.OpenJSON(account.Credentials, &creds); err != nil {
		return creds, Auth(account.Platform, "open_credentials", err)
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return creds, Auth(account.Platform, "open_credentials", errors.New("credentials hold no token"))
	}
	return creds, nil
}
