package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

type ContentType string

const (
	ContentTypePost     ContentType = "post"
	ContentTypeStory    ContentType = "story"
	ContentTypeReel     ContentType = "reel"
	ContentTypeCarousel ContentType = "carousel"
)

type ContentStatus string

const (
	ContentStatusDraft         ContentStatus = "draft"
	ContentStatusPendingReview ContentStatus = "pending_review"
	ContentStatusScheduled     ContentStatus = "scheduled"
	ContentStatusPosting       ContentStatus = "posting"
	ContentStatusPosted        ContentStatus = "posted"
	ContentStatusFailed        ContentStatus = "failed"
	ContentStatusRejected      ContentStatus = "rejected"
)

type Content struct {
	ID              int64          `db:"id" json:"id"`
	PersonaID       int64          `db:"persona_id" json:"persona_id"`
	Type            ContentType    `db:"content_type" json:"content_type"`
	Status          ContentStatus  `db:"status" json:"status"`
	Caption         string         `db:"caption" json:"caption"`
	Topic           string         `db:"topic" json:"topic"`
	MediaURLs       pq.StringArray `db:"media_urls" json:"media_urls"`
	VideoURLs       pq.StringArray `db:"video_urls" json:"video_urls"`
	IsNSFW          bool           `db:"is_nsfw" json:"is_nsfw"`
	TargetPlatforms pq.StringArray `db:"target_platforms" json:"target_platforms"`
	PostedPlatforms pq.StringArray `db:"posted_platforms" json:"posted_platforms"`
	FailedPlatforms pq.StringArray `db:"failed_platforms" json:"failed_platforms"`
	RetryCount      int            `db:"retry_count" json:"retry_count"`
	ErrorMessage    string         `db:"error_message" json:"error_message"`
	ScheduledFor    *time.Time     `db:"scheduled_for" json:"scheduled_for"`
	PostedAt        *time.Time     `db:"posted_at" json:"posted_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

func (c *Content) Targets(p Platform) bool {
	return slices.Contains(c.TargetPlatforms, string(p))
}

func (c *Content) PostedTo(p Platform) bool {
	return slices.Contains(c.PostedPlatforms, string(p))
}

func (c *Content) FailedOn(p Platform) bool {
	return slices.Contains(c.FailedPlatforms, string(p))
}

// Settled reports whether p needs no further publish attempts.
func (c *Content) Settled(p Platform) bool {
	return c.PostedTo(p) || c.FailedOn(p)
}

// QuotaKind maps the content onto the counter it consumes.
func (c *Content) QuotaKind() ActionKind {
	switch {
	case c.IsNSFW:
		return ActionNSFWPost
	case c.Type == ContentTypeStory:
		return ActionStory
	case c.Type == ContentTypeReel:
		return ActionReel
	case len(c.VideoURLs) > 0:
		return ActionVideoPost
	default:
		return ActionPost
	}
}

// ContentDelivery records one publish attempt of a content item on one account.
type ContentDelivery struct {
	ID             int64     `db:"id" json:"id"`
	ContentID      int64     `db:"content_id" json:"content_id"`
	AccountID      int64     `db:"account_id" json:"account_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id"`
	URL            string    `db:"url" json:"url"`
	Success        bool      `db:"success" json:"success"`
	ErrorMessage   string    `db:"error_message" json:"error_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
