package models

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFanvue    Platform = "fanvue"
	PlatformYoutube   Platform = "youtube"
)

type PlatformAccount struct {
	ID         int64    `db:"id" json:"id"`
	PersonaID  int64    `db:"persona_id" json:"persona_id"`
	Platform   Platform `db:"platform" json:"platform"`
	ExternalID string   `db:"external_id" json:"external_id"`
	Handle     string   `db:"handle" json:"handle"`
	// Credentials is a sealed blob owned by the platform adapter.
	Credentials     []byte `db:"credentials" json:"-"`
	IsConnected     bool   `db:"is_connected" json:"is_connected"`
	ConnectionError string `db:"connection_error" json:"connection_error"`

	EngagementPaused bool `db:"engagement_paused" json:"engagement_paused"`
	PostingPaused    bool `db:"posting_paused" json:"posting_paused"`

	MaxPostsPerDay      *int `db:"max_posts_per_day" json:"max_posts_per_day"`
	MaxVideoPostsPerDay *int `db:"max_video_posts_per_day" json:"max_video_posts_per_day"`
	MaxStoriesPerDay    *int `db:"max_stories_per_day" json:"max_stories_per_day"`
	MaxReelsPerDay      *int `db:"max_reels_per_day" json:"max_reels_per_day"`

	PostsToday      int       `db:"posts_today" json:"posts_today"`
	VideoPostsToday int       `db:"video_posts_today" json:"video_posts_today"`
	StoriesToday    int       `db:"stories_today" json:"stories_today"`
	ReelsToday      int       `db:"reels_today" json:"reels_today"`
	LastLimitReset  time.Time `db:"last_limit_reset" json:"last_limit_reset"`

	FollowersCount int        `db:"followers_count" json:"followers_count"`
	FollowingCount int        `db:"following_count" json:"following_count"`
	MediaCount     int        `db:"media_count" json:"media_count"`
	LastSyncedAt   *time.Time `db:"last_synced_at" json:"last_synced_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Usable reports whether the scheduler may act on the account at all.
func (a *PlatformAccount) Usable() bool {
	return a.IsConnected && a.ConnectionError == ""
}
