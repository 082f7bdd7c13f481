package models

import (
	"time"

	"github.com/lib/pq"
)

type Persona struct {
	ID       int64          `db:"id" json:"id"`
	Name     string         `db:"name" json:"name"`
	Bio      string         `db:"bio" json:"bio"`
	Niches   pq.StringArray `db:"niches" json:"niches"`
	Topics   pq.StringArray `db:"topics" json:"topics"`
	Hashtags pq.StringArray `db:"hashtags" json:"hashtags"`
	IsActive bool           `db:"is_active" json:"is_active"`

	// Nil caps fall back to the process-wide defaults.
	MaxPostsPerDay      *int `db:"max_posts_per_day" json:"max_posts_per_day"`
	MaxLikesPerDay      *int `db:"max_likes_per_day" json:"max_likes_per_day"`
	MaxCommentsPerDay   *int `db:"max_comments_per_day" json:"max_comments_per_day"`
	MaxFollowsPerDay    *int `db:"max_follows_per_day" json:"max_follows_per_day"`
	MaxVideoPostsPerDay *int `db:"max_video_posts_per_day" json:"max_video_posts_per_day"`
	MaxStoriesPerDay    *int `db:"max_stories_per_day" json:"max_stories_per_day"`
	MaxReelsPerDay      *int `db:"max_reels_per_day" json:"max_reels_per_day"`
	MaxNSFWPostsPerDay  *int `db:"max_nsfw_posts_per_day" json:"max_nsfw_posts_per_day"`

	PostsToday      int       `db:"posts_today" json:"posts_today"`
	LikesToday      int       `db:"likes_today" json:"likes_today"`
	CommentsToday   int       `db:"comments_today" json:"comments_today"`
	FollowsToday    int       `db:"follows_today" json:"follows_today"`
	VideoPostsToday int       `db:"video_posts_today" json:"video_posts_today"`
	StoriesToday    int       `db:"stories_today" json:"stories_today"`
	ReelsToday      int       `db:"reels_today" json:"reels_today"`
	NSFWPostsToday  int       `db:"nsfw_posts_today" json:"nsfw_posts_today"`
	LastLimitReset  time.Time `db:"last_limit_reset" json:"last_limit_reset"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ActionKind names a quota-governed action.
type ActionKind string

const (
	ActionPost      ActionKind = "post"
	ActionLike      ActionKind = "like"
	ActionComment   ActionKind = "comment"
	ActionFollow    ActionKind = "follow"
	ActionVideoPost ActionKind = "video_post"
	ActionStory     ActionKind = "story"
	ActionReel      ActionKind = "reel"
	ActionNSFWPost  ActionKind = "nsfw_post"
)

// ActionKinds lists every kind in a stable order.
var ActionKinds = []ActionKind{
	ActionPost, ActionLike, ActionComment, ActionFollow,
	ActionVideoPost, ActionStory, ActionReel, ActionNSFWPost,
}

// EngagementKinds are the kinds an engagement strategy may propose.
var EngagementKinds = []ActionKind{ActionLike, ActionComment, ActionFollow}
