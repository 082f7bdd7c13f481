package models

import "time"

// Engagement is an immutable audit row for one attempted engagement action.
type Engagement struct {
	ID             int64      `db:"id" json:"id"`
	PersonaID      int64      `db:"persona_id" json:"persona_id"`
	AccountID      int64      `db:"account_id" json:"account_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	Kind           ActionKind `db:"action_kind" json:"action_kind"`
	TargetID       string     `db:"target_id" json:"target_id"`
	TargetUserID   string     `db:"target_user_id" json:"target_user_id"`
	TargetURL      string     `db:"target_url" json:"target_url"`
	CommentText    string     `db:"comment_text" json:"comment_text"`
	Success        bool       `db:"success" json:"success"`
	ErrorMessage   string     `db:"error_message" json:"error_message"`
	// ErrorKind is the failure class of an unsuccessful attempt: transient,
	// permanent, auth or internal.
	ErrorKind      string     `db:"error_kind" json:"error_kind"`
	RelevanceScore float64    `db:"relevance_score" json:"relevance_score"`
	Hashtag        string     `db:"hashtag" json:"hashtag"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Failure classes stored in Engagement.ErrorKind.
const (
	EngagementErrorTransient = "transient"
	EngagementErrorPermanent = "permanent"
	EngagementErrorAuth      = "auth"
	EngagementErrorInternal  = "internal"
)
