package transfer

// InboundMessage is the normalized form of a platform direct message webhook.
type InboundMessage struct {
	Platform          string `json:"platform" validate:"required"`
	AccountExternalID string `json:"account_external_id" validate:"required"`
	ThreadID          string `json:"thread_id" validate:"required"`
	ParticipantID     string `json:"participant_id" validate:"required"`
	ParticipantHandle string `json:"participant_handle"`
	MessageID         string `json:"message_id"`
	Body              string `json:"body" validate:"required"`
	SentAt            int64  `json:"sent_at"`
}

type ReviewRequest struct {
	Reason string `json:"reason"`
}

type PauseRequest struct {
	Posting    *bool `json:"posting"`
	Engagement *bool `json:"engagement"`
}
