package models

import "time"

type ConversationStatus string

const (
	ConversationActive  ConversationStatus = "active"
	ConversationPaused  ConversationStatus = "paused"
	ConversationClosed  ConversationStatus = "closed"
	ConversationBlocked ConversationStatus = "blocked"
)

type MessageStatus string

const (
	MessageReceived        MessageStatus = "received"
	MessagePendingResponse MessageStatus = "pending_response"
	MessageResponded       MessageStatus = "responded"
	MessageFailed          MessageStatus = "failed"
	MessageIgnored         MessageStatus = "ignored"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type Conversation struct {
	ID                  int64              `db:"id" json:"id"`
	PersonaID           int64              `db:"persona_id" json:"persona_id"`
	AccountID           int64              `db:"account_id" json:"account_id"`
	Platform            Platform           `db:"platform" json:"platform"`
	ExternalThreadID    string             `db:"external_thread_id" json:"external_thread_id"`
	ParticipantID       string             `db:"participant_id" json:"participant_id"`
	ParticipantHandle   string             `db:"participant_handle" json:"participant_handle"`
	Status              ConversationStatus `db:"status" json:"status"`
	RequiresHumanReview bool               `db:"requires_human_review" json:"requires_human_review"`
	ReviewReason        string             `db:"review_reason" json:"review_reason"`
	LastMessageAt       *time.Time         `db:"last_message_at" json:"last_message_at"`
	LastResponseAt      *time.Time         `db:"last_response_at" json:"last_response_at"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at" json:"updated_at"`
}

type DirectMessage struct {
	ID                int64            `db:"id" json:"id"`
	ConversationID    int64            `db:"conversation_id" json:"conversation_id"`
	Direction         MessageDirection `db:"direction" json:"direction"`
	Body              string           `db:"body" json:"body"`
	Status            MessageStatus    `db:"status" json:"status"`
	ExternalMessageID string           `db:"external_message_id" json:"external_message_id"`
	RetryCount        int              `db:"retry_count" json:"retry_count"`
	ErrorMessage      string           `db:"error_message" json:"error_message"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	RespondedAt       *time.Time       `db:"responded_at" json:"responded_at"`
}
