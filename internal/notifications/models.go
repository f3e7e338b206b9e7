package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery route to a player.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Status tracks one delivery attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is the delivery log entry for one message on one channel.
type Notification struct {
	ID           uuid.UUID              `json:"id"`
	PlayerID     uuid.UUID              `json:"player_id"`
	Type         string                 `json:"type"`
	Channel      Channel                `json:"channel"`
	Title        string                 `json:"title"`
	Body         string                 `json:"body"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Status       Status                 `json:"status"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	SentAt       *time.Time             `json:"sent_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Message is what a player should be told, independent of channel.
// Urgent messages also go out by SMS.
type Message struct {
	Type    string
	Subject string
	Body    string
	Details map[string]interface{}
	Urgent  bool
}
