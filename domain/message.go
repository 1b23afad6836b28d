package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Media references an already-uploaded file. Upload mechanics live outside
// this system; only the resulting locator is stored.
type Media struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Message is immutable once created, except for the seen transition which is
// monotonic: false to true exactly once, never back.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"chatId"`
	SenderID       string      `json:"sender"`
	Text           string      `json:"text,omitempty"`
	Image          *Media      `json:"image,omitempty"`
	Type           MessageType `json:"messageType"`
	Seen           bool        `json:"seen"`
	SeenAt         *time.Time  `json:"seenAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Summary is the text used for the conversation's latest-message preview.
func (m Message) Summary() string {
	if m.Type == MessageImage {
		return "\U0001F4F7 Image"
	}
	return m.Text
}
