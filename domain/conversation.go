package domain

import (
	"time"

	"github.com/google/uuid"
)

// LatestMessage is the denormalized summary shown in conversation lists.
type LatestMessage struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
}

// Conversation is a two-party chat. At most one conversation exists for an
// unordered pair of users; the repository enforces that with a pair index.
type Conversation struct {
	ID            uuid.UUID     `json:"id"`
	Users         [2]string     `json:"users"`
	LatestMessage LatestMessage `json:"latestMessage"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (c Conversation) HasParticipant(userID string) bool {
	return c.Users[0] == userID || c.Users[1] == userID
}

// OtherParticipant returns the peer of userID. The second return value is
// false when userID is not a participant at all.
func (c Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.Users[0]:
		return c.Users[1], true
	case c.Users[1]:
		return c.Users[0], true
	default:
		return "", false
	}
}
