// Package event defines the realtime events pushed to connected clients.
// Both the immediate and the delayed seen paths emit the same MessagesSeen
// shape so clients reconcile through a single code path.
package event

import (
	"say-hi/domain"

	"github.com/google/uuid"
)

type Event interface {
	Name() string
}

type NewMessage struct {
	Message domain.Message `json:"message"`
}

func (NewMessage) Name() string { return "newMessage" }

type MessagesSeen struct {
	ChatID     uuid.UUID   `json:"chatId"`
	SeenBy     string      `json:"seenBy"`
	MessageIDs []uuid.UUID `json:"messageIds"`
}

func (MessagesSeen) Name() string { return "messagesSeen" }
