//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"say-hi/domain"
)

type IMessageRepository interface {
	Store(m domain.Message) error
	ListByConversation(chatID uuid.UUID) ([]domain.Message, error)
	MarkSeenForViewer(chatID uuid.UUID, viewerID string, seenAt time.Time) ([]uuid.UUID, error)
	CountUnseenForViewer(chatID uuid.UUID, viewerID string) (int, error)
}

// MessageRepository persists messages in BadgerDB.
// The key is formatted as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the message UUID as a collision
//     disconnector if two messages arrive at the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		m.ConversationID,
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}

func messagePrefix(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

func (r MessageRepository) Store(m domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m), data)
	})
}

// ListByConversation returns the conversation's messages oldest first.
// Ordering comes for free from the padded-timestamp key layout.
func (r MessageRepository) ListByConversation(chatID uuid.UUID) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		return r.scan(txn, chatID, func(_ []byte, m domain.Message) error {
			messages = append(messages, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkSeenForViewer flips every unseen message authored by the other
// participant to seen, all stamped with the same seenAt, inside a single
// read-write transaction. Badger serializes conflicting transactions, so a
// message inserted concurrently lands either in this batch or the next one,
// never in both. Already-seen messages are skipped, which is what keeps the
// transition monotonic; a second call with nothing new returns an empty
// slice and the caller emits nothing.
func (r MessageRepository) MarkSeenForViewer(chatID uuid.UUID, viewerID string, seenAt time.Time) ([]uuid.UUID, error) {
	var seen []uuid.UUID
	err := r.db.Update(func(txn *badger.Txn) error {
		seen = nil // transaction may be retried on conflict
		return r.scan(txn, chatID, func(key []byte, m domain.Message) error {
			if m.Seen || m.SenderID == viewerID {
				return nil
			}
			m.Seen = true
			at := seenAt
			m.SeenAt = &at

			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			seen = append(seen, m.ID)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return seen, nil
}

// CountUnseenForViewer counts messages the viewer has not seen yet.
func (r MessageRepository) CountUnseenForViewer(chatID uuid.UUID, viewerID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		return r.scan(txn, chatID, func(_ []byte, m domain.Message) error {
			if !m.Seen && m.SenderID != viewerID {
				count++
			}
			return nil
		})
	})
	return count, err
}

// scan iterates the conversation's messages in key order and hands each one
// to fn along with a copy of its key.
func (r MessageRepository) scan(txn *badger.Txn, chatID uuid.UUID, fn func(key []byte, m domain.Message) error) error {
	prefix := messagePrefix(chatID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		var m domain.Message
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
		if err != nil {
			return err
		}
		if err := fn(key, m); err != nil {
			return err
		}
	}
	return nil
}
