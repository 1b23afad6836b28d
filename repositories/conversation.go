//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"say-hi/domain"
	"say-hi/errors"
)

type IConversationRepository interface {
	CreateOrGet(userA, userB string) (domain.Conversation, bool, error)
	GetByID(id uuid.UUID) (domain.Conversation, error)
	Touch(id uuid.UUID, latest domain.LatestMessage, at time.Time) error
	ListForUser(userID string) ([]domain.Conversation, error)
}

// ConversationRepository persists conversations in BadgerDB under three key
// families:
//
//	conv:{id}                the conversation record
//	pair:{min}:{max}         unordered-pair index -> conversation id
//	userconv:{user}:{id}     per-user membership index for listing
//
// The pair index is what enforces "at most one conversation per unordered
// pair": creation checks it inside the same transaction that writes it.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// pairKey orders the two participants so (a,b) and (b,a) map to one key.
func pairKey(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(fmt.Sprintf("pair:%s:%s", a, b))
}

// CreateOrGet returns the existing conversation for the pair, or creates
// one. The second return value reports whether a new record was created.
func (r ConversationRepository) CreateOrGet(userA, userB string) (domain.Conversation, bool, error) {
	var conv domain.Conversation
	created := false

	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(userA, userB))
		if err == nil {
			// Pair already has its conversation; load it.
			return item.Value(func(val []byte) error {
				id, parseErr := uuid.ParseBytes(val)
				if parseErr != nil {
					return parseErr
				}
				conv, err = getConversation(txn, id)
				return err
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		now := time.Now().UTC()
		conv = domain.Conversation{
			ID:        uuid.New(),
			Users:     [2]string{userA, userB},
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true

		if err := putConversation(txn, conv); err != nil {
			return err
		}
		if err := txn.Set(pairKey(userA, userB), []byte(conv.ID.String())); err != nil {
			return err
		}
		for _, user := range conv.Users {
			if err := txn.Set(userConvKey(user, conv.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, created, nil
}

func (r ConversationRepository) GetByID(id uuid.UUID) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

// Touch updates the latest-message summary and the updatedAt marker.
func (r ConversationRepository) Touch(id uuid.UUID, latest domain.LatestMessage, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		conv, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		conv.LatestMessage = latest
		conv.UpdatedAt = at
		return putConversation(txn, conv)
	})
}

// ListForUser returns the user's conversations, most recently updated first.
func (r ConversationRepository) ListForUser(userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("userconv:" + userID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rawID := it.Item().Key()[len(prefix):]
			id, err := uuid.ParseBytes(rawID)
			if err != nil {
				r.log.Warn("Skipping unparsable membership key", "key", string(it.Item().Key()))
				continue
			}
			conv, err := getConversation(txn, id)
			if err != nil {
				return err
			}
			conversations = append(conversations, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func convKey(id uuid.UUID) []byte {
	return []byte("conv:" + id.String())
}

func userConvKey(userID string, id uuid.UUID) []byte {
	return []byte("userconv:" + userID + ":" + id.String())
}

func getConversation(txn *badger.Txn, id uuid.UUID) (domain.Conversation, error) {
	item, err := txn.Get(convKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	})
	return conv, err
}

func putConversation(txn *badger.Txn, conv domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return txn.Set(convKey(conv.ID), data)
}
