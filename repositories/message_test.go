package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"say-hi/domain"
)

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func textMessage(chatID uuid.UUID, sender, text string, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: chatID,
		SenderID:       sender,
		Text:           text,
		Type:           domain.MessageText,
		CreatedAt:      at,
	}
}

func Test_Store_And_List_ChronologicalOrder(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	chatID := newUUID(t)
	at := time.Now().UTC()

	stored := []domain.Message{
		textMessage(chatID, "alice", "first", at),
		textMessage(chatID, "bob", "second", at.Add(time.Minute)),
		textMessage(chatID, "alice", "third", at.Add(2*time.Minute)),
	}
	for _, m := range stored {
		req.NoError(repository.Store(m))
	}
	// A message in another conversation must not leak into the scan.
	req.NoError(repository.Store(textMessage(newUUID(t), "eve", "elsewhere", at)))

	fetched, err := repository.ListByConversation(chatID)
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal("first", fetched[0].Text)
	req.Equal("second", fetched[1].Text)
	req.Equal("third", fetched[2].Text)
}

func Test_MarkSeenForViewer_FlipsOnlyPeerMessages(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	chatID := newUUID(t)
	at := time.Now().UTC()

	fromBob := textMessage(chatID, "bob", "hi alice", at)
	fromAlice := textMessage(chatID, "alice", "hi bob", at.Add(time.Second))
	req.NoError(repository.Store(fromBob))
	req.NoError(repository.Store(fromAlice))

	seenAt := at.Add(time.Minute)
	ids, err := repository.MarkSeenForViewer(chatID, "alice", seenAt)
	req.NoError(err)
	req.Equal([]uuid.UUID{fromBob.ID}, ids)

	messages, err := repository.ListByConversation(chatID)
	req.NoError(err)
	for _, m := range messages {
		if m.ID == fromBob.ID {
			req.True(m.Seen)
			req.NotNil(m.SeenAt)
			req.True(m.SeenAt.Equal(seenAt))
		} else {
			// Alice's own message is untouched.
			req.False(m.Seen)
			req.Nil(m.SeenAt)
		}
	}
}

func Test_MarkSeenForViewer_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	chatID := newUUID(t)

	req.NoError(repository.Store(textMessage(chatID, "bob", "hello", time.Now().UTC())))

	first, err := repository.MarkSeenForViewer(chatID, "alice", time.Now().UTC())
	req.NoError(err)
	req.Len(first, 1)

	// Nothing new to mark: empty result, so no event gets emitted upstream.
	second, err := repository.MarkSeenForViewer(chatID, "alice", time.Now().UTC())
	req.NoError(err)
	req.Empty(second)
}

func Test_SeenTransitionIsMonotonic(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	chatID := newUUID(t)

	m := textMessage(chatID, "bob", "hello", time.Now().UTC())
	req.NoError(repository.Store(m))

	firstSeen := time.Now().UTC()
	_, err := repository.MarkSeenForViewer(chatID, "alice", firstSeen)
	req.NoError(err)

	// A later pass must not rewrite seenAt or revert the flag.
	_, err = repository.MarkSeenForViewer(chatID, "alice", firstSeen.Add(time.Hour))
	req.NoError(err)

	messages, err := repository.ListByConversation(chatID)
	req.NoError(err)
	req.True(messages[0].Seen)
	req.True(messages[0].SeenAt.Equal(firstSeen))
}

func Test_CountUnseenForViewer(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	chatID := newUUID(t)
	at := time.Now().UTC()

	req.NoError(repository.Store(textMessage(chatID, "bob", "one", at)))
	req.NoError(repository.Store(textMessage(chatID, "bob", "two", at.Add(time.Second))))
	req.NoError(repository.Store(textMessage(chatID, "alice", "mine", at.Add(2*time.Second))))

	count, err := repository.CountUnseenForViewer(chatID, "alice")
	req.NoError(err)
	req.Equal(2, count)

	_, err = repository.MarkSeenForViewer(chatID, "alice", at.Add(time.Minute))
	req.NoError(err)

	count, err = repository.CountUnseenForViewer(chatID, "alice")
	req.NoError(err)
	req.Zero(count)
}
