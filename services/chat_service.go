package services

import (
	"context"
	goerrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"say-hi/broker"
	"say-hi/contract"
	"say-hi/domain"
	"say-hi/domain/event"
	"say-hi/errors"
	"say-hi/moderation"
	"say-hi/repositories"
)

// MessageContent is what a sender submits: text, an uploaded image, or both.
type MessageContent struct {
	Text  string        `json:"text"`
	Image *domain.Media `json:"image,omitempty"`
}

// ConversationView decorates a conversation with what the listing screen
// needs: the peer's public profile and the viewer's unseen count.
type ConversationView struct {
	domain.Conversation
	Peer        *domain.User `json:"peer,omitempty"`
	UnseenCount int          `json:"unseenCount"`
}

type IChatService interface {
	CreateConversation(senderID, receiverID string) (domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]ConversationView, error)
	GetMessages(ctx context.Context, viewerID string, chatID uuid.UUID) ([]domain.Message, error)
	Deliver(ctx context.Context, senderID string, chatID uuid.UUID, content MessageContent) (domain.Message, error)
	MarkSeenOnOpen(ctx context.Context, viewerID string, chatID uuid.UUID) ([]uuid.UUID, error)
}

// ChatService is the delivery and read-receipt engine. It owns the
// seen-on-arrival decision and every realtime emission; the repositories
// only persist what it decides.
type ChatService struct {
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	presence      contract.IPresence
	emitter       contract.Emitter
	moderator     *moderation.Moderator
	caller        contract.ICaller
	log           *slog.Logger
}

func NewChatService(
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	presence contract.IPresence,
	emitter contract.Emitter,
	moderator *moderation.Moderator,
	caller contract.ICaller,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		emitter:       emitter,
		moderator:     moderator,
		caller:        caller,
		log:           log,
	}
}

// CreateConversation returns the pair's conversation, creating it on first
// contact. The unordered-pair uniqueness lives in the repository.
func (s *ChatService) CreateConversation(senderID, receiverID string) (domain.Conversation, error) {
	conv, created, err := s.conversations.CreateOrGet(senderID, receiverID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		s.log.Info("Conversation created",
			slog.String("chat_id", conv.ID.String()),
			slog.String("sender", senderID),
			slog.String("receiver", receiverID))
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recent first,
// each with the unseen count and, when the user service answers in time,
// the peer's profile. A failed profile lookup degrades to the bare id
// rather than failing the whole listing.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationView, error) {
	conversations, err := s.conversations.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		view := ConversationView{Conversation: conv}

		if count, err := s.messages.CountUnseenForViewer(conv.ID, userID); err == nil {
			view.UnseenCount = count
		} else {
			s.log.Warn("Counting unseen messages failed", "chat_id", conv.ID, "error", err)
		}

		if peerID, ok := conv.OtherParticipant(userID); ok {
			view.Peer = s.fetchPeer(ctx, peerID)
		}
		views = append(views, view)
	}
	return views, nil
}

// fetchPeer asks the user service for a public profile. Best effort only.
func (s *ChatService) fetchPeer(ctx context.Context, peerID string) *domain.User {
	if s.caller == nil {
		return nil
	}
	reply, err := s.caller.Call(ctx, broker.UserQueue, "get_user_by_id",
		map[string]string{"userId": peerID}, 2*time.Second)
	if err != nil || !reply.Success {
		s.log.Warn("Peer profile lookup failed", "peer", peerID, "error", err)
		return nil
	}
	user, err := broker.Decode[domain.User](reply.Data)
	if err != nil {
		return nil
	}
	return &user
}

// GetMessages returns the conversation history oldest first, then runs the
// seen sync for the viewer so opening a conversation and fetching its
// messages are one client operation.
func (s *ChatService) GetMessages(ctx context.Context, viewerID string, chatID uuid.UUID) ([]domain.Message, error) {
	conv, err := s.conversations.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, errors.ErrNotParticipant
	}

	messages, err := s.messages.ListByConversation(chatID)
	if err != nil {
		return nil, err
	}

	if _, err := s.MarkSeenOnOpen(ctx, viewerID, chatID); err != nil {
		s.log.Warn("Seen sync on fetch failed", "chat_id", chatID, "viewer", viewerID, "error", err)
	}
	return messages, nil
}

// Deliver persists a new message and routes its realtime events.
//
// The seen-on-arrival predicate is two-part: the receiver must be online
// AND currently viewing this conversation. Present-but-elsewhere does not
// count as having seen anything.
func (s *ChatService) Deliver(ctx context.Context, senderID string, chatID uuid.UUID, content MessageContent) (domain.Message, error) {
	conv, err := s.conversations.GetByID(chatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conv.HasParticipant(senderID) {
		return domain.Message{}, errors.ErrNotParticipant
	}
	receiverID, _ := conv.OtherParticipant(senderID)

	text := strings.TrimSpace(content.Text)
	if text == "" && content.Image == nil {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if text != "" && s.moderator != nil {
		censored, matched := s.moderator.Censor(text)
		if len(matched) > 0 {
			s.log.Info("Message censored",
				slog.String("chat_id", chatID.String()),
				slog.Int("words", len(matched)))
		}
		text = censored
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: chatID,
		SenderID:       senderID,
		Text:           text,
		Image:          content.Image,
		Type:           domain.MessageText,
		CreatedAt:      now,
	}
	if content.Image != nil {
		msg.Type = domain.MessageImage
	}

	receiverConn, receiverOnline := s.presence.Lookup(receiverID)
	if receiverOnline && s.presence.IsViewing(receiverID, chatID) {
		msg.Seen = true
		seenAt := now
		msg.SeenAt = &seenAt
	}

	if err := s.messages.Store(msg); err != nil {
		return domain.Message{}, err
	}
	if err := s.conversations.Touch(chatID, domain.LatestMessage{Text: msg.Summary(), Sender: senderID}, now); err != nil {
		return domain.Message{}, err
	}

	// Route the new-message event to the conversation's viewers and both
	// personal connections, deduplicated so nobody gets it twice.
	targets := s.presence.ViewerConnections(chatID)
	if receiverOnline {
		targets = append(targets, receiverConn)
	}
	if senderConn, ok := s.presence.Lookup(senderID); ok {
		targets = append(targets, senderConn)
	}
	targets = lo.Uniq(targets)
	if len(targets) > 0 {
		s.emitter.Emit(ctx, targets, event.NewMessage{Message: msg})
	}

	// Seen on arrival: tell the sender right away, with the same event
	// shape the delayed path uses.
	if msg.Seen {
		if senderConn, ok := s.presence.Lookup(senderID); ok {
			s.emitter.Emit(ctx, []string{senderConn}, event.MessagesSeen{
				ChatID:     chatID,
				SeenBy:     receiverID,
				MessageIDs: []uuid.UUID{msg.ID},
			})
		}
	}
	return msg, nil
}

// MarkSeenOnOpen transitions every unseen message from the other
// participant to seen, as one batch with one timestamp, and notifies the
// author once. Nothing to mark means nothing emitted.
func (s *ChatService) MarkSeenOnOpen(ctx context.Context, viewerID string, chatID uuid.UUID) ([]uuid.UUID, error) {
	conv, err := s.conversations.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, errors.ErrNotParticipant
	}

	ids, err := s.messages.MarkSeenForViewer(chatID, viewerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if authorID, ok := conv.OtherParticipant(viewerID); ok {
		if conn, online := s.presence.Lookup(authorID); online {
			s.emitter.Emit(ctx, []string{conn}, event.MessagesSeen{
				ChatID:     chatID,
				SeenBy:     viewerID,
				MessageIDs: ids,
			})
		}
	}
	return ids, nil
}

// statusFor maps domain errors onto the wire status the gateway forwards.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case goerrors.Is(err, errors.ErrNotParticipant):
		return http.StatusForbidden
	case goerrors.Is(err, errors.ErrConversationNotFound), goerrors.Is(err, errors.ErrUserNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, errors.ErrEmptyMessage), goerrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case goerrors.Is(err, errors.ErrUserAlreadyExists), goerrors.Is(err, errors.ErrAlreadyLoggedIn):
		return http.StatusConflict
	case goerrors.Is(err, errors.ErrInvalidCredentials), goerrors.Is(err, errors.ErrInvalidOTP):
		return http.StatusUnauthorized
	case goerrors.Is(err, errors.ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
