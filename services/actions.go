package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"say-hi/broker"
)

// Wire payloads for the queue actions. Field names follow the historical
// camelCase convention shared with the clients.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userByIDRequest struct {
	UserID string `json:"userId"`
}

type conversationRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type messagesRequest struct {
	UserID string    `json:"userId"`
	ChatID uuid.UUID `json:"chatId"`
}

type sendMessageRequest struct {
	SenderID string    `json:"senderId"`
	ChatID   uuid.UUID `json:"chatId"`
	MessageContent
}

// AuthActions is the AUTH_QUEUE table: the account lifecycle.
func AuthActions(svc IAuthService) broker.ActionTable {
	return broker.ActionTable{
		"register": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[registerRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed register payload"), nil
			}
			user, err := svc.Register(ctx, req.Name, req.Email, req.Password)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusCreated, "verification code sent", user), nil
		},
		"verify_otp": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[otpRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed otp payload"), nil
			}
			if err := svc.VerifyOTP(ctx, req.Email, req.OTP); err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "account activated", nil), nil
		},
		"resend_otp": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[otpRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed otp payload"), nil
			}
			if err := svc.ResendOTP(ctx, req.Email); err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "verification code sent", nil), nil
		},
		"login": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[loginRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed login payload"), nil
			}
			user, token, err := svc.Login(ctx, req.Email, req.Password)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			reply := broker.OK(http.StatusOK, "logged in", user)
			reply.Token = string(token)
			return reply, nil
		},
		"logout": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[otpRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed logout payload"), nil
			}
			if err := svc.Logout(ctx, req.Email); err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "logged out", nil), nil
		},
	}
}

// UserActions is the USER_QUEUE table: cross-service profile lookups.
func UserActions(svc IAuthService) broker.ActionTable {
	return broker.ActionTable{
		"get_user_by_id": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[userByIDRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed user payload"), nil
			}
			user, err := svc.GetUserByID(req.UserID)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "user found", user), nil
		},
	}
}

// ChatActions is the CHAT_QUEUE table: conversations, delivery, seen sync.
func ChatActions(svc IChatService) broker.ActionTable {
	return broker.ActionTable{
		"create_conversation": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[conversationRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed conversation payload"), nil
			}
			conv, err := svc.CreateConversation(req.SenderID, req.ReceiverID)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "conversation ready", conv), nil
		},
		"get_conversations": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[userByIDRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed user payload"), nil
			}
			views, err := svc.ListConversations(ctx, req.UserID)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "conversations", views), nil
		},
		"get_messages": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[messagesRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed messages payload"), nil
			}
			messages, err := svc.GetMessages(ctx, req.UserID, req.ChatID)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "messages", messages), nil
		},
		"send_message": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[sendMessageRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed message payload"), nil
			}
			msg, err := svc.Deliver(ctx, req.SenderID, req.ChatID, req.MessageContent)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusCreated, "message delivered", msg), nil
		},
		"mark_seen": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[messagesRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed messages payload"), nil
			}
			ids, err := svc.MarkSeenOnOpen(ctx, req.UserID, req.ChatID)
			if err != nil {
				return broker.Fail(statusFor(err), err.Error()), nil
			}
			return broker.OK(http.StatusOK, "seen", ids), nil
		},
	}
}

// MailActions is the MAIL_QUEUE table. All its callers notify without a
// replyTo, so replies built here are normally discarded.
func MailActions(svc *MailService, log *slog.Logger) broker.ActionTable {
	return broker.ActionTable{
		"send_otp": func(ctx context.Context, data json.RawMessage) (broker.Reply, error) {
			req, err := broker.Decode[mailRequest](data)
			if err != nil {
				return broker.Fail(http.StatusBadRequest, "malformed mail payload"), nil
			}
			if err := svc.Send(ctx, req); err != nil {
				log.Error("OTP mail failed", "to", req.To, "error", err)
				return broker.Fail(http.StatusInternalServerError, "mail delivery failed"), nil
			}
			return broker.OK(http.StatusOK, "mail sent", nil), nil
		},
	}
}
