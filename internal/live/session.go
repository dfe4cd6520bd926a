package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/httpx"
	"servicemarket/marketplace-service/internal/model"
)

// Messenger is the messaging service as seen by the frame protocol.
type Messenger interface {
	// SendMessage persists a message and fans it out to its recipient.
	SendMessage(ctx context.Context, senderID string, in model.MessageInput) (*model.Message, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type inbound struct {
	Type    string          `json:"type"`
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type markReadPayload struct {
	MessageID string `json:"messageId"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Session speaks the frame protocol for one connection:
//
//	→ {type:"auth", userId}                registers, replies unread_count
//	→ {type:"message", payload}            persists, replies message_sent
//	→ {type:"mark_read", payload:{messageId}}  replies unread_count
//
// A bad frame yields an error frame; the connection stays open.
type Session struct {
	hub       *Hub
	messenger Messenger
	client    *Client
	// tokenUserID is the user proven by the upgrade request's token. When
	// set, auth frames for any other user are refused.
	tokenUserID string
	userID      string
}

// NewSession binds a client to the hub and messenger.
func NewSession(hub *Hub, messenger Messenger, client *Client, tokenUserID string) *Session {
	return &Session{hub: hub, messenger: messenger, client: client, tokenUserID: tokenUserID}
}

// UserID is the authenticated user, or "" before the auth frame.
func (s *Session) UserID() string { return s.userID }

// Handle processes one inbound frame.
func (s *Session) Handle(ctx context.Context, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		slog.Warn("live: malformed frame", "err", err)
		s.fail("malformed frame")
		return
	}

	if in.Type != TypeAuth && s.userID == "" {
		s.fail("not authenticated")
		return
	}

	switch in.Type {
	case TypeAuth:
		s.handleAuth(ctx, in.UserID)
	case TypeMessage:
		s.handleMessage(ctx, in.Payload)
	case TypeMarkRead:
		s.handleMarkRead(ctx, in.Payload)
	default:
		s.fail("unknown frame type " + in.Type)
	}
}

// Close removes the connection from the registry.
func (s *Session) Close() {
	s.hub.Unregister(s.client)
}

func (s *Session) handleAuth(ctx context.Context, userID string) {
	if userID == "" {
		s.fail("userId is required")
		return
	}
	if s.tokenUserID != "" && userID != s.tokenUserID {
		s.fail("userId does not match token")
		return
	}
	s.userID = userID
	s.hub.Register(userID, s.client)
	s.sendUnreadCount(ctx)
}

func (s *Session) handleMessage(ctx context.Context, payload json.RawMessage) {
	var in model.MessageInput
	if err := json.Unmarshal(payload, &in); err != nil {
		slog.Warn("live: malformed message payload", "userId", s.userID, "err", err)
		s.fail("malformed message payload")
		return
	}
	msg, err := s.messenger.SendMessage(ctx, s.userID, in)
	if err != nil {
		s.failWith(err)
		return
	}
	s.client.enqueue(Frame{Type: TypeMessageSent, Payload: msg})
}

func (s *Session) handleMarkRead(ctx context.Context, payload json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MessageID == "" {
		s.fail("messageId is required")
		return
	}
	if err := s.messenger.MarkRead(ctx, s.userID, p.MessageID); err != nil {
		s.failWith(err)
		return
	}
	s.sendUnreadCount(ctx)
}

func (s *Session) sendUnreadCount(ctx context.Context) {
	n, err := s.messenger.UnreadCount(ctx, s.userID)
	if err != nil {
		slog.Warn("live: unread count failed", "userId", s.userID, "err", err)
		return
	}
	s.client.enqueue(Frame{Type: TypeUnreadCount, Payload: CountPayload{Count: n}})
}

func (s *Session) fail(msg string) {
	s.client.enqueue(Frame{Type: TypeError, Payload: errorPayload{Message: msg}})
}

// failWith reports a messenger error. Errors without a client-facing kind
// are logged and replaced by a generic message.
func (s *Session) failWith(err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		slog.Error("live: frame failed", "userId", s.userID, "err", err)
		s.fail("internal server error")
		return
	}
	p := errorPayload{Message: err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		p.Code = e.Code
	}
	s.client.enqueue(Frame{Type: TypeError, Payload: p})
}
