// Package messaging implements job conversations and admin chat.
//
// A sent message is persisted first; pushing it to the receiver and writing
// the message_received notification are best-effort.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/live"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/notify"
	"servicemarket/marketplace-service/internal/store"
)

const (
	previewLen      = 80
	deliveryTimeout = 5 * time.Second
)

// Store is the persistence the messaging service needs.
type Store interface {
	store.MessageStore
	store.JobStore
	store.ApplicationStore
	store.ProfileStore
}

// Service implements messaging. It satisfies live.Messenger.
type Service struct {
	store    Store
	pusher   live.Pusher
	notifier *notify.Writer
}

// NewService returns a Service. pusher and notifier may be nil.
func NewService(st Store, pusher live.Pusher, notifier *notify.Writer) *Service {
	return &Service{store: st, pusher: pusher, notifier: notifier}
}

var _ live.Messenger = (*Service)(nil)

// SendMessage validates, persists and fans out a message.
func (s *Service) SendMessage(ctx context.Context, senderID string, in model.MessageInput) (*model.Message, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" {
		return nil, apperr.Validation(map[string]string{"text": "text is required"})
	}
	if in.MessageType == "" {
		in.MessageType = model.MessageJob
	}

	var (
		receiver string
		err      error
	)
	switch in.MessageType {
	case model.MessageJob:
		receiver, err = s.resolveJobReceiver(ctx, senderID, in)
	case model.MessageAdmin:
		receiver, err = s.resolveAdminReceiver(ctx, senderID, in)
	default:
		return nil, apperr.Validation(map[string]string{"messageType": "must be job_message or admin_message"})
	}
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		SenderID:    senderID,
		ReceiverID:  receiver,
		JobID:       in.JobID,
		MessageType: in.MessageType,
		Text:        in.Text,
	}
	if in.MessageType == model.MessageAdmin {
		msg.JobID = nil
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.deliver(ctx, msg)
	return msg, nil
}

func (s *Service) resolveJobReceiver(ctx context.Context, senderID string, in model.MessageInput) (string, error) {
	if in.JobID == nil || *in.JobID == "" {
		return "", apperr.Validation(map[string]string{"jobId": "jobId is required for job messages"})
	}
	job, err := s.store.GetJob(ctx, *in.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.NotFound("job")
		}
		return "", err
	}

	ok, err := s.isParty(ctx, job, senderID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Forbidden("NOT_A_PARTY", "you are not part of this job's conversation")
	}

	receiver, err := ResolveReceiver(senderID, in, job)
	if err != nil {
		return "", err
	}
	if ok, err := s.isParty(ctx, job, receiver); err != nil {
		return "", err
	} else if !ok {
		return "", apperr.Forbidden("NOT_A_PARTY", "receiver is not part of this job's conversation")
	}
	return receiver, nil
}

// resolveAdminReceiver requires one side of an admin message to be an admin.
func (s *Service) resolveAdminReceiver(ctx context.Context, senderID string, in model.MessageInput) (string, error) {
	receiver, err := ResolveReceiver(senderID, in, nil)
	if err != nil {
		return "", err
	}
	admins, err := s.store.AdminIDs(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(admins, senderID) && !slices.Contains(admins, receiver) {
		return "", apperr.Forbidden("ADMIN_CHAT_ONLY", "admin messages must involve an admin")
	}
	return receiver, nil
}

// isParty reports whether userID is the requester, the assigned provider or
// an applicant of job.
func (s *Service) isParty(ctx context.Context, job *model.Job, userID string) (bool, error) {
	if userID == job.RequesterID || (job.ProviderID != nil && *job.ProviderID == userID) {
		return true, nil
	}
	return s.store.HasApplied(ctx, job.ID, userID)
}

// deliver pushes the message and the receiver's unread count, then writes the
// message_received notification. It outlives the caller's context since the
// message is already stored.
func (s *Service) deliver(ctx context.Context, msg *model.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if s.pusher != nil {
		s.pusher.Push(ctx, msg.ReceiverID, live.Frame{Type: live.TypeMessage, Payload: msg})
		s.pushUnreadCount(ctx, msg.ReceiverID)
	}
	if s.notifier != nil {
		s.notifier.NotifyRecipientOfMessage(ctx, msg.ReceiverID, preview(msg.Text), msg.JobID)
	}
}

func (s *Service) pushUnreadCount(ctx context.Context, userID string) {
	if s.pusher == nil {
		return
	}
	n, err := s.store.CountUnreadMessages(ctx, userID)
	if err != nil {
		slog.Warn("messaging: unread count failed", "userId", userID, "err", err)
		return
	}
	s.pusher.Push(ctx, userID, live.Frame{Type: live.TypeUnreadCount, Payload: live.CountPayload{Count: n}})
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "…"
}

// MarkRead marks one received message read.
func (s *Service) MarkRead(ctx context.Context, userID, messageID string) error {
	err := s.store.MarkMessageRead(ctx, messageID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("message")
	}
	return err
}

// UnreadCount counts the user's unread received messages.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadMessages(ctx, userID)
}

// ListAll returns every message the user sent or received, newest first.
func (s *Service) ListAll(ctx context.Context, userID string) ([]model.Message, error) {
	return s.store.ListUserMessages(ctx, userID)
}

// ListForJob returns a job thread oldest first and marks the caller's
// received messages in it read.
func (s *Service) ListForJob(ctx context.Context, caller auth.Identity, jobID string) ([]model.Message, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("job")
		}
		return nil, err
	}
	if !caller.IsAdmin() {
		ok, err := s.isParty(ctx, job, caller.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("NOT_A_PARTY", "you are not part of this job's conversation")
		}
	}

	marked, err := s.store.MarkJobMessagesRead(ctx, jobID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		s.pushUnreadCount(ctx, caller.UserID)
	}
	return s.store.ListJobMessages(ctx, jobID)
}

// AdminChat returns an admin-chat thread oldest first. Admins must name the
// user whose thread they want; everyone else gets their own.
func (s *Service) AdminChat(ctx context.Context, caller auth.Identity, userID string) ([]model.Message, error) {
	if !caller.IsAdmin() {
		return s.store.ListAdminChat(ctx, caller.UserID)
	}
	if userID == "" {
		return nil, apperr.Validation(map[string]string{"userId": "userId is required"})
	}
	return s.store.ListAdminChat(ctx, userID)
}

// SendAdminChat sends an admin message. A non-admin without a receiver
// writes to the first admin. A non-admin's first admin message also notifies
// every admin that a support conversation was opened.
func (s *Service) SendAdminChat(ctx context.Context, caller auth.Identity, text string, receiverID *string) (*model.Message, error) {
	if (receiverID == nil || *receiverID == "") && !caller.IsAdmin() {
		admins, err := s.store.AdminIDs(ctx)
		if err != nil {
			return nil, err
		}
		if len(admins) == 0 {
			return nil, apperr.NotFound("admin")
		}
		receiverID = &admins[0]
	}

	opening := false
	if !caller.IsAdmin() {
		thread, err := s.store.ListAdminChat(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		opening = len(thread) == 0
	}

	msg, err := s.SendMessage(ctx, caller.UserID, model.MessageInput{
		ReceiverID:  receiverID,
		Text:        text,
		MessageType: model.MessageAdmin,
	})
	if err != nil {
		return nil, err
	}
	if opening && s.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		s.notifier.CreateAdminNotification(nctx, model.NotifyMessageReceived, "New support conversation", preview(msg.Text))
	}
	return msg, nil
}

// ReadAllAdminChat marks every received admin message read.
func (s *Service) ReadAllAdminChat(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAdminChatRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.pushUnreadCount(ctx, userID)
	}
	return n, nil
}

// Conversations groups the user's messages by (job, other party), most
// recent first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	msgs, err := s.store.ListUserMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	type key struct {
		jobID string
		typ   model.MessageType
		other string
	}
	index := make(map[key]int)
	out := make([]model.Conversation, 0)
	for _, m := range msgs {
		other := m.ReceiverID
		if m.ReceiverID == userID {
			other = m.SenderID
		}
		k := key{typ: m.MessageType, other: other}
		if m.JobID != nil {
			k.jobID = *m.JobID
		}

		i, seen := index[k]
		if !seen {
			// msgs is newest first, so the first one seen is the last message.
			i = len(out)
			index[k] = i
			out = append(out, model.Conversation{
				JobID:       m.JobID,
				MessageType: m.MessageType,
				OtherUserID: other,
				LastMessage: m,
			})
		}
		if m.ReceiverID == userID && !m.IsRead {
			out[i].UnreadCount++
		}
	}
	return out, nil
}
