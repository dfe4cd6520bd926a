package notify

import (
	"context"
	"log/slog"
	"time"

	"servicemarket/marketplace-service/internal/model"
)

// Service is the recipient-facing side of notifications.
type Service struct {
	store Store
}

// NewService returns a Service.
func NewService(st Store) *Service {
	return &Service{store: st}
}

// List returns the caller's notifications newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

// UnreadCount counts the caller's unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one of the caller's notifications read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	return s.store.MarkNotificationRead(ctx, id, userID)
}

// MarkAllRead marks every unread notification of the caller read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes one of the caller's notifications.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteNotification(ctx, id, userID)
}

// Cleanup deletes read notifications created more than retention ago.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.store.DeleteReadNotificationsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	slog.Info("notify: retention cleanup", "deleted", n)
	return n, nil
}
