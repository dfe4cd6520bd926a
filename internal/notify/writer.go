// Package notify writes durable notifications and pushes them to the
// recipient's live connections.
//
// Writes are best-effort: a failed insert is logged and counted, never
// returned, so it cannot fail the operation that triggered it.
package notify

import (
	"context"
	"log/slog"

	"servicemarket/marketplace-service/internal/eligibility"
	"servicemarket/marketplace-service/internal/live"
	"servicemarket/marketplace-service/internal/metrics"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/store"
)

// Store is the persistence the writer and the read service need.
type Store interface {
	store.NotificationStore
	store.ProfileStore
}

// Writer creates notifications.
type Writer struct {
	store   Store
	pusher  live.Pusher
	metrics *metrics.Collector
}

// NewWriter returns a Writer. pusher may be nil, in which case nothing is
// pushed live.
func NewWriter(st Store, pusher live.Pusher, m *metrics.Collector) *Writer {
	return &Writer{store: st, pusher: pusher, metrics: m}
}

// Notify inserts one notification and pushes it to the recipient. It returns
// nil when the insert failed.
func (w *Writer) Notify(ctx context.Context, recipientID string, typ model.NotificationType, title, message string, jobID *string) *model.Notification {
	n := &model.Notification{
		RecipientID: recipientID,
		JobID:       jobID,
		Type:        typ,
		Title:       title,
		Message:     message,
	}
	if err := w.store.InsertNotification(ctx, n); err != nil {
		slog.Warn("notify: insert failed", "recipientId", recipientID, "type", typ, "err", err)
		w.metrics.NotificationFailed()
		return nil
	}
	w.metrics.NotificationWritten(string(typ))

	if w.pusher != nil {
		w.pusher.Push(ctx, recipientID, live.Frame{Type: live.TypeNotification, Payload: n})
	}
	return n
}

// NotifyProvidersOfNewJob notifies every provider verified for the job's
// category who works in its city and matches its provider type. It returns
// the ids notified.
func (w *Writer) NotifyProvidersOfNewJob(ctx context.Context, job model.Job) []string {
	profiles, err := w.store.ProvidersForCategory(ctx, job.CategoryID)
	if err != nil {
		slog.Warn("notify: providers lookup failed", "jobId", job.ID, "err", err)
		return nil
	}

	var notified []string
	jobID := job.ID
	for _, p := range profiles {
		// ProvidersForCategory only returns providers approved for the category.
		prov := eligibility.FromProfile(p, []int64{job.CategoryID})
		if !prov.CanView(job) {
			continue
		}
		if w.Notify(ctx, p.UserID, model.NotifyJobPosted,
			"New job available",
			"A new job \""+job.Title+"\" was posted in "+job.City,
			&jobID) != nil {
			notified = append(notified, p.UserID)
		}
	}
	slog.Info("notify: new job fan-out", "jobId", job.ID, "providers", len(notified))
	return notified
}

// NotifyRecipientOfMessage tells the receiver a chat message arrived.
func (w *Writer) NotifyRecipientOfMessage(ctx context.Context, recipientID, preview string, jobID *string) {
	w.Notify(ctx, recipientID, model.NotifyMessageReceived, "New message", preview, jobID)
}

// NotifyRecipient sends a job status update.
func (w *Writer) NotifyRecipient(ctx context.Context, recipientID, title, message string, jobID *string) {
	w.Notify(ctx, recipientID, model.NotifyJobStatusUpdated, title, message, jobID)
}

// CreateAdminNotification notifies every admin and returns their ids.
func (w *Writer) CreateAdminNotification(ctx context.Context, typ model.NotificationType, title, message string) []string {
	admins, err := w.store.AdminIDs(ctx)
	if err != nil {
		slog.Warn("notify: admin lookup failed", "err", err)
		return nil
	}
	var notified []string
	for _, id := range admins {
		if w.Notify(ctx, id, typ, title, message, nil) != nil {
			notified = append(notified, id)
		}
	}
	return notified
}
