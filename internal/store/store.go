// Package store defines the persistence contract of the marketplace core.
//
// Two implementations exist: Postgres (pgx, the production store) and
// memstore (in-process maps, used for local runs and tests). Multi-step state
// transitions run inside InTx, which is serializable on both.
package store

import (
	"context"
	"fmt"
	"time"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// JobFilter narrows ListJobs. Empty fields do not filter.
type JobFilter struct {
	RequesterID string
	ProviderID  string
	Cities      []string
	Statuses    []model.JobStatus
	CategoryIDs []int64
}

// JobStore reads and writes jobs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// LockJob reads a job and holds a row lock on it until the enclosing
	// transaction ends.
	LockJob(ctx context.Context, id string) (*model.Job, error)
	CreateJob(ctx context.Context, j *model.Job) error
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, providerID *string) (*model.Job, error)
	DeleteJob(ctx context.Context, id string) error
	// ListJobs returns matching jobs newest first.
	ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error)
	// CountIncompleteJobs counts jobs assigned to the provider that are
	// neither completed nor cancelled.
	CountIncompleteJobs(ctx context.Context, providerID string) (int, error)
}

// ApplicationStore reads and writes job applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, a *model.Application) error
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	// ListApplications returns every application of a job, oldest first,
	// with the provider snippet attached.
	ListApplications(ctx context.Context, jobID string) ([]model.Application, error)
	CountPendingApplications(ctx context.Context, jobID string) (int, error)
	HasApplied(ctx context.Context, jobID, providerID string) (bool, error)
	DeleteApplication(ctx context.Context, id string) error
	// ResolveApplications marks selectedID selected and every other
	// application of the job rejected.
	ResolveApplications(ctx context.Context, jobID, selectedID string) error
	// RejectPendingApplications rejects the job's pending applications and
	// returns them.
	RejectPendingApplications(ctx context.Context, jobID string) ([]model.Application, error)
	// DeleteApplications removes every application of the job and returns them.
	DeleteApplications(ctx context.Context, jobID string) ([]model.Application, error)
}

// ProfileStore reads the provider/company/verification data owned by the
// profile subsystem.
type ProfileStore interface {
	ProviderProfile(ctx context.Context, userID string) (*model.ProviderProfile, error)
	ApprovedCategoryIDs(ctx context.Context, userID string) ([]int64, error)
	// ProvidersForCategory returns providers holding an approved
	// verification for the category.
	ProvidersForCategory(ctx context.Context, categoryID int64) ([]model.ProviderProfile, error)
	AdminIDs(ctx context.Context) ([]string, error)
}

// NotificationStore reads and writes notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *model.Notification) error
	// ListNotifications returns the recipient's notifications newest first.
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) (*model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
	DeleteNotification(ctx context.Context, id, recipientID string) error
	DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error)
}

// MessageStore reads and writes chat messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *model.Message) error
	// ListJobMessages returns a job thread oldest first.
	ListJobMessages(ctx context.Context, jobID string) ([]model.Message, error)
	// ListUserMessages returns every message sent or received by the user,
	// newest first.
	ListUserMessages(ctx context.Context, userID string) ([]model.Message, error)
	// ListAdminChat returns the admin-chat thread of a user oldest first.
	ListAdminChat(ctx context.Context, userID string) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, id, receiverID string) error
	MarkJobMessagesRead(ctx context.Context, jobID, receiverID string) (int, error)
	MarkAdminChatRead(ctx context.Context, receiverID string) (int, error)
	CountUnreadMessages(ctx context.Context, receiverID string) (int, error)
}

// Queries is the full set of operations usable inside or outside a
// transaction.
type Queries interface {
	JobStore
	ApplicationStore
	ProfileStore
	NotificationStore
	MessageStore
}

// Store is a Queries with transactions.
type Store interface {
	Queries
	// InTx runs fn in a serializable transaction. fn may be retried when the
	// backend reports a serialization conflict, so it must not have side
	// effects outside q.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
