// Package model defines the marketplace domain records shared by the store,
// the services and the transports.
package model

import "time"

// ─── Users ───────────────────────────────────────────────────────────────────

// Role is the account role carried in the caller's token.
type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
	RoleSupplier  Role = "supplier"
	RoleCompany   Role = "company"
	RoleAdmin     Role = "admin"
)

// ProviderType classifies who may take a job, and what kind of provider a
// profile belongs to.
type ProviderType string

const (
	ProviderIndividual ProviderType = "individual"
	ProviderCompany    ProviderType = "company"
	ProviderBoth       ProviderType = "both"
)

// ProviderProfile is the subset of a provider's profile the job core reads.
// ServiceAreas holds the approved cities only; an empty list falls back to
// PrimaryCity (see ApprovedAreas).
type ProviderProfile struct {
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	PrimaryCity   string   `json:"primaryCity"`
	ServiceAreas  []string `json:"serviceAreas"`
	IsCompany     bool     `json:"isCompany"`
	RatingAverage float64  `json:"ratingAverage"`
	CompletedJobs int      `json:"completedJobs"`
}

// ApprovedAreas returns the cities the provider may work in.
func (p ProviderProfile) ApprovedAreas() []string {
	if len(p.ServiceAreas) > 0 {
		return p.ServiceAreas
	}
	if p.PrimaryCity == "" {
		return nil
	}
	return []string{p.PrimaryCity}
}

// Type returns the provider's individual/company classification.
func (p ProviderProfile) Type() ProviderType {
	if p.IsCompany {
		return ProviderCompany
	}
	return ProviderIndividual
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

// JobStatus mirrors the job_status enum in PostgreSQL.
type JobStatus string

const (
	JobOpen             JobStatus = "open"
	JobPendingSelection JobStatus = "pending_selection"
	JobAccepted         JobStatus = "accepted"
	JobEnroute          JobStatus = "enroute"
	JobOnsite           JobStatus = "onsite"
	JobCompleted        JobStatus = "completed"
	JobCancelled        JobStatus = "cancelled"
)

// UrgencyEmergency sorts first under sort=urgent.
const (
	UrgencyNormal    = "normal"
	UrgencyEmergency = "emergency"
)

// Job is a unit of work posted by a requester.
type Job struct {
	ID                  string       `json:"id"`
	RequesterID         string       `json:"requesterId"`
	ProviderID          *string      `json:"providerId"`
	CategoryID          int64        `json:"categoryId"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	City                string       `json:"city"`
	Urgency             string       `json:"urgency"`
	Status              JobStatus    `json:"status"`
	AllowedProviderType ProviderType `json:"allowedProviderType"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// ─── Applications ────────────────────────────────────────────────────────────

// ApplicationStatus mirrors the application_status enum in PostgreSQL.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationSelected ApplicationStatus = "selected"
	ApplicationRejected ApplicationStatus = "rejected"
)

// ProviderSnippet is the public part of a provider profile embedded in
// application listings.
type ProviderSnippet struct {
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	RatingAverage float64 `json:"ratingAverage"`
	CompletedJobs int     `json:"completedJobs"`
}

// Application is a provider's bid to perform a job.
type Application struct {
	ID         string            `json:"id"`
	JobID      string            `json:"jobId"`
	ProviderID string            `json:"providerId"`
	Message    *string           `json:"message"`
	Status     ApplicationStatus `json:"status"`
	Provider   *ProviderSnippet  `json:"provider,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ─── Notifications ───────────────────────────────────────────────────────────

// NotificationType is the closed set of notification kinds. The
// category_request_*, new_report, new_verification and new_migration kinds
// are written by the profile and verification services that share this
// database; they are listed so the notification readers recognise them.
type NotificationType string

const (
	NotifyJobPosted                NotificationType = "job_posted"
	NotifyJobCancelled             NotificationType = "job_cancelled"
	NotifyJobStatusUpdated         NotificationType = "job_status_updated"
	NotifyNewApplication           NotificationType = "new_application"
	NotifyApplicationAccepted      NotificationType = "application_accepted"
	NotifyApplicationRejected      NotificationType = "application_rejected"
	NotifyMessageReceived          NotificationType = "message_received"
	NotifyCategoryRequestApproved  NotificationType = "category_request_approved"
	NotifyCategoryRequestRejected  NotificationType = "category_request_rejected"
	NotifyCategoryRequestSubmitted NotificationType = "category_request_submitted"
	NotifyNewReport                NotificationType = "new_report"
	NotifyNewVerification          NotificationType = "new_verification"
	NotifyNewMigration             NotificationType = "new_migration"
)

// Notification is a durable, recipient-addressed event record.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	JobID       *string          `json:"jobId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"isRead"`
	ReadAt      *time.Time       `json:"readAt"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ─── Messages ────────────────────────────────────────────────────────────────

// MessageType distinguishes job conversations from admin chat.
type MessageType string

const (
	MessageJob   MessageType = "job_message"
	MessageAdmin MessageType = "admin_message"
)

// Message is a chat entry.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"senderId"`
	ReceiverID  string      `json:"receiverId"`
	JobID       *string     `json:"jobId"`
	MessageType MessageType `json:"messageType"`
	Text        string      `json:"text"`
	IsRead      bool        `json:"isRead"`
	ReadAt      *time.Time  `json:"readAt"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Conversation summarises one thread for the conversations list.
type Conversation struct {
	JobID       *string     `json:"jobId"`
	MessageType MessageType `json:"messageType"`
	OtherUserID string      `json:"otherUserId"`
	LastMessage Message     `json:"lastMessage"`
	UnreadCount int         `json:"unreadCount"`
}

// MessageInput is what a sender submits. ReceiverID is optional for job
// messages; MessageType defaults to job_message.
type MessageInput struct {
	JobID       *string     `json:"jobId"`
	ReceiverID  *string     `json:"receiverId"`
	Text        string      `json:"text"`
	MessageType MessageType `json:"messageType"`
}
