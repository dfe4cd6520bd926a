package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/cache"
	"servicemarket/marketplace-service/internal/eligibility"
	"servicemarket/marketplace-service/internal/metrics"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/notify"
	"servicemarket/marketplace-service/internal/store"
)

// MaxPendingApplications caps the pending applications of one job.
const MaxPendingApplications = 4

// sideEffectTimeout bounds the cache and notification work that follows a
// committed write.
const sideEffectTimeout = 5 * time.Second

// Refusal codes returned in apperr.Error.Code.
const (
	CodeIncompleteJobs       = "INCOMPLETE_JOBS_EXIST"
	CodeMaxApplicants        = "MAX_APPLICANTS_REACHED"
	CodeNotAccepting         = "JOB_NOT_ACCEPTING_APPLICATIONS"
	CodeInvalidJobStatus     = "INVALID_JOB_STATUS"
	CodeInvalidTransition    = "INVALID_STATUS_TRANSITION"
	CodeNotWithdrawable      = "APPLICATION_NOT_WITHDRAWABLE"
	CodeApplicationMismatch  = "APPLICATION_JOB_MISMATCH"
	CodeNotJobOwner          = "NOT_JOB_OWNER"
	CodeNotAssignedProvider  = "NOT_ASSIGNED_PROVIDER"
	CodeProviderProfile      = "PROVIDER_PROFILE_REQUIRED"
	CodeStatusNotSettable    = "STATUS_NOT_SETTABLE"
	CodeJobNotDeletable      = "JOB_NOT_DELETABLE"
	CodeJobNotVisible        = "JOB_NOT_VISIBLE"
	CodeApplicationsRestrict = "APPLICATIONS_RESTRICTED"
)

// Service implements the job lifecycle.
type Service struct {
	store      store.Store
	cache      cache.Cache
	notifier   *notify.Writer
	metrics    *metrics.Collector
	listingTTL time.Duration
}

// NewService returns a Service. notifier and m may be nil.
func NewService(st store.Store, c cache.Cache, notifier *notify.Writer, m *metrics.Collector, listingTTL time.Duration) *Service {
	return &Service{store: st, cache: c, notifier: notifier, metrics: m, listingTTL: listingTTL}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func notFound(err error, resource string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

// invalidate drops every listing that may contain job: the requester's, the
// assigned provider's and every provider listing.
func (s *Service) invalidate(ctx context.Context, job *model.Job, extraUsers ...string) {
	tags := []string{cache.ProviderListingsTag, cache.JobTag(job.ID), cache.UserTag(job.RequesterID)}
	if job.ProviderID != nil {
		tags = append(tags, cache.UserTag(*job.ProviderID))
	}
	for _, u := range extraUsers {
		tags = append(tags, cache.UserTag(u))
	}
	s.cache.Invalidate(ctx, tags...)
}

// afterCommit returns the context for work that follows a committed write.
// It outlives the caller's context so a disconnecting client cannot leave
// listings stale or notifications unwritten.
func afterCommit(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *Service) notify(ctx context.Context, recipientID string, typ model.NotificationType, title, message string, jobID *string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, recipientID, typ, title, message, jobID)
}

// providerFor loads the caller's provider profile and approved categories.
// It returns store.ErrNotFound when the caller has no provider profile.
func (s *Service) providerFor(ctx context.Context, userID string) (eligibility.Provider, error) {
	profile, err := s.store.ProviderProfile(ctx, userID)
	if err != nil {
		return eligibility.Provider{}, err
	}
	cats, err := s.store.ApprovedCategoryIDs(ctx, userID)
	if err != nil {
		return eligibility.Provider{}, err
	}
	return eligibility.FromProfile(*profile, cats), nil
}

// ─── Create / read ───────────────────────────────────────────────────────────

// CreateInput is the body of POST /jobs.
type CreateInput struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	City                string             `json:"city"`
	CategoryID          int64              `json:"categoryId"`
	Urgency             string             `json:"urgency"`
	AllowedProviderType model.ProviderType `json:"allowedProviderType"`
}

func (in *CreateInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.City = strings.TrimSpace(in.City)
	if in.Urgency == "" {
		in.Urgency = model.UrgencyNormal
	}
	if in.AllowedProviderType == "" {
		in.AllowedProviderType = model.ProviderBoth
	}

	fields := map[string]string{}
	if in.Title == "" {
		fields["title"] = "title is required"
	}
	if in.City == "" {
		fields["city"] = "city is required"
	}
	if in.CategoryID <= 0 {
		fields["categoryId"] = "categoryId is required"
	}
	if in.Urgency != model.UrgencyNormal && in.Urgency != model.UrgencyEmergency {
		fields["urgency"] = "urgency must be normal or emergency"
	}
	switch in.AllowedProviderType {
	case model.ProviderIndividual, model.ProviderCompany, model.ProviderBoth:
	default:
		fields["allowedProviderType"] = "allowedProviderType must be individual, company or both"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// CreateJob posts a new open job and tells eligible providers about it.
func (s *Service) CreateJob(ctx context.Context, caller auth.Identity, in CreateInput) (*model.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	job := &model.Job{
		RequesterID:         caller.UserID,
		CategoryID:          in.CategoryID,
		Title:               in.Title,
		Description:         in.Description,
		City:                in.City,
		Urgency:             in.Urgency,
		Status:              model.JobOpen,
		AllowedProviderType: in.AllowedProviderType,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	ctx, cancel := afterCommit(ctx)
	defer cancel()
	s.invalidate(ctx, job)
	if s.notifier != nil {
		s.notifier.NotifyProvidersOfNewJob(ctx, *job)
	}
	return job, nil
}

// GetJob returns a job visible to the caller: admins, its requester, its
// assigned provider, its applicants and providers eligible for it.
func (s *Service) GetJob(ctx context.Context, caller auth.Identity, id string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, notFound(err, "job")
	}
	if caller.IsAdmin() || job.RequesterID == caller.UserID ||
		(job.ProviderID != nil && *job.ProviderID == caller.UserID) {
		return job, nil
	}

	applied, err := s.store.HasApplied(ctx, job.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if applied {
		return job, nil
	}

	prov, err := s.providerFor(ctx, caller.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err == nil && AcceptsApplications(job.Status) && prov.CanView(*job) {
		return job, nil
	}
	return nil, apperr.Forbidden(CodeJobNotVisible, "you cannot view this job")
}

// ─── Apply ───────────────────────────────────────────────────────────────────

// Apply creates a pending application for the caller. The first pending
// application moves an open job to pending_selection.
func (s *Service) Apply(ctx context.Context, caller auth.Identity, jobID string, message *string) (*model.Application, error) {
	app, job, err := s.apply(ctx, caller.UserID, jobID, message)
	if err != nil {
		s.metrics.ApplicationRefused(apperr.CodeOf(err))
		return nil, err
	}
	s.metrics.ApplicationCreated()

	ctx, cancel := afterCommit(ctx)
	defer cancel()
	s.invalidate(ctx, job)
	s.notify(ctx, job.RequesterID, model.NotifyNewApplication,
		"New application", "A provider applied to \""+job.Title+"\"", &job.ID)
	return app, nil
}

func (s *Service) apply(ctx context.Context, providerID, jobID string, message *string) (*model.Application, *model.Job, error) {
	prov, err := s.providerFor(ctx, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.Forbidden(CodeProviderProfile, "a provider profile is required to apply")
		}
		return nil, nil, err
	}

	var (
		app *model.Application
		job *model.Job
	)
	err = s.store.InTx(ctx, func(q store.Queries) error {
		locked, err := q.LockJob(ctx, jobID)
		if err != nil {
			return notFound(err, "job")
		}

		incomplete, err := q.CountIncompleteJobs(ctx, providerID)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return apperr.InvalidState(CodeIncompleteJobs, "complete your current jobs before applying to new ones")
		}
		if err := prov.Check(*locked); err != nil {
			return err
		}

		if !AcceptsApplications(locked.Status) {
			return apperr.InvalidState(CodeNotAccepting, "this job is no longer accepting applications")
		}

		applied, err := q.HasApplied(ctx, jobID, providerID)
		if err != nil {
			return err
		}
		if applied {
			return apperr.AlreadyApplied("you have already applied to this job")
		}

		pending, err := q.CountPendingApplications(ctx, jobID)
		if err != nil {
			return err
		}
		if pending >= MaxPendingApplications {
			return apperr.Capacity(CodeMaxApplicants, "maximum applicants reached")
		}

		app = &model.Application{
			JobID:      jobID,
			ProviderID: providerID,
			Message:    message,
			Status:     model.ApplicationPending,
		}
		if err := q.CreateApplication(ctx, app); err != nil {
			return err
		}

		if pending == 0 && locked.Status == model.JobOpen {
			if locked, err = q.UpdateJobStatus(ctx, jobID, model.JobPendingSelection, nil); err != nil {
				return err
			}
		}
		job = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return app, job, nil
}

// ApplicationStatus is the body of GET /jobs/{id}/application-status.
type ApplicationStatus struct {
	HasApplied       bool `json:"hasApplied"`
	ApplicationCount int  `json:"applicationCount"`
	MaxApplications  int  `json:"maxApplications"`
	CanApply         bool `json:"canApply"`
}

// ApplicationStatusFor reports whether the caller has applied to the job and
// whether applying now would be accepted.
func (s *Service) ApplicationStatusFor(ctx context.Context, caller auth.Identity, jobID string) (*ApplicationStatus, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	applied, err := s.store.HasApplied(ctx, jobID, caller.UserID)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountPendingApplications(ctx, jobID)
	if err != nil {
		return nil, err
	}

	st := &ApplicationStatus{
		HasApplied:       applied,
		ApplicationCount: count,
		MaxApplications:  MaxPendingApplications,
	}
	if applied || count >= MaxPendingApplications || !AcceptsApplications(job.Status) {
		return st, nil
	}

	incomplete, err := s.store.CountIncompleteJobs(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	prov, err := s.providerFor(ctx, caller.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return st, nil
	case err != nil:
		return nil, err
	}
	st.CanApply = incomplete == 0 && prov.CanView(*job)
	return st, nil
}

// Applications lists a job's applications oldest first. Only the job's
// requester and admins may see them.
func (s *Service) Applications(ctx context.Context, caller auth.Identity, jobID string) ([]model.Application, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	if !caller.IsAdmin() && job.RequesterID != caller.UserID {
		return nil, apperr.Forbidden(CodeApplicationsRestrict, "only the job's requester can view its applications")
	}
	return s.store.ListApplications(ctx, jobID)
}

// ─── Select / withdraw ───────────────────────────────────────────────────────

// SelectProvider accepts one application and rejects every other one of the
// same job in a single transaction. jobID may be empty.
func (s *Service) SelectProvider(ctx context.Context, caller auth.Identity, jobID, applicationID string) (*model.Job, error) {
	if applicationID == "" {
		return nil, apperr.Validation(map[string]string{"applicationId": "applicationId is required"})
	}

	var (
		job    *model.Job
		chosen *model.Application
		others []model.Application
	)
	err := s.store.InTx(ctx, func(q store.Queries) error {
		others = nil

		app, err := q.GetApplication(ctx, applicationID)
		if err != nil {
			return notFound(err, "application")
		}
		if jobID != "" && app.JobID != jobID {
			return apperr.InvalidState(CodeApplicationMismatch, "application does not belong to this job")
		}

		locked, err := q.LockJob(ctx, app.JobID)
		if err != nil {
			return notFound(err, "job")
		}
		if locked.RequesterID != caller.UserID {
			return apperr.Forbidden(CodeNotJobOwner, "only the job's requester can select a provider")
		}
		if locked.Status != model.JobPendingSelection {
			return apperr.InvalidState(CodeInvalidJobStatus, "job is not awaiting provider selection")
		}

		all, err := q.ListApplications(ctx, app.JobID)
		if err != nil {
			return err
		}
		for _, a := range all {
			if a.ID != app.ID {
				others = append(others, a)
			}
		}

		if err := q.ResolveApplications(ctx, app.JobID, app.ID); err != nil {
			return err
		}
		providerID := app.ProviderID
		job, err = q.UpdateJobStatus(ctx, app.JobID, model.JobAccepted, &providerID)
		chosen = app
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ProviderSelected()

	ctx, cancel := afterCommit(ctx)
	defer cancel()
	s.invalidate(ctx, job, applicantIDs(others)...)
	s.notify(ctx, chosen.ProviderID, model.NotifyApplicationAccepted,
		"Application accepted", "You were selected for \""+job.Title+"\"", &job.ID)
	for _, a := range others {
		s.notify(ctx, a.ProviderID, model.NotifyApplicationRejected,
			"Application not selected", "Another provider was selected for \""+job.Title+"\"", &job.ID)
	}
	return job, nil
}

// Withdraw deletes the caller's pending application. Withdrawing the last
// pending application reopens the job.
func (s *Service) Withdraw(ctx context.Context, caller auth.Identity, applicationID string) error {
	var job *model.Job
	err := s.store.InTx(ctx, func(q store.Queries) error {
		app, err := q.GetApplication(ctx, applicationID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if app == nil || app.ProviderID != caller.UserID || app.Status != model.ApplicationPending {
			return apperr.InvalidState(CodeNotWithdrawable, "application not found or can no longer be withdrawn")
		}

		locked, err := q.LockJob(ctx, app.JobID)
		if err != nil {
			return notFound(err, "job")
		}
		if err := q.DeleteApplication(ctx, app.ID); err != nil {
			return err
		}

		pending, err := q.CountPendingApplications(ctx, app.JobID)
		if err != nil {
			return err
		}
		if pending == 0 && locked.Status == model.JobPendingSelection {
			if locked, err = q.UpdateJobStatus(ctx, app.JobID, model.JobOpen, nil); err != nil {
				return err
			}
		}
		job = locked
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.ApplicationWithdrawn()

	ctx, cancel := afterCommit(ctx)
	defer cancel()
	s.invalidate(ctx, job, caller.UserID)
	return nil
}

func applicantIDs(apps []model.Application) []string {
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ProviderID)
	}
	return ids
}

// ─── Status / delete ─────────────────────────────────────────────────────────

// UpdateStatus moves a job along its status graph. The assigned provider
// reports progress (enroute, onsite, completed); the requester or an admin
// cancels. Cancelling clears the provider and rejects pending applications.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Identity, jobID, status string) (*model.Job, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, apperr.Validation(map[string]string{"status": err.Error()})
	}
	if to != model.JobCancelled && !IsProgress(to) {
		return nil, apperr.InvalidState(CodeStatusNotSettable, "status "+string(to)+" cannot be set directly")
	}

	var (
		before   model.Job
		job      *model.Job
		rejected []model.Application
	)
	err = s.store.InTx(ctx, func(q store.Queries) error {
		rejected = nil

		locked, err := q.LockJob(ctx, jobID)
		if err != nil {
			return notFound(err, "job")
		}
		before = *locked

		if to == model.JobCancelled {
			if !caller.IsAdmin() && locked.RequesterID != caller.UserID {
				return apperr.Forbidden(CodeNotJobOwner, "only the job's requester can cancel it")
			}
		} else if locked.ProviderID == nil || *locked.ProviderID != caller.UserID {
			return apperr.Forbidden(CodeNotAssignedProvider, "only the assigned provider can update progress")
		}

		if !IsTransitionAllowed(locked.Status, to) {
			return apperr.InvalidState(CodeInvalidTransition,
				"transition "+string(locked.Status)+" → "+string(to)+" is not allowed")
		}

		providerID := locked.ProviderID
		if to == model.JobCancelled {
			providerID = nil
			if rejected, err = q.RejectPendingApplications(ctx, jobID); err != nil {
				return err
			}
		}
		job, err = q.UpdateJobStatus(ctx, jobID, to, providerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := afterCommit(ctx)
	defer cancel()

	extra := applicantIDs(rejected)
	if before.ProviderID != nil {
		extra = append(extra, *before.ProviderID)
	}
	s.invalidate(ctx, job, extra...)

	if to == model.JobCancelled {
		msg := "The job \"" + job.Title + "\" was cancelled"
		if before.ProviderID != nil {
			s.notify(ctx, *before.ProviderID, model.NotifyJobCancelled, "Job cancelled", msg, &job.ID)
		}
		for _, a := range rejected {
			s.notify(ctx, a.ProviderID, model.NotifyJobCancelled, "Job cancelled", msg, &job.ID)
		}
	} else if s.notifier != nil {
		s.notifier.NotifyRecipient(ctx, job.RequesterID, "Job update",
			"Your job \""+job.Title+"\" is now "+string(to), &job.ID)
	}
	return job, nil
}

// DeleteJob removes a job that has no provider yet, together with its
// applications. Applicants are told the job was cancelled.
func (s *Service) DeleteJob(ctx context.Context, caller auth.Identity, jobID string) error {
	var (
		job  *model.Job
		apps []model.Application
	)
	err := s.store.InTx(ctx, func(q store.Queries) error {
		locked, err := q.LockJob(ctx, jobID)
		if err != nil {
			return notFound(err, "job")
		}
		if !caller.IsAdmin() && locked.RequesterID != caller.UserID {
			return apperr.Forbidden(CodeNotJobOwner, "only the job's requester can delete it")
		}
		if !AcceptsApplications(locked.Status) {
			return apperr.InvalidState(CodeJobNotDeletable, "only open jobs can be deleted")
		}
		if apps, err = q.DeleteApplications(ctx, jobID); err != nil {
			return err
		}
		job = locked
		return q.DeleteJob(ctx, jobID)
	})
	if err != nil {
		return err
	}

	ctx, cancel := afterCommit(ctx)
	defer cancel()
	s.invalidate(ctx, job, applicantIDs(apps)...)
	for _, a := range apps {
		s.notify(ctx, a.ProviderID, model.NotifyJobCancelled,
			"Job removed", "The job \""+job.Title+"\" was removed by its requester", nil)
	}
	slog.Info("jobs: deleted", "jobId", jobID, "applications", len(apps))
	return nil
}
