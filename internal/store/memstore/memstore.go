// Package memstore is an in-process implementation of store.Store used for
// local runs (serve --in-memory) and tests.
//
// A failed transaction restores the job and application rows it wrote.
// Notifications and messages are never rolled back.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/store"
)

// Store holds every table in maps.
type Store struct {
	txMu sync.Mutex

	mu            sync.RWMutex
	seq           int64
	order         map[string]int64
	jobs          map[string]model.Job
	apps          map[string]model.Application
	notifications map[string]model.Notification
	messages      map[string]model.Message
	profiles      map[string]model.ProviderProfile
	names         map[string]string
	categories    map[string]map[int64]bool
	admins        []string

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		order:         make(map[string]int64),
		jobs:          make(map[string]model.Job),
		apps:          make(map[string]model.Application),
		notifications: make(map[string]model.Notification),
		messages:      make(map[string]model.Message),
		profiles:      make(map[string]model.ProviderProfile),
		names:         make(map[string]string),
		categories:    make(map[string]map[int64]bool),
		now:           time.Now,
	}
}

var _ store.Store = (*Store)(nil)

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ─── Seeding ─────────────────────────────────────────────────────────────────

// PutProvider stores a provider profile.
func (s *Store) PutProvider(p model.ProviderProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	if p.Name != "" {
		s.names[p.UserID] = p.Name
	}
}

// ApproveCategory records an approved category verification.
func (s *Store) ApproveCategory(providerID string, categoryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categories[providerID] == nil {
		s.categories[providerID] = make(map[int64]bool)
	}
	s.categories[providerID][categoryID] = true
}

// AddAdmin registers an admin user id.
func (s *Store) AddAdmin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = append(s.admins, id)
}

// ─── Transactions ────────────────────────────────────────────────────────────

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// InTx serializes transactions. When fn fails, the job and application rows
// fn wrote are put back; writes made outside the transaction are kept.
func (s *Store) InTx(_ context.Context, fn func(q store.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txQueries{
		Store: s,
		jobs:  make(map[string]*model.Job),
		apps:  make(map[string]*model.Application),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txQueries records the prior state of every job and application row it
// writes. A nil entry means the row did not exist.
type txQueries struct {
	*Store
	jobs map[string]*model.Job
	apps map[string]*model.Application
}

func (t *txQueries) saveJob(id string) {
	if _, done := t.jobs[id]; done {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if j, ok := t.Store.jobs[id]; ok {
		t.jobs[id] = &j
	} else {
		t.jobs[id] = nil
	}
}

func (t *txQueries) saveApp(id string) {
	if _, done := t.apps[id]; done {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.Store.apps[id]; ok {
		t.apps[id] = &a
	} else {
		t.apps[id] = nil
	}
}

func (t *txQueries) saveJobApps(jobID string) {
	t.mu.RLock()
	ids := make([]string, 0)
	for id, a := range t.Store.apps {
		if a.JobID == jobID {
			ids = append(ids, id)
		}
	}
	t.mu.RUnlock()
	for _, id := range ids {
		t.saveApp(id)
	}
}

func (t *txQueries) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, j := range t.jobs {
		if j == nil {
			delete(t.Store.jobs, id)
		} else {
			t.Store.jobs[id] = *j
		}
	}
	for id, a := range t.apps {
		if a == nil {
			delete(t.Store.apps, id)
		} else {
			t.Store.apps[id] = *a
		}
	}
}

func (t *txQueries) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	t.saveJob(j.ID)
	return t.Store.CreateJob(ctx, j)
}

func (t *txQueries) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, providerID *string) (*model.Job, error) {
	t.saveJob(id)
	return t.Store.UpdateJobStatus(ctx, id, status, providerID)
}

func (t *txQueries) DeleteJob(ctx context.Context, id string) error {
	t.saveJob(id)
	return t.Store.DeleteJob(ctx, id)
}

func (t *txQueries) CreateApplication(ctx context.Context, a *model.Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	t.saveApp(a.ID)
	return t.Store.CreateApplication(ctx, a)
}

func (t *txQueries) DeleteApplication(ctx context.Context, id string) error {
	t.saveApp(id)
	return t.Store.DeleteApplication(ctx, id)
}

func (t *txQueries) ResolveApplications(ctx context.Context, jobID, selectedID string) error {
	t.saveJobApps(jobID)
	return t.Store.ResolveApplications(ctx, jobID, selectedID)
}

func (t *txQueries) RejectPendingApplications(ctx context.Context, jobID string) ([]model.Application, error) {
	t.saveJobApps(jobID)
	return t.Store.RejectPendingApplications(ctx, jobID)
}

func (t *txQueries) DeleteApplications(ctx context.Context, jobID string) ([]model.Application, error) {
	t.saveJobApps(jobID)
	return t.Store.DeleteApplications(ctx, jobID)
}

// stamp assigns an insertion sequence used to break timestamp ties.
func (s *Store) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

func (s *Store) before(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return s.order[aID] < s.order[bID]
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

func (s *Store) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

// LockJob is GetJob; InTx already serializes.
func (s *Store) LockJob(ctx context.Context, id string) (*model.Job, error) {
	return s.GetJob(ctx, id)
}

func (s *Store) CreateJob(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now
	s.jobs[j.ID] = *j
	s.stamp(j.ID)
	return nil
}

func (s *Store) UpdateJobStatus(_ context.Context, id string, status model.JobStatus, providerID *string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	j.Status = status
	j.ProviderID = providerID
	j.UpdatedAt = s.now()
	s.jobs[id] = j
	return &j, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) ListJobs(_ context.Context, f store.JobFilter) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0)
	for _, j := range s.jobs {
		if f.RequesterID != "" && j.RequesterID != f.RequesterID {
			continue
		}
		if f.ProviderID != "" && (j.ProviderID == nil || *j.ProviderID != f.ProviderID) {
			continue
		}
		if len(f.Cities) > 0 && !slices.Contains(f.Cities, j.City) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, j.Status) {
			continue
		}
		if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, j.CategoryID) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool {
		return s.before(out[b].ID, out[b].CreatedAt, out[a].ID, out[a].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountIncompleteJobs(_ context.Context, providerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, j := range s.jobs {
		if j.ProviderID == nil || *j.ProviderID != providerID {
			continue
		}
		if j.Status != model.JobCompleted && j.Status != model.JobCancelled {
			n++
		}
	}
	return n, nil
}

// ─── Applications ────────────────────────────────────────────────────────────

func (s *Store) CreateApplication(_ context.Context, a *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.apps[a.ID] = *a
	s.stamp(a.ID)
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (*model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

// jobApplications returns the job's applications oldest first. Callers hold mu.
func (s *Store) jobApplications(jobID string) []model.Application {
	out := make([]model.Application, 0)
	for _, a := range s.apps {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.before(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListApplications(_ context.Context, jobID string) ([]model.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := s.jobApplications(jobID)
	for i := range apps {
		p := s.profiles[apps[i].ProviderID]
		apps[i].Provider = &model.ProviderSnippet{
			UserID:        apps[i].ProviderID,
			Name:          s.names[apps[i].ProviderID],
			RatingAverage: p.RatingAverage,
			CompletedJobs: p.CompletedJobs,
		}
	}
	return apps, nil
}

func (s *Store) CountPendingApplications(_ context.Context, jobID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.apps {
		if a.JobID == jobID && a.Status == model.ApplicationPending {
			n++
		}
	}
	return n, nil
}

func (s *Store) HasApplied(_ context.Context, jobID, providerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.apps {
		if a.JobID == jobID && a.ProviderID == providerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteApplication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *Store) ResolveApplications(_ context.Context, jobID, selectedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, a := range s.apps {
		if a.JobID != jobID {
			continue
		}
		if id == selectedID {
			a.Status = model.ApplicationSelected
		} else {
			a.Status = model.ApplicationRejected
		}
		a.UpdatedAt = now
		s.apps[id] = a
	}
	return nil
}

func (s *Store) RejectPendingApplications(_ context.Context, jobID string) ([]model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]model.Application, 0)
	for _, a := range s.jobApplications(jobID) {
		if a.Status != model.ApplicationPending {
			continue
		}
		a.Status = model.ApplicationRejected
		a.UpdatedAt = now
		s.apps[a.ID] = a
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) DeleteApplications(_ context.Context, jobID string) ([]model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.jobApplications(jobID)
	for _, a := range out {
		delete(s.apps, a.ID)
	}
	return out, nil
}

// ─── Profiles ────────────────────────────────────────────────────────────────

func (s *Store) ProviderProfile(_ context.Context, userID string) (*model.ProviderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ApprovedCategoryIDs(_ context.Context, userID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.categories[userID]))
	for id, ok := range s.categories[userID] {
		if ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) ProvidersForCategory(_ context.Context, categoryID int64) ([]model.ProviderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProviderProfile, 0)
	for id, cats := range s.categories {
		if !cats[categoryID] {
			continue
		}
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) AdminIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.admins), nil
}

// ─── Notifications ───────────────────────────────────────────────────────────

func (s *Store) InsertNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now()
	s.notifications[n.ID] = *n
	s.stamp(n.ID)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.before(out[j].ID, out[j].CreatedAt, out[i].ID, out[i].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, recipientID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, x := range s.notifications {
		if x.RecipientID == recipientID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, recipientID string) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return nil, store.ErrNotFound
	}
	if !n.IsRead {
		now := s.now()
		n.IsRead, n.ReadAt = true, &now
		s.notifications[id] = n
	}
	return &n, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for id, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &now
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteNotification(_ context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return store.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) DeleteReadNotificationsBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(s.notifications, id)
			count++
		}
	}
	return count, nil
}

// ─── Messages ────────────────────────────────────────────────────────────────

func (s *Store) InsertMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = s.now()
	s.messages[m.ID] = *m
	s.stamp(m.ID)
	return nil
}

// collectMessages filters messages and sorts them. Callers hold mu.
func (s *Store) collectMessages(keep func(model.Message) bool, newestFirst bool) []model.Message {
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return s.before(out[j].ID, out[j].CreatedAt, out[i].ID, out[i].CreatedAt)
		}
		return s.before(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListJobMessages(_ context.Context, jobID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectMessages(func(m model.Message) bool {
		return m.MessageType == model.MessageJob && m.JobID != nil && *m.JobID == jobID
	}, false), nil
}

func (s *Store) ListUserMessages(_ context.Context, userID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectMessages(func(m model.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	}, true), nil
}

func (s *Store) ListAdminChat(_ context.Context, userID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectMessages(func(m model.Message) bool {
		return m.MessageType == model.MessageAdmin && (m.SenderID == userID || m.ReceiverID == userID)
	}, false), nil
}

func (s *Store) markRead(keep func(model.Message) bool) int {
	now := s.now()
	count := 0
	for id, m := range s.messages {
		if !m.IsRead && keep(m) {
			m.IsRead, m.ReadAt = true, &now
			s.messages[id] = m
			count++
		}
	}
	return count
}

func (s *Store) MarkMessageRead(_ context.Context, id, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.ReceiverID != receiverID {
		return store.ErrNotFound
	}
	s.markRead(func(x model.Message) bool { return x.ID == id })
	return nil
}

func (s *Store) MarkJobMessagesRead(_ context.Context, jobID, receiverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRead(func(m model.Message) bool {
		return m.ReceiverID == receiverID && m.JobID != nil && *m.JobID == jobID
	}), nil
}

func (s *Store) MarkAdminChatRead(_ context.Context, receiverID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRead(func(m model.Message) bool {
		return m.ReceiverID == receiverID && m.MessageType == model.MessageAdmin
	}), nil
}

func (s *Store) CountUnreadMessages(_ context.Context, receiverID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			n++
		}
	}
	return n, nil
}
