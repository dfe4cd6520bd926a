package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/auth"
	"servicemarket/marketplace-service/internal/cache"
	"servicemarket/marketplace-service/internal/model"
	"servicemarket/marketplace-service/internal/store"
)

// Sort orders accepted by ListJobs.
const (
	SortUrgent = "urgent"
	SortRecent = "recent"
)

// ListQuery holds the GET /jobs query parameters.
type ListQuery struct {
	Category string
	Status   string
	Sort     string
}

func (q ListQuery) cacheKey(userID string) string {
	return "jobs:" + strings.Join([]string{userID, q.Category, q.Status, q.Sort}, ":")
}

type listFilter struct {
	categoryID int64
	statuses   []model.JobStatus
}

func (q ListQuery) parse() (listFilter, error) {
	var f listFilter
	fields := map[string]string{}

	if q.Category != "" {
		id, err := strconv.ParseInt(q.Category, 10, 64)
		if err != nil || id <= 0 {
			fields["category"] = "category must be a positive integer"
		}
		f.categoryID = id
	}

	switch q.Status {
	case "":
	case "open", "browsing":
		f.statuses = []model.JobStatus{model.JobOpen, model.JobPendingSelection}
	default:
		st, err := ParseStatus(q.Status)
		if err != nil {
			fields["status"] = err.Error()
		}
		f.statuses = []model.JobStatus{st}
	}

	switch q.Sort {
	case "", SortUrgent, SortRecent:
	default:
		fields["sort"] = "sort must be urgent or recent"
	}

	if len(fields) > 0 {
		return f, apperr.Validation(fields)
	}
	return f, nil
}

func (f listFilter) keep(j model.Job) bool {
	if f.categoryID != 0 && j.CategoryID != f.categoryID {
		return false
	}
	if len(f.statuses) > 0 && !slices.Contains(f.statuses, j.Status) {
		return false
	}
	return true
}

// ListJobs returns the jobs visible to the caller.
//
//   - admins see every job;
//   - providers see open jobs they are eligible for plus jobs assigned to them;
//   - everyone else sees the jobs they posted.
//
// Results are cached per (caller, category, status, sort) and tagged so that
// any job state change drops them.
func (s *Service) ListJobs(ctx context.Context, caller auth.Identity, q ListQuery) ([]model.Job, error) {
	f, err := q.parse()
	if err != nil {
		return nil, err
	}

	key := q.cacheKey(caller.UserID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var cached []model.Job
		if err := json.Unmarshal(data, &cached); err == nil {
			s.metrics.CacheHit()
			return cached, nil
		}
		slog.Warn("jobs: bad cached listing", "key", key)
	}
	s.metrics.CacheMiss()

	jobs, tags, err := s.compose(ctx, caller)
	if err != nil {
		return nil, err
	}

	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.keep(j) {
			out = append(out, j)
			tags = append(tags, cache.JobTag(j.ID))
		}
	}
	sortJobs(out, q.Sort)

	if data, err := json.Marshal(out); err == nil {
		s.cache.Set(ctx, key, data, s.listingTTL, tags...)
	}
	return out, nil
}

// compose fetches the caller's job set before query filters and returns the
// cache tags it depends on.
func (s *Service) compose(ctx context.Context, caller auth.Identity) ([]model.Job, []string, error) {
	userTag := cache.UserTag(caller.UserID)

	if caller.IsAdmin() {
		all, err := s.store.ListJobs(ctx, store.JobFilter{})
		return all, []string{userTag, cache.ProviderListingsTag}, err
	}

	prov, err := s.providerFor(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		own, err := s.store.ListJobs(ctx, store.JobFilter{RequesterID: caller.UserID})
		return own, []string{userTag}, err
	}
	if err != nil {
		return nil, nil, err
	}

	tags := []string{userTag, cache.ProviderListingsTag}
	if len(prov.ApprovedCategories) == 0 {
		return nil, tags, nil
	}

	var open []model.Job
	if len(prov.Areas) > 0 {
		open, err = s.store.ListJobs(ctx, store.JobFilter{
			Cities:      prov.Areas,
			Statuses:    []model.JobStatus{model.JobOpen, model.JobPendingSelection},
			CategoryIDs: prov.ApprovedCategories,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	assigned, err := s.store.ListJobs(ctx, store.JobFilter{ProviderID: caller.UserID})
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	out := make([]model.Job, 0, len(open)+len(assigned))
	for _, j := range append(prov.Filter(open), assigned...) {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		out = append(out, j)
	}
	return out, tags, nil
}

// sortJobs orders jobs in place. An empty order keeps fetch order.
func sortJobs(jobs []model.Job, order string) {
	newer := func(a, b model.Job) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch order {
	case SortRecent:
		sort.SliceStable(jobs, func(i, j int) bool { return newer(jobs[i], jobs[j]) })
	case SortUrgent:
		sort.SliceStable(jobs, func(i, j int) bool {
			ei := jobs[i].Urgency == model.UrgencyEmergency
			ej := jobs[j].Urgency == model.UrgencyEmergency
			if ei != ej {
				return ei
			}
			return newer(jobs[i], jobs[j])
		})
	}
}
