// Package eligibility decides whether a provider may see or apply to a job.
//
// Rules, all of which must hold:
//
//	job.City       ∈ provider approved areas (service areas, else primary city)
//	job.CategoryID ∈ provider approved categories
//	job.AllowedProviderType is "both" or equals the provider's classification
//
// The incomplete-jobs lock lives in the jobs service and only gates
// applying, never listing.
package eligibility

import (
	"slices"

	"servicemarket/marketplace-service/internal/apperr"
	"servicemarket/marketplace-service/internal/model"
)

// Refusal codes returned in apperr.Error.Code.
const (
	CodeCityNotApproved     = "CITY_NOT_APPROVED"
	CodeCategoryNotApproved = "CATEGORY_NOT_APPROVED"
	CodeProviderTypeDenied  = "PROVIDER_TYPE_MISMATCH"
)

// Provider is everything the filter needs to know about a provider.
type Provider struct {
	ID                 string
	Areas              []string
	ApprovedCategories []int64
	Type               model.ProviderType
}

// FromProfile builds a Provider from its profile and approved categories.
func FromProfile(p model.ProviderProfile, approvedCategories []int64) Provider {
	return Provider{
		ID:                 p.UserID,
		Areas:              p.ApprovedAreas(),
		ApprovedCategories: approvedCategories,
		Type:               p.Type(),
	}
}

// TypeMatches reports whether a job open to allowed accepts a provider of
// type t.
func TypeMatches(allowed, t model.ProviderType) bool {
	return allowed == model.ProviderBoth || allowed == "" || allowed == t
}

// Check returns nil when the provider may see the job, or a Forbidden error
// naming the first rule that failed.
func (p Provider) Check(job model.Job) error {
	if !slices.Contains(p.Areas, job.City) {
		return apperr.Forbidden(CodeCityNotApproved, "you are not approved to work in "+job.City)
	}
	if !slices.Contains(p.ApprovedCategories, job.CategoryID) {
		return apperr.Forbidden(CodeCategoryNotApproved, "you are not verified for this job's category")
	}
	if !TypeMatches(job.AllowedProviderType, p.Type) {
		return apperr.Forbidden(CodeProviderTypeDenied, "this job is restricted to "+string(job.AllowedProviderType)+" providers")
	}
	return nil
}

// CanView is Check as a predicate.
func (p Provider) CanView(job model.Job) bool { return p.Check(job) == nil }

// Filter keeps the jobs the provider may view, preserving order.
func (p Provider) Filter(jobs []model.Job) []model.Job {
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if p.CanView(j) {
			out = append(out, j)
		}
	}
	return out
}
