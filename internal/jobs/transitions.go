// Package jobs owns the job lifecycle: posting, listing, applying,
// selecting a provider, withdrawing and status updates.
//
// Valid status graph:
//
//	open ──► pending_selection ──► accepted ──► enroute ──► onsite ──► completed
//	 │  ◄───────────┘  │               │
//	 │                 │               │
//	 └─────────────────┴───────────────┴──► cancelled
//
// completed and cancelled are terminal states.
package jobs

import (
	"fmt"
	"slices"

	"servicemarket/marketplace-service/internal/model"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.JobStatus][]model.JobStatus{
	model.JobOpen:             {model.JobPendingSelection, model.JobCancelled},
	model.JobPendingSelection: {model.JobOpen, model.JobAccepted, model.JobCancelled},
	model.JobAccepted:         {model.JobEnroute, model.JobCancelled},
	model.JobEnroute:          {model.JobOnsite},
	model.JobOnsite:           {model.JobCompleted},
	// completed and cancelled are terminal
}

// ParseStatus converts a raw string to a JobStatus, returning an error for
// unknown values.
func ParseStatus(s string) (model.JobStatus, error) {
	st := model.JobStatus(s)
	switch st {
	case model.JobOpen, model.JobPendingSelection, model.JobAccepted,
		model.JobEnroute, model.JobOnsite, model.JobCompleted, model.JobCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to model.JobStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// HoldsProvider reports whether a job in status s has an assigned provider.
func HoldsProvider(s model.JobStatus) bool {
	switch s {
	case model.JobAccepted, model.JobEnroute, model.JobOnsite, model.JobCompleted:
		return true
	}
	return false
}

// AcceptsApplications reports whether providers may apply in status s.
func AcceptsApplications(s model.JobStatus) bool {
	return s == model.JobOpen || s == model.JobPendingSelection
}

// IsProgress reports whether s is a step only the assigned provider sets.
func IsProgress(s model.JobStatus) bool {
	return s == model.JobEnroute || s == model.JobOnsite || s == model.JobCompleted
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.JobStatus) bool {
	_, ok := validTransitions[s]
	return !ok
}
