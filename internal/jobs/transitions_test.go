package jobs_test

import (
	"testing"

	"servicemarket/marketplace-service/internal/jobs"
	"servicemarket/marketplace-service/internal/model"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"open", "pending_selection", "accepted", "enroute", "onsite", "completed", "cancelled"}
	for _, s := range valid {
		got, err := jobs.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "OPEN", "browsing", "in_progress"} {
		if _, err := jobs.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_Valid(t *testing.T) {
	cases := []struct {
		from, to model.JobStatus
	}{
		{model.JobOpen, model.JobPendingSelection},
		{model.JobOpen, model.JobCancelled},
		{model.JobPendingSelection, model.JobOpen},
		{model.JobPendingSelection, model.JobAccepted},
		{model.JobPendingSelection, model.JobCancelled},
		{model.JobAccepted, model.JobEnroute},
		{model.JobAccepted, model.JobCancelled},
		{model.JobEnroute, model.JobOnsite},
		{model.JobOnsite, model.JobCompleted},
	}
	for _, tc := range cases {
		if !jobs.IsTransitionAllowed(tc.from, tc.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) = false, want true", tc.from, tc.to)
		}
	}
}

func TestIsTransitionAllowed_Invalid(t *testing.T) {
	cases := []struct {
		from, to model.JobStatus
	}{
		{model.JobOpen, model.JobAccepted},
		{model.JobOpen, model.JobCompleted},
		{model.JobAccepted, model.JobOpen},
		{model.JobAccepted, model.JobOnsite},
		{model.JobEnroute, model.JobCancelled},
		{model.JobOnsite, model.JobCancelled},
		{model.JobEnroute, model.JobAccepted},
		{model.JobOnsite, model.JobEnroute},
	}
	for _, tc := range cases {
		if jobs.IsTransitionAllowed(tc.from, tc.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestIsTransitionAllowed_TerminalStates(t *testing.T) {
	all := []model.JobStatus{
		model.JobOpen, model.JobPendingSelection, model.JobAccepted,
		model.JobEnroute, model.JobOnsite, model.JobCompleted, model.JobCancelled,
	}
	for _, from := range []model.JobStatus{model.JobCompleted, model.JobCancelled} {
		if !jobs.IsTerminal(from) {
			t.Errorf("IsTerminal(%s) = false, want true", from)
		}
		for _, to := range all {
			if jobs.IsTransitionAllowed(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestIsTransitionAllowed_SelfTransition(t *testing.T) {
	for _, s := range []model.JobStatus{model.JobOpen, model.JobPendingSelection, model.JobAccepted} {
		if jobs.IsTransitionAllowed(s, s) {
			t.Errorf("self transition %s → %s should not be allowed", s, s)
		}
	}
}

// ── HoldsProvider ──────────────────────────────────────────────────────────

func TestHoldsProvider(t *testing.T) {
	want := map[model.JobStatus]bool{
		model.JobOpen:             false,
		model.JobPendingSelection: false,
		model.JobAccepted:         true,
		model.JobEnroute:          true,
		model.JobOnsite:           true,
		model.JobCompleted:        true,
		model.JobCancelled:        false,
	}
	for s, w := range want {
		if got := jobs.HoldsProvider(s); got != w {
			t.Errorf("HoldsProvider(%s) = %v, want %v", s, got, w)
		}
	}
}

// Every reachable status keeps the provider invariant when transitions
// assign the provider exactly on entering accepted and clear it on cancel.
func TestHoldsProvider_ConsistentWithGraph(t *testing.T) {
	for from, tos := range map[model.JobStatus][]model.JobStatus{
		model.JobAccepted: {model.JobEnroute},
		model.JobEnroute:  {model.JobOnsite},
		model.JobOnsite:   {model.JobCompleted},
	} {
		for _, to := range tos {
			if jobs.HoldsProvider(from) != jobs.HoldsProvider(to) {
				t.Errorf("%s → %s changes provider ownership without select/cancel", from, to)
			}
		}
	}
}

func TestAcceptsApplications(t *testing.T) {
	if !jobs.AcceptsApplications(model.JobOpen) || !jobs.AcceptsApplications(model.JobPendingSelection) {
		t.Error("open and pending_selection must accept applications")
	}
	for _, s := range []model.JobStatus{model.JobAccepted, model.JobEnroute, model.JobOnsite, model.JobCompleted, model.JobCancelled} {
		if jobs.AcceptsApplications(s) {
			t.Errorf("AcceptsApplications(%s) should be false", s)
		}
	}
}
