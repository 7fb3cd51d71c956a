package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/rpalacios/regwatch/internal/models"
)

func TestTrackerSuccessAndFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewStatusTracker(nil)
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	tr.RecordSuccess(ctx, "openfda")
	st := tr.Status("openfda")
	if st.LastSuccess == nil || !st.LastSuccess.Equal(now) {
		t.Errorf("lastSuccess not recorded: %+v", st)
	}
	if st.Degraded || st.ErrorCount24h != 0 {
		t.Errorf("healthy source reported degraded: %+v", st)
	}

	tr.RecordFailure(ctx, "openfda")
	st = tr.Status("openfda")
	if st.LastError == nil || st.ErrorCount24h != 1 || !st.Degraded {
		t.Errorf("failure not reflected: %+v", st)
	}
	// Success after a failure does not clear the rolling count.
	tr.RecordSuccess(ctx, "openfda")
	st = tr.Status("openfda")
	if st.ErrorCount24h != 1 || !st.Degraded {
		t.Errorf("success must not reset the 24h error count: %+v", st)
	}
}

func TestTrackerErrorsAgeOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewStatusTracker(nil)
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	tr.RecordFailure(ctx, "cms")
	now = now.Add(12 * time.Hour)
	tr.RecordFailure(ctx, "cms")

	st := tr.Status("cms")
	if st.ErrorCount24h != 2 {
		t.Fatalf("expected 2 errors in window, got %d", st.ErrorCount24h)
	}

	// 13 more hours: the first failure is now past the 24h window.
	now = now.Add(13 * time.Hour)
	st = tr.Status("cms")
	if st.ErrorCount24h != 1 {
		t.Errorf("expected 1 error after aging, got %d", st.ErrorCount24h)
	}

	now = now.Add(24 * time.Hour)
	st = tr.Status("cms")
	if st.ErrorCount24h != 0 || st.Degraded {
		t.Errorf("all errors aged out, expected healthy: %+v", st)
	}
	if st.LastError == nil {
		t.Error("lastError timestamp survives aging")
	}
}

func TestTrackerListSortedAndSeeded(t *testing.T) {
	tr := NewStatusTracker(nil)
	ctx := context.Background()

	tr.RecordSuccess(ctx, "zeta")
	tr.RecordSuccess(ctx, "alpha")

	list := tr.List()
	if len(list) != 2 || list[0].Source != "alpha" || list[1].Source != "zeta" {
		t.Errorf("expected sorted list, got %+v", list)
	}

	ts := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)
	seeded := NewStatusTracker(nil)
	seeded.Seed([]models.SourceStatus{
		{Source: "alpha", LastSuccess: &ts, LastDigestSent: &ts},
	})
	st := seeded.Status("alpha")
	if st.LastSuccess == nil || !st.LastSuccess.Equal(ts) {
		t.Errorf("seed did not preload lastSuccess: %+v", st)
	}
	if st.LastDigestSent == nil || !st.LastDigestSent.Equal(ts) {
		t.Errorf("seed did not preload digest timestamp: %+v", st)
	}
}

func TestTrackerDigestSent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewStatusTracker(nil)
	tr.now = func() time.Time { return now }

	tr.RecordDigestSent(context.Background(), "state_health")
	st := tr.Status("state_health")
	if st.LastDigestSent == nil || !st.LastDigestSent.Equal(now) {
		t.Errorf("digest timestamp not recorded: %+v", st)
	}
}
