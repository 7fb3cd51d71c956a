package ingest

import (
	"testing"
	"time"
)

func TestQuotaCeiling(t *testing.T) {
	q := NewSummaryQuota(3)
	q.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	for i := 0; i < 3; i++ {
		if !q.TryConsume() {
			t.Fatalf("consume %d should succeed", i+1)
		}
	}
	if q.TryConsume() {
		t.Error("consume past the ceiling should fail")
	}
	if q.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", q.Remaining())
	}
	// Exhaustion is stable: repeated calls keep failing.
	if q.TryConsume() {
		t.Error("exhausted quota must stay exhausted for the day")
	}
}

func TestQuotaLazyDayRollover(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	q := NewSummaryQuota(1)
	q.now = func() time.Time { return now }

	if !q.TryConsume() {
		t.Fatal("first consume should succeed")
	}
	if q.TryConsume() {
		t.Fatal("ceiling reached")
	}

	// Next UTC day: the counter resets lazily on the next call.
	now = time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	if !q.TryConsume() {
		t.Error("new day should re-open the quota")
	}
}

func TestQuotaSnapshotRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q := NewSummaryQuota(10)
	q.now = func() time.Time { return now }
	q.TryConsume()
	q.TryConsume()

	data, err := q.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	restored := NewSummaryQuota(10)
	restored.now = func() time.Time { return now }
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Remaining() != 8 {
		t.Errorf("expected 8 remaining after restore, got %d", restored.Remaining())
	}
}
