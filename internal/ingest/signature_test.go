package ingest

import (
	"testing"
	"time"
)

func TestComputeSignatureNormalization(t *testing.T) {
	a := ComputeSignature(Identity{
		Issuer:         "Acme  Medical",
		Subject:        "CT Scanner Model X",
		Classification: "Class II",
		Reason:         "Software fault",
	})
	b := ComputeSignature(Identity{
		Issuer:         "acme medical",
		Subject:        "ct   scanner model x",
		Classification: " class ii ",
		Reason:         "SOFTWARE FAULT",
	})
	if a != b {
		t.Errorf("case/whitespace variants should hash identically: %s != %s", a, b)
	}

	c := ComputeSignature(Identity{
		Issuer:         "Acme Medical",
		Subject:        "CT Scanner Model X",
		Classification: "Class II",
		Reason:         "Battery fault",
	})
	if a == c {
		t.Error("different reason should produce a different signature")
	}
}

func TestWindowSuppressesWithinTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(14 * 24 * time.Hour)
	w.now = func() time.Time { return now }

	sig := ComputeSignature(Identity{Issuer: "fda", Subject: "pump", Classification: "i", Reason: "leak"})

	if w.Seen(sig) {
		t.Fatal("fresh window should not suppress")
	}
	w.Mark(sig)

	// Same fact one day later: suppressed.
	now = now.Add(24 * time.Hour)
	if !w.Seen(sig) {
		t.Error("duplicate within window should be suppressed")
	}

	// 15 simulated days after the mark: accepted as new again.
	now = now.Add(14 * 24 * time.Hour)
	if w.Seen(sig) {
		t.Error("entry past the 14-day window should not suppress")
	}
}

func TestWindowSeenDoesNotRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(14 * 24 * time.Hour)
	w.now = func() time.Time { return now }

	sig := "abc123"
	w.Mark(sig)

	// Seen on day 13 must not push the expiry out.
	now = now.Add(13 * 24 * time.Hour)
	if !w.Seen(sig) {
		t.Fatal("should still suppress on day 13")
	}
	now = now.Add(2 * 24 * time.Hour)
	if w.Seen(sig) {
		t.Error("a Seen hit must not advance the timestamp")
	}
}

func TestWindowMarkPrunesExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(14 * 24 * time.Hour)
	w.now = func() time.Time { return now }

	w.Mark("old")
	now = now.Add(15 * 24 * time.Hour)
	w.Mark("new")

	if w.Len() != 1 {
		t.Errorf("expected expired entry pruned, len = %d", w.Len())
	}
}

func TestWindowSnapshotRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(14 * 24 * time.Hour)
	w.now = func() time.Time { return now }
	w.Mark("sig-a")
	w.Mark("sig-b")

	data, err := w.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	restored := NewWindow(14 * 24 * time.Hour)
	restored.now = func() time.Time { return now }
	if err := restored.Restore(data); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !restored.Seen("sig-a") || !restored.Seen("sig-b") {
		t.Error("restored window lost entries")
	}
}
