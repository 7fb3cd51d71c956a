package ingest

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/rpalacios/regwatch/internal/models"
)

// errorCountWindow bounds how long a failure keeps a source degraded.
const errorCountWindow = 24 * time.Hour

// StatusStore persists per-source status records. Implemented by db.Store;
// nil disables persistence (tests run fully in memory).
type StatusStore interface {
	UpsertSourceStatus(ctx context.Context, status models.SourceStatus) (models.SourceStatus, error)
}

type sourceEntry struct {
	lastSuccess    *time.Time
	lastError      *time.Time
	lastDigestSent *time.Time
	errorTimes     []time.Time
}

// StatusTracker records success/failure history per source. Error counts are
// kept as raw timestamps and filtered against the rolling 24h window at read
// time. Entries are created on first use and never deleted. Concurrent
// writers for the same source are tolerated (last writer wins).
type StatusTracker struct {
	mu      sync.Mutex
	entries map[string]*sourceEntry
	store   StatusStore
	now     func() time.Time
}

func NewStatusTracker(store StatusStore) *StatusTracker {
	return &StatusTracker{
		entries: make(map[string]*sourceEntry),
		store:   store,
		now:     time.Now,
	}
}

func (t *StatusTracker) entry(source string) *sourceEntry {
	e, ok := t.entries[source]
	if !ok {
		e = &sourceEntry{}
		t.entries[source] = e
	}
	return e
}

// RecordSuccess marks a completed run. The error count is left alone; only
// the 24h window ages failures out.
func (t *StatusTracker) RecordSuccess(ctx context.Context, source string) {
	t.mu.Lock()
	now := t.now()
	e := t.entry(source)
	e.lastSuccess = &now
	status := t.statusLocked(source)
	t.mu.Unlock()

	t.persist(ctx, status)
}

// RecordFailure marks a failed run and bumps the rolling error count.
func (t *StatusTracker) RecordFailure(ctx context.Context, source string) {
	t.mu.Lock()
	now := t.now()
	e := t.entry(source)
	e.lastError = &now
	e.errorTimes = append(e.errorTimes, now)
	e.errorTimes = pruneOld(e.errorTimes, now.Add(-errorCountWindow))
	status := t.statusLocked(source)
	t.mu.Unlock()

	t.persist(ctx, status)
}

// RecordDigestSent stamps the last digest delivery for a digest source.
func (t *StatusTracker) RecordDigestSent(ctx context.Context, source string) {
	t.mu.Lock()
	now := t.now()
	e := t.entry(source)
	e.lastDigestSent = &now
	status := t.statusLocked(source)
	t.mu.Unlock()

	t.persist(ctx, status)
}

func (t *StatusTracker) persist(ctx context.Context, status models.SourceStatus) {
	if t.store == nil {
		return
	}
	if _, err := t.store.UpsertSourceStatus(ctx, status); err != nil {
		log.Printf("[StatusTracker] Failed to persist status for %s: %v", status.Source, err)
	}
}

// Status returns the current record for a source, with ErrorCount24h
// computed against the rolling window and Degraded derived from it.
func (t *StatusTracker) Status(source string) models.SourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked(source)
}

func (t *StatusTracker) statusLocked(source string) models.SourceStatus {
	e := t.entry(source)
	cutoff := t.now().Add(-errorCountWindow)

	count := 0
	for _, ts := range e.errorTimes {
		if ts.After(cutoff) {
			count++
		}
	}

	return models.SourceStatus{
		Source:         source,
		LastSuccess:    e.lastSuccess,
		LastError:      e.lastError,
		LastDigestSent: e.lastDigestSent,
		ErrorCount24h:  count,
		Degraded:       count > 0,
	}
}

// List returns every tracked source's status, sorted by source id.
func (t *StatusTracker) List() []models.SourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.SourceStatus, 0, len(t.entries))
	for source := range t.entries {
		out = append(out, t.statusLocked(source))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Seed preloads tracker entries from persisted status rows at startup.
func (t *StatusTracker) Seed(statuses []models.SourceStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, st := range statuses {
		e := t.entry(st.Source)
		e.lastSuccess = st.LastSuccess
		e.lastError = st.LastError
		e.lastDigestSent = st.LastDigestSent
	}
}

func pruneOld(times []time.Time, cutoff time.Time) []time.Time {
	out := times[:0]
	for _, ts := range times {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}
