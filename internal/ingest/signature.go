package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultWindowTTL is how long a signature suppresses republication of the
// same fact. After this period an identical record re-qualifies as new,
// catching legitimate periodic re-publication.
const DefaultWindowTTL = 14 * 24 * time.Hour

// ComputeSignature derives a short stable hash from the four identity fields
// of a record. Case and whitespace are normalized first, so cosmetic edits
// upstream do not produce a "new" fact. Hash collisions across distinct
// facts are accepted; there is no raw-text fallback.
func ComputeSignature(id Identity) string {
	parts := []string{
		normalizeSpace(strings.ToLower(id.Issuer)),
		normalizeSpace(strings.ToLower(id.Subject)),
		normalizeSpace(strings.ToLower(id.Classification)),
		normalizeSpace(strings.ToLower(id.Reason)),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Window is the process-wide deduplication window: signature -> last-seen
// timestamp. Seen does not refresh timestamps; Mark is only called when the
// caller commits an event, never in dry-run mode.
type Window struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewWindow(ttl time.Duration) *Window {
	if ttl <= 0 {
		ttl = DefaultWindowTTL
	}
	return &Window{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen reports whether sig was recorded within the window. Expired entries
// do not suppress and are pruned lazily by Mark.
func (w *Window) Seen(sig string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	last, ok := w.seen[sig]
	if !ok {
		return false
	}
	return w.now().Sub(last) <= w.ttl
}

// Mark records sig as seen now and prunes expired entries so the window does
// not grow unbounded.
func (w *Window) Mark(sig string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.seen[sig] = now
	for k, last := range w.seen {
		if now.Sub(last) > w.ttl {
			delete(w.seen, k)
		}
	}
}

// Len returns the number of live entries (expired included until pruned).
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Snapshot serializes the window for persistence across restarts.
func (w *Window) Snapshot() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.Marshal(w.seen)
}

// Restore replaces the window contents from a Snapshot payload.
func (w *Window) Restore(data []byte) error {
	var seen map[string]time.Time
	if err := json.Unmarshal(data, &seen); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if seen == nil {
		seen = make(map[string]time.Time)
	}
	w.seen = seen
	return nil
}
