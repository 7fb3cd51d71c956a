package ingest

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultDailySummaryLimit caps AI summarization spend per calendar day.
const DefaultDailySummaryLimit = 200

// SummaryQuota is the process-wide daily counter of AI-summarization calls.
// The reset is lazy: the counter rolls over on the first TryConsume or
// Remaining call after the UTC day changes, no timer involved.
type SummaryQuota struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string // "2006-01-02" in UTC
	now   func() time.Time
}

func NewSummaryQuota(limit int) *SummaryQuota {
	if limit <= 0 {
		limit = DefaultDailySummaryLimit
	}
	return &SummaryQuota{
		limit: limit,
		now:   time.Now,
	}
}

func (q *SummaryQuota) rollover() {
	day := q.now().UTC().Format("2006-01-02")
	if day != q.day {
		q.day = day
		q.used = 0
	}
}

// TryConsume atomically claims one summarization slot. Returns false without
// side effect once the daily ceiling is reached.
func (q *SummaryQuota) TryConsume() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Remaining reports how many slots are left today.
func (q *SummaryQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	return q.limit - q.used
}

type quotaState struct {
	Day  string `json:"day"`
	Used int    `json:"used"`
}

// Snapshot serializes the counter for persistence across restarts, so a
// restart does not re-open the daily budget.
func (q *SummaryQuota) Snapshot() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return json.Marshal(quotaState{Day: q.day, Used: q.used})
}

// Restore loads a Snapshot payload. Stale days are discarded by the next
// lazy rollover.
func (q *SummaryQuota) Restore(data []byte) error {
	var st quotaState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.day = st.Day
	q.used = st.Used
	return nil
}
