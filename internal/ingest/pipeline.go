package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rpalacios/regwatch/internal/ai"
	"github.com/rpalacios/regwatch/internal/metrics"
	"github.com/rpalacios/regwatch/internal/models"
)

// Snapshot keys under which shared pipeline state survives restarts.
const (
	snapshotKeyWindow = "dedup_window"
	snapshotKeyQuota  = "summary_quota"
)

// EventStore is the storage collaborator the orchestrator persists through.
// Implemented by db.Store.
type EventStore interface {
	AppendEvent(ctx context.Context, event models.Event) (models.Event, error)
	ListDigestEvents(ctx context.Context, source string, since *time.Time) ([]models.Event, error)
	InsertRun(ctx context.Context, run models.PipelineRun) error
	SaveSnapshot(ctx context.Context, key string, value []byte) error
	LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error)
}

// Normalizer extracts identity fields from unstructured records. Failure is
// always non-fatal; adapters fall back to raw fields.
type Normalizer interface {
	Normalize(ctx context.Context, in ai.NormalizeInput) (ai.Fields, error)
}

// Detector classifies boolean pattern signals. Failure degrades to all-false.
type Detector interface {
	Detect(ctx context.Context, in ai.DetectInput) (ai.Detection, error)
}

// SummaryGenerator produces short summaries for high-tier events.
type SummaryGenerator interface {
	Summarize(ctx context.Context, signature, title, description string) (string, error)
}

// Notifier delivers a persisted event to its recipients. Implementations
// enforce channel restrictions (SMS only for urgent events).
type Notifier interface {
	Dispatch(ctx context.Context, event models.Event, emails, sms []string) error
	SendDigest(ctx context.Context, source string, events []models.Event, emails []string) error
}

// Pipeline wires the shared collaborators every source run needs. It is the
// only component that mutates shared state (window, quota, status, storage);
// adapters hand it normalized events and never touch that state themselves.
type Pipeline struct {
	Store      EventStore
	Window     *Window
	Quota      *SummaryQuota
	Tracker    *StatusTracker
	Client     *RetryClient
	Normalizer Normalizer
	Detector   Detector
	Summarizer SummaryGenerator
	Notifier   Notifier
	Registry   *Registry
	Adapters   *AdapterFactory

	mu       sync.Mutex
	runLocks map[string]*sync.Mutex
}

func NewPipeline(store EventStore, registry *Registry) *Pipeline {
	return &Pipeline{
		Store:    store,
		Window:   NewWindow(DefaultWindowTTL),
		Quota:    NewSummaryQuota(DefaultDailySummaryLimit),
		Tracker:  NewStatusTracker(nil),
		Client:   NewRetryClient(RetryConfig{}),
		Registry: registry,
		Adapters: GlobalAdapterFactory,
		runLocks: make(map[string]*sync.Mutex),
	}
}

// RunResult is what a single source invocation returns. Events carries the
// full computed list, which dry runs use for inspection.
type RunResult struct {
	Source string        `json:"source"`
	DryRun bool          `json:"dry_run"`
	Stats  RunStats      `json:"stats"`
	Events []ScoredEvent `json:"events"`
}

// runLock serializes runs of the same source. Different sources proceed
// concurrently.
func (p *Pipeline) runLock(sourceID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.runLocks[sourceID]
	if !ok {
		l = &sync.Mutex{}
		p.runLocks[sourceID] = l
	}
	return l
}

// RunSource executes one full pipeline pass for a source. In dry-run mode
// the scored events are computed and returned but nothing is persisted, the
// dedup window and quota are untouched, and the status tracker is not
// updated. A failed run records the failure and surfaces a generic error;
// events persisted before the failure point are not rolled back.
func (p *Pipeline) RunSource(ctx context.Context, sourceID string, dryRun bool) (*RunResult, error) {
	lock := p.runLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now().UTC()
	result, err := p.runSourceLocked(ctx, sourceID, dryRun)
	if err != nil {
		log.Printf("[Pipeline] Run failed for %s: %v", sourceID, err)
		if !dryRun {
			p.Tracker.RecordFailure(ctx, sourceID)
			metrics.RunFailures.WithLabelValues(sourceID).Inc()
			p.recordRun(ctx, sourceID, "failed", RunStats{Errors: 1}, started)
		}
		return nil, fmt.Errorf("source run failed: %s", sourceID)
	}

	if !dryRun {
		p.Tracker.RecordSuccess(ctx, sourceID)
		p.recordRun(ctx, sourceID, "completed", result.Stats, started)
		p.saveSnapshots(ctx)
		metrics.EventsFound.WithLabelValues(sourceID).Add(float64(result.Stats.Found))
		metrics.EventsSuppressed.WithLabelValues(sourceID).Add(float64(result.Stats.Suppressed))
		metrics.EventsPersisted.WithLabelValues(sourceID).Add(float64(result.Stats.Persisted))
		metrics.QuotaRemaining.Set(float64(p.Quota.Remaining()))
	}

	log.Printf("[Pipeline] %s done (dry_run=%v): found=%d suppressed=%d persisted=%d summarized=%d errors=%d",
		sourceID, dryRun, result.Stats.Found, result.Stats.Suppressed,
		result.Stats.Persisted, result.Stats.Summarized, result.Stats.Errors)
	return result, nil
}

func (p *Pipeline) runSourceLocked(ctx context.Context, sourceID string, dryRun bool) (*RunResult, error) {
	config, err := p.Registry.Find(sourceID)
	if err != nil {
		return nil, err
	}
	adapter, err := p.Adapters.Get(config.Adapter)
	if err != nil {
		return nil, err
	}

	candidates, err := adapter.Fetch(ctx, config, p)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	result := &RunResult{Source: sourceID, DryRun: dryRun}
	result.Stats.Found = len(candidates)

	for _, candidate := range candidates {
		sig := ComputeSignature(candidate.Identity)
		if p.Window.Seen(sig) {
			result.Stats.Suppressed++
			continue
		}

		score, reasons := ScoreEvent(candidate)
		score = adapter.AdjustScore(config, candidate, score)
		tier := Categorize(score)

		scored := ScoredEvent{
			NormalizedEvent: candidate,
			Score:           score,
			Reasons:         reasons,
			Tier:            tier,
			Signature:       sig,
		}

		if ShouldSummarize(tier) && !dryRun {
			scored.Summary = p.summarize(ctx, scored)
			if scored.Summary != "" {
				result.Stats.Summarized++
			}
		}

		result.Events = append(result.Events, scored)
		if dryRun {
			continue
		}

		persisted, err := p.Store.AppendEvent(ctx, toEventModel(scored))
		if err != nil {
			log.Printf("[Pipeline] Failed to persist %s/%s: %v", sourceID, scored.SourceID, err)
			result.Stats.Errors++
			continue
		}
		p.Window.Mark(sig)
		result.Stats.Persisted++

		p.notify(ctx, persisted, config)
	}

	return result, nil
}

// summarize runs the quota gate and the AI summarizer. Exhausted quota means
// no summary at all; a failed AI call falls back to the truncated title.
func (p *Pipeline) summarize(ctx context.Context, scored ScoredEvent) string {
	if p.Summarizer == nil {
		return ""
	}
	if !p.Quota.TryConsume() {
		log.Printf("[Pipeline] Daily summary quota exhausted, persisting %s without summary", scored.SourceID)
		return ""
	}
	metrics.SummaryCalls.Inc()

	summary, err := p.Summarizer.Summarize(ctx, scored.Signature, scored.Title, scored.Description)
	if err != nil {
		log.Printf("[Pipeline] Summarizer failed for %s, using title fallback: %v", scored.SourceID, err)
		return TruncateText(scored.Title, 100)
	}
	return summary
}

// notify dispatches urgent and informational events immediately. Digest-tier
// events wait for the batched digest; suppressed events go nowhere.
func (p *Pipeline) notify(ctx context.Context, event models.Event, config SourceConfig) {
	if p.Notifier == nil {
		return
	}
	tier := Tier(event.Tier)
	if tier != TierUrgent && tier != TierInformational {
		return
	}

	// SMS only ever carries urgent events; the dispatcher checks too, but
	// the restriction is owned here at the pipeline boundary.
	sms := config.Recipients.SMS
	if tier != TierUrgent {
		sms = nil
	}
	if err := p.Notifier.Dispatch(ctx, event, config.Recipients.Email, sms); err != nil {
		log.Printf("[Pipeline] Notification dispatch failed for %s: %v", event.SourceID, err)
	}
}

// RunAll runs every registered source sequentially, continuing past
// individual failures.
func (p *Pipeline) RunAll(ctx context.Context, dryRun bool) []*RunResult {
	var results []*RunResult
	for _, src := range p.Registry.Sources {
		result, err := p.RunSource(ctx, src.ID, dryRun)
		if err != nil {
			results = append(results, &RunResult{Source: src.ID, DryRun: dryRun, Stats: RunStats{Errors: 1}})
			continue
		}
		results = append(results, result)
	}
	return results
}

// SendDigest batches the source's digest-tier events accumulated since the
// last digest and emails them. Nothing is sent when the batch is empty.
func (p *Pipeline) SendDigest(ctx context.Context, sourceID string) (int, error) {
	config, err := p.Registry.Find(sourceID)
	if err != nil {
		return 0, err
	}
	if p.Notifier == nil {
		return 0, fmt.Errorf("no notifier configured")
	}

	status := p.Tracker.Status(sourceID)
	events, err := p.Store.ListDigestEvents(ctx, sourceID, status.LastDigestSent)
	if err != nil {
		return 0, fmt.Errorf("loading digest events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := p.Notifier.SendDigest(ctx, sourceID, events, config.Recipients.Email); err != nil {
		return 0, fmt.Errorf("sending digest: %w", err)
	}
	p.Tracker.RecordDigestSent(ctx, sourceID)
	return len(events), nil
}

func (p *Pipeline) recordRun(ctx context.Context, sourceID, status string, stats RunStats, started time.Time) {
	if p.Store == nil {
		return
	}
	completed := time.Now().UTC()
	run := models.PipelineRun{
		Source:      sourceID,
		Status:      status,
		Found:       stats.Found,
		Suppressed:  stats.Suppressed,
		Persisted:   stats.Persisted,
		Summarized:  stats.Summarized,
		Errors:      stats.Errors,
		StartedAt:   started,
		CompletedAt: &completed,
	}
	if err := p.Store.InsertRun(ctx, run); err != nil {
		log.Printf("[Pipeline] Failed to record run for %s: %v", sourceID, err)
	}
}

// saveSnapshots persists the dedup window and quota counter so restarts do
// not forget suppressions or re-open the daily summary budget.
func (p *Pipeline) saveSnapshots(ctx context.Context) {
	if p.Store == nil {
		return
	}
	if data, err := p.Window.Snapshot(); err == nil {
		if err := p.Store.SaveSnapshot(ctx, snapshotKeyWindow, data); err != nil {
			log.Printf("[Pipeline] Failed to save window snapshot: %v", err)
		}
	}
	if data, err := p.Quota.Snapshot(); err == nil {
		if err := p.Store.SaveSnapshot(ctx, snapshotKeyQuota, data); err != nil {
			log.Printf("[Pipeline] Failed to save quota snapshot: %v", err)
		}
	}
}

// LoadSnapshots restores window and quota state at startup. Missing
// snapshots are not an error (first boot).
func (p *Pipeline) LoadSnapshots(ctx context.Context) error {
	if p.Store == nil {
		return nil
	}
	if data, ok, err := p.Store.LoadSnapshot(ctx, snapshotKeyWindow); err != nil {
		return fmt.Errorf("loading window snapshot: %w", err)
	} else if ok {
		if err := p.Window.Restore(data); err != nil {
			return fmt.Errorf("restoring window snapshot: %w", err)
		}
	}
	if data, ok, err := p.Store.LoadSnapshot(ctx, snapshotKeyQuota); err != nil {
		return fmt.Errorf("loading quota snapshot: %w", err)
	} else if ok {
		if err := p.Quota.Restore(data); err != nil {
			return fmt.Errorf("restoring quota snapshot: %w", err)
		}
	}
	return nil
}

func toEventModel(scored ScoredEvent) models.Event {
	event := models.Event{
		Source:      scored.Source,
		SourceID:    scored.SourceID,
		Title:       scored.Title,
		Description: scored.Description,
		ExternalURL: scored.ExternalURL,
		Signature:   scored.Signature,
		Score:       scored.Score,
		Reasons:     scored.Reasons,
		Tier:        string(scored.Tier),
		Summary:     scored.Summary,
		SourceTags:  scored.SourceTags,
		Attributes:  scored.Attributes,
		PublishedAt: scored.PublishedAt,
	}
	if scored.Delta != nil {
		old, newVal := scored.Delta.Old, scored.Delta.New
		event.DeltaOld = &old
		event.DeltaNew = &newVal
	}
	return event
}
