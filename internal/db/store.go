package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpalacios/regwatch/internal/models"
)

// retentionCeiling is how many most-recent events are guaranteed to survive
// pruning. Older rows beyond the ceiling are trimmed after each insert.
const retentionCeiling = 5000

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListParams filters event queries. Zero values mean "no filter".
type ListParams struct {
	Source   string
	Tier     string
	MinScore int
	Since    *time.Time
	Limit    int
	Offset   int
}

type ListResult struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

const eventCols = `id, source, source_id, title, description, external_url,
	signature, score, reasons, tier, summary, source_tags, attributes,
	delta_old, delta_new, published_at, created_at`

func scanEvent(scan func(dest ...interface{}) error) (models.Event, error) {
	var e models.Event
	var summary *string
	var attributesRaw []byte

	err := scan(
		&e.ID, &e.Source, &e.SourceID, &e.Title, &e.Description, &e.ExternalURL,
		&e.Signature, &e.Score, &e.Reasons, &e.Tier, &summary, &e.SourceTags, &attributesRaw,
		&e.DeltaOld, &e.DeltaNew, &e.PublishedAt, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if summary != nil {
		e.Summary = *summary
	}
	if len(attributesRaw) > 0 {
		_ = json.Unmarshal(attributesRaw, &e.Attributes)
	}
	return e, nil
}

// AppendEvent inserts a scored event and returns it with storage identity
// assigned. Each insert is independent; there is no batching or transaction
// across a run.
func (s *Store) AppendEvent(ctx context.Context, event models.Event) (models.Event, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()

	var attributesRaw []byte
	if len(event.Attributes) > 0 {
		attributesRaw, _ = json.Marshal(event.Attributes)
	}
	var summary *string
	if event.Summary != "" {
		summary = &event.Summary
	}
	if event.Reasons == nil {
		event.Reasons = []string{}
	}
	if event.SourceTags == nil {
		event.SourceTags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, source, source_id, title, description, external_url,
			signature, score, reasons, tier, summary, source_tags, attributes,
			delta_old, delta_new, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, event.ID, event.Source, event.SourceID, event.Title, event.Description, event.ExternalURL,
		event.Signature, event.Score, event.Reasons, event.Tier, summary, event.SourceTags, attributesRaw,
		event.DeltaOld, event.DeltaNew, event.PublishedAt, event.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("inserting event: %w", err)
	}

	if err := s.pruneEvents(ctx); err != nil {
		// Pruning is housekeeping; a failed trim never fails the insert.
		log.Printf("[Store] Event pruning failed: %v", err)
	}

	return event, nil
}

// pruneEvents trims rows beyond the most-recent retention ceiling. Recency
// is insertion order (seq), not created_at, so equal timestamps cannot cause
// a newer row to be trimmed before an older one.
func (s *Store) pruneEvents(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM events WHERE id IN (
			SELECT id FROM events ORDER BY seq DESC OFFSET $1
		)
	`, retentionCeiling)
	return err
}

// ListEvents returns events matching params, newest first with insertion
// order as the tiebreak.
func (s *Store) ListEvents(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Source != "" {
		conds = append(conds, "source = "+arg(params.Source))
	}
	if params.Tier != "" {
		conds = append(conds, "tier = "+arg(params.Tier))
	}
	if params.MinScore > 0 {
		conds = append(conds, "score >= "+arg(params.MinScore))
	}
	if params.Since != nil {
		conds = append(conds, "created_at > "+arg(*params.Since))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	result := ListResult{Limit: params.Limit, Offset: params.Offset, Events: []models.Event{}}

	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("counting events: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM events %s ORDER BY created_at DESC, seq DESC LIMIT %s OFFSET %s`,
		eventCols, where, arg(params.Limit), arg(params.Offset))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return result, fmt.Errorf("scanning event: %w", err)
		}
		result.Events = append(result.Events, event)
	}
	return result, rows.Err()
}

// GetEvent fetches one event by id. pgx.ErrNoRows passes through so handlers
// can map it to 404.
func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (models.Event, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM events WHERE id = $1", eventCols), id)
	return scanEvent(row.Scan)
}

// ListDigestEvents returns a source's digest-tier events created after since
// (all of them when since is nil), oldest first for readable digests.
func (s *Store) ListDigestEvents(ctx context.Context, source string, since *time.Time) ([]models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE source = $1 AND tier = 'digest'", eventCols)
	args := []interface{}{source}
	if since != nil {
		query += " AND created_at > $2"
		args = append(args, *since)
	}
	query += " ORDER BY created_at ASC, seq ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing digest events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning digest event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// InsertFeedback records a helpful/not-helpful vote on an event.
func (s *Store) InsertFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	fb.ID = uuid.New()
	fb.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback (id, event_id, helpful, created_at)
		VALUES ($1, $2, $3, $4)
	`, fb.ID, fb.EventID, fb.Helpful, fb.CreatedAt)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("inserting feedback: %w", err)
	}
	return fb, nil
}

// UpsertSourceStatus writes the full per-source status row. Degraded is
// derived at read time and not stored.
func (s *Store) UpsertSourceStatus(ctx context.Context, status models.SourceStatus) (models.SourceStatus, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_status (source, last_success, last_error, error_count_24h, last_digest_sent, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source) DO UPDATE SET
			last_success = EXCLUDED.last_success,
			last_error = EXCLUDED.last_error,
			error_count_24h = EXCLUDED.error_count_24h,
			last_digest_sent = EXCLUDED.last_digest_sent,
			updated_at = NOW()
	`, status.Source, status.LastSuccess, status.LastError, status.ErrorCount24h, status.LastDigestSent)
	if err != nil {
		return models.SourceStatus{}, fmt.Errorf("upserting source status: %w", err)
	}
	return status, nil
}

// ListSourceStatus returns every persisted status row, degraded flag derived.
func (s *Store) ListSourceStatus(ctx context.Context) ([]models.SourceStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, last_success, last_error, error_count_24h, last_digest_sent
		FROM source_status ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("listing source status: %w", err)
	}
	defer rows.Close()

	var statuses []models.SourceStatus
	for rows.Next() {
		var st models.SourceStatus
		if err := rows.Scan(&st.Source, &st.LastSuccess, &st.LastError, &st.ErrorCount24h, &st.LastDigestSent); err != nil {
			return nil, fmt.Errorf("scanning source status: %w", err)
		}
		st.Degraded = st.ErrorCount24h > 0
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// InsertRun records a completed or failed pipeline run.
func (s *Store) InsertRun(ctx context.Context, run models.PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, source, status, found, suppressed, persisted, summarized, errors, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.Source, run.Status, run.Found, run.Suppressed, run.Persisted, run.Summarized, run.Errors, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting pipeline run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, optionally filtered by source.
func (s *Store) ListRuns(ctx context.Context, source string, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, source, status, found, suppressed, persisted, summarized, errors, started_at, completed_at
		FROM pipeline_runs
	`
	args := []interface{}{}
	if source != "" {
		query += " WHERE source = $1"
		args = append(args, source)
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		var r models.PipelineRun
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Found, &r.Suppressed, &r.Persisted, &r.Summarized, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveSnapshot stores an opaque state blob under key.
func (s *Store) SaveSnapshot(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", key, err)
	}
	return nil
}

// LoadSnapshot returns the blob stored under key; ok is false when absent.
func (s *Store) LoadSnapshot(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, "SELECT value FROM snapshots WHERE key = $1", key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading snapshot %s: %w", key, err)
	}
	return value, true, nil
}
