// Package history persists one row per search run in the search_runs table.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/eargollo/frisk/internal/search"
)

// Run is a persisted search run.
type Run struct {
	ID          int64        `json:"id"`
	Generation  uint64       `json:"generation"`
	TriggeredBy string       `json:"triggered_by"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Status      string       `json:"status"`
	Roots       []string     `json:"roots"`
	Filespecs   []string     `json:"filespecs"`
	Match       string       `json:"match"`
	Replace     *string      `json:"replace,omitempty"`
	Stats       search.Stats `json:"stats"`
	DurationMs  int64        `json:"duration_ms"`
	Error       string       `json:"error,omitempty"`
}

// keepRows is how many past generations keep their row id for late labels.
const keepRows = 32

// Recorder turns engine state notifications into search_runs rows.
// It is safe for concurrent use.
type Recorder struct {
	db *sql.DB

	mu     sync.Mutex
	rows   map[uint64]int64  // generation -> row id
	open   map[uint64]bool   // generations whose row is still running
	labels map[uint64]string // generation -> triggered_by
}

// NewRecorder creates a Recorder writing to db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{
		db:     db,
		rows:   make(map[uint64]int64),
		open:   make(map[uint64]bool),
		labels: make(map[uint64]string),
	}
}

// Label records who started generation gen ("cli", "api", "schedule:<name>",
// "watch"). It may be called before or after the run reports its state.
func (r *Recorder) Label(ctx context.Context, gen uint64, triggeredBy string) {
	r.mu.Lock()
	r.labels[gen] = triggeredBy
	id, ok := r.rows[gen]
	r.mu.Unlock()

	if ok {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE search_runs SET triggered_by = ? WHERE id = ?`, triggeredBy, id); err != nil {
			slog.Warn("history: label run", "id", id, "error", err)
		}
	}
}

// Record stores st. A running state opens a row; an idle state closes the
// row of its generation, or inserts a finished row when the run was rejected
// before it started.
func (r *Recorder) Record(ctx context.Context, st search.State) error {
	if st.Running {
		id, by, err := r.insert(ctx, st, "running")
		if err != nil {
			return err
		}
		r.storeRow(ctx, st.Generation, id, by, true)
		return nil
	}

	r.mu.Lock()
	id, open := r.rows[st.Generation], r.open[st.Generation]
	delete(r.open, st.Generation)
	r.mu.Unlock()

	if !open {
		var (
			by  string
			err error
		)
		if id, by, err = r.insert(ctx, st, string(st.Outcome)); err != nil {
			return err
		}
		r.storeRow(ctx, st.Generation, id, by, false)
	}
	r.prune(st.Generation)
	return r.finish(ctx, id, st)
}

// storeRow publishes the row id of gen. A Label that arrived while the row
// was being inserted saw no id and wrote nothing, so its label is applied here.
func (r *Recorder) storeRow(ctx context.Context, gen uint64, id int64, insertedBy string, open bool) {
	r.mu.Lock()
	r.rows[gen] = id
	if open {
		r.open[gen] = true
	}
	by, ok := r.labels[gen]
	r.mu.Unlock()

	if ok && by != insertedBy {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE search_runs SET triggered_by = ? WHERE id = ?`, by, id); err != nil {
			slog.Warn("history: label run", "id", id, "error", err)
		}
	}
}

// prune forgets generations far older than gen.
func (r *Recorder) prune(gen uint64) {
	if gen <= keepRows {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for g := range r.rows {
		if g < gen-keepRows && !r.open[g] {
			delete(r.rows, g)
		}
	}
	for g := range r.labels {
		if g < gen-keepRows {
			delete(r.labels, g)
		}
	}
}

// insert adds a row for st and returns its id with the triggered_by it used.
func (r *Recorder) insert(ctx context.Context, st search.State, status string) (int64, string, error) {
	r.mu.Lock()
	by, ok := r.labels[st.Generation]
	r.mu.Unlock()
	if !ok {
		by = "manual"
	}

	var replace any
	if st.Request.Flags.Replace {
		replace = st.Request.Replace
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO search_runs
			(generation, triggered_by, started_at, status, roots, filespecs, match_text, replace_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(st.Generation), by, st.StartedAt.UnixMilli(), status,
		strings.Join(st.Request.Paths, ";"),
		strings.Join(st.Request.Filespecs, ";"),
		st.Request.Match, replace)
	if err != nil {
		return 0, "", fmt.Errorf("insert search run: %w", err)
	}
	id, err := res.LastInsertId()
	return id, by, err
}

func (r *Recorder) finish(ctx context.Context, id int64, st search.State) error {
	var errText any
	if st.Err != nil {
		errText = st.Err.Error()
	}
	s := st.Stats
	_, err := r.db.ExecContext(ctx, `
		UPDATE search_runs
		SET status          = ?,
		    finished_at     = ?,
		    dirs_searched   = ?,
		    dirs_skipped    = ?,
		    files_searched  = ?,
		    files_skipped   = ?,
		    files_with_hits = ?,
		    files_updated   = ?,
		    lines_with_hits = ?,
		    hits            = ?,
		    duration_ms     = ?,
		    error           = ?
		WHERE id = ?`,
		string(st.Outcome), st.StartedAt.Add(st.Elapsed).UnixMilli(),
		s.DirsSearched, s.DirsSkipped, s.FilesSearched, s.FilesSkipped,
		s.FilesWithHits, s.FilesUpdated, s.LinesWithHits, s.Hits,
		st.Elapsed.Milliseconds(), errText,
		id)
	if err != nil {
		return fmt.Errorf("finish search run %d: %w", id, err)
	}
	return nil
}

// List returns runs newest first, skipping offset rows.
func List(ctx context.Context, db *sql.DB, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, generation, triggered_by, started_at, finished_at, status,
		       roots, filespecs, match_text, replace_text,
		       dirs_searched, dirs_skipped, files_searched, files_skipped,
		       files_with_hits, files_updated, lines_with_hits, hits,
		       COALESCE(duration_ms, 0), COALESCE(error, '')
		FROM search_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query search runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run              Run
			gen, started     int64
			finished         sql.NullInt64
			roots, filespecs string
			replace          sql.NullString
		)
		s := &run.Stats
		if err := rows.Scan(&run.ID, &gen, &run.TriggeredBy, &started, &finished, &run.Status,
			&roots, &filespecs, &run.Match, &replace,
			&s.DirsSearched, &s.DirsSkipped, &s.FilesSearched, &s.FilesSkipped,
			&s.FilesWithHits, &s.FilesUpdated, &s.LinesWithHits, &s.Hits,
			&run.DurationMs, &run.Error); err != nil {
			return nil, fmt.Errorf("scan search run: %w", err)
		}
		run.Generation = uint64(gen)
		run.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			run.FinishedAt = &t
		}
		run.Roots = splitNonEmpty(roots)
		run.Filespecs = splitNonEmpty(filespecs)
		if replace.Valid {
			run.Replace = &replace.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Count returns the number of recorded runs.
func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count search runs: %w", err)
	}
	return n, nil
}

// MarkStaleRunsFailed marks any search_runs rows still in 'running' state as
// 'failed'. It is called once at startup in case a previous process died
// mid-search.
func MarkStaleRunsFailed(ctx context.Context, db *sql.DB) error {
	res, err := db.ExecContext(ctx, `
		UPDATE search_runs
		SET status = 'failed', finished_at = ?, error = 'interrupted'
		WHERE status = 'running'`,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale search runs as failed", "count", n)
	}
	return nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// Totals aggregates the runs that finished.
type Totals struct {
	Runs          int64 `json:"runs"`
	Hits          int64 `json:"hits"`
	FilesSearched int64 `json:"files_searched"`
	FilesUpdated  int64 `json:"files_updated"`
	Failed        int64 `json:"failed"`
}

// Sum returns the totals over runs started at or after since. A zero since
// covers every run.
func Sum(ctx context.Context, db *sql.DB, since time.Time) (Totals, error) {
	var from int64
	if !since.IsZero() {
		from = since.UnixMilli()
	}
	var t Totals
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(hits), 0),
		       COALESCE(SUM(files_searched), 0),
		       COALESCE(SUM(files_updated), 0),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM search_runs
		WHERE status != 'running' AND started_at >= ?`, from).
		Scan(&t.Runs, &t.Hits, &t.FilesSearched, &t.FilesUpdated, &t.Failed)
	if err != nil {
		return Totals{}, fmt.Errorf("sum search runs: %w", err)
	}
	return t, nil
}
