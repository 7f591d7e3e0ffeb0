// Package search implements the asynchronous search/replace engine: a single
// background worker per engine walks the roots, scans matching files line by
// line and streams its output back to the consumer in throttled batches.
package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/eargollo/frisk/internal/backup"
	"github.com/eargollo/frisk/internal/pattern"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("search engine is closed")

// ErrNoActiveSearch is returned by Stop when no search is running.
var ErrNoActiveSearch = errors.New("no search is running")

var errFileTooLarge = errors.New("file exceeds size limit")

// Options configures an Engine. All callbacks run on the engine's dispatcher
// goroutine, one at a time, in the order the worker produced them. They must
// not call Wait or Close.
type Options struct {
	// OnPoke receives output batches. Pokes of an older generation may still
	// arrive after a new search started; use IsCurrent to drop them.
	OnPoke func(Poke)
	// OnState receives the running/idle transitions of each run.
	OnState func(State)
	// PokeInterval throttles progress deliveries. Zero selects
	// DefaultPokeInterval; a negative value delivers after every file.
	PokeInterval time.Duration
	// Now is the clock used for throttling and timing. Defaults to time.Now.
	Now func() time.Time
}

// Engine owns at most one worker at a time. It is safe for concurrent use.
type Engine struct {
	opts  Options
	gen   atomic.Uint64
	index Index

	mu      sync.Mutex // serialises Submit, Cancel and Close
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	running atomic.Bool

	statsMu sync.Mutex
	last    Stats

	box        *mailbox[func()]
	dispatched chan struct{}
}

// New creates an Engine and starts its dispatcher.
func New(opts Options) *Engine {
	if opts.PokeInterval == 0 {
		opts.PokeInterval = DefaultPokeInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		opts:       opts,
		box:        newMailbox[func()](),
		dispatched: make(chan struct{}),
	}
	go e.dispatch()
	return e
}

func (e *Engine) dispatch() {
	defer close(e.dispatched)
	for {
		fn, ok := e.box.Pop()
		if !ok {
			return
		}
		fn()
	}
}

// Submit stops any running search, clears the index and starts a new worker
// for req. It returns the generation of the new search.
func (e *Engine) Submit(req Request) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}
	e.stopLocked()
	e.index.Clear()

	gen := e.gen.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.running.Store(true)

	r := e.newRun(gen, req.clone())
	go func() {
		defer close(done)
		st := r.execute(ctx)

		e.statsMu.Lock()
		e.last = st.Stats
		e.statsMu.Unlock()
		e.running.Store(false)
		r.notify(st)
	}()
	return gen, nil
}

// Cancel bumps the generation and stops the running search, waiting for its
// worker to exit. Without a running search only the generation changes.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen.Add(1)
	e.stopLocked()
}

// Stop cancels the running search like Cancel and returns its generation.
// It fails with ErrNoActiveSearch when idle.
func (e *Engine) Stop() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil || !e.running.Load() {
		return 0, ErrNoActiveSearch
	}
	gen := e.gen.Add(1) - 1
	e.stopLocked()
	return gen, nil
}

func (e *Engine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel, e.done = nil, nil
}

// Generation returns the current search generation.
func (e *Engine) Generation() uint64 {
	return e.gen.Load()
}

// IsCurrent reports whether p belongs to the current generation.
func (e *Engine) IsCurrent(p Poke) bool {
	return p.Generation == e.gen.Load()
}

// Running reports whether a worker is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Index returns the result index of the current search.
func (e *Engine) Index() *Index {
	return &e.index
}

// Lookup maps an offset of the output stream to the entry rendered there.
func (e *Engine) Lookup(offset int64) (Entry, bool) {
	return e.index.Lookup(offset)
}

// LastStats returns the statistics of the most recent finished run.
func (e *Engine) LastStats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.last
}

// Wait blocks until the running search (if any) has finished and every
// callback it produced has been delivered.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}

	barrier := make(chan struct{})
	if e.post(func() { close(barrier) }) {
		<-barrier
	}
}

// Close cancels any running search, delivers the callbacks already queued
// and stops the dispatcher.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen.Add(1)
	e.stopLocked()
	e.mu.Unlock()

	e.box.Close()
	<-e.dispatched
}

func (e *Engine) post(fn func()) bool {
	return e.box.Push(fn)
}

func (e *Engine) newRun(gen uint64, req Request) *run {
	r := &run{
		gen:    gen,
		req:    req,
		index:  &e.index,
		now:    e.opts.Now,
		render: newRenderer(req),
	}
	r.out = newFlusher(gen, e.opts.PokeInterval, e.opts.Now, func(p Poke) {
		e.post(func() {
			if e.opts.OnPoke != nil {
				e.opts.OnPoke(p)
			}
		})
	})
	r.notify = func(st State) {
		e.post(func() {
			if e.opts.OnState != nil {
				e.opts.OnState(st)
			}
		})
	}
	return r
}

// run is the state of one worker. Everything here is touched by the worker
// goroutine only.
type run struct {
	gen    uint64
	req    Request
	index  *Index
	now    func() time.Time
	out    *flusher
	render *renderer
	notify func(State)

	stats Stats
}

// execute performs the search and returns the idle state to report.
func (r *run) execute(ctx context.Context) State {
	started := r.now()
	st := State{Generation: r.gen, Request: r.req, StartedAt: started}

	err := r.search(ctx, st)

	st.Stats = r.stats
	st.Elapsed = r.now().Sub(started)
	switch {
	case errors.Is(err, context.Canceled):
		st.Outcome = OutcomeCancelled
	case err != nil:
		st.Outcome = OutcomeFailed
		st.Err = err
	default:
		st.Outcome = OutcomeCompleted
		r.emitText(TextSpan{Text: r.stats.Summary(r.req.Flags.Replace, st.Elapsed), Kind: SpanText})
		r.out.force(r.stats, true)
	}

	slog.Info("search finished",
		"generation", r.gen,
		"outcome", st.Outcome,
		"hits", r.stats.Hits,
		"files_searched", r.stats.FilesSearched,
		"elapsed", st.Elapsed)
	return st
}

func (r *run) search(ctx context.Context, st State) error {
	files, err := pattern.CompileFilespecs(r.req.Filespecs, r.req.Flags.FilespecRegex, r.req.Flags.FilespecCaseSensitive)
	if err != nil {
		return r.configError(err)
	}
	match, err := pattern.CompileMatch(r.req.Match, r.req.Flags.MatchRegex, r.req.Flags.MatchCaseSensitive)
	if err != nil {
		return r.configError(err)
	}
	excludes, err := pattern.CompileExcludes(r.req.Excludes)
	if err != nil {
		return r.configError(err)
	}

	slog.Info("search started",
		"generation", r.gen,
		"paths", r.req.Paths,
		"filespecs", r.req.Filespecs,
		"match", r.req.Match,
		"replace", r.req.Flags.Replace)

	st.Running = true
	st.Outcome = OutcomeRunning
	r.notify(st)

	sc := &scanner{
		match:        match,
		replace:      r.req.Replace,
		doReplace:    r.req.Flags.Replace,
		contextLines: r.req.ContextLines,
	}
	w := newWalker(r.req.Paths, r.req.Flags.Recursive, excludes, &r.stats)

	for fi := range w.Files(ctx) {
		if files.Match(filepath.Base(fi.Path)) && r.searchFile(sc, fi) {
			r.stats.FilesSearched++
		} else {
			r.stats.FilesSkipped++
		}
		if err := r.out.poke(ctx, r.stats); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// configError reports a pattern that failed to compile and ends the run.
func (r *run) configError(err error) error {
	r.emitText(TextSpan{Text: err.Error() + "\n", Kind: SpanError})
	r.out.force(r.stats, true)
	slog.Warn("search rejected", "generation", r.gen, "error", err)
	return err
}

// searchFile scans one file. It reports false when the file was skipped.
func (r *run) searchFile(sc *scanner, fi FileInfo) bool {
	if r.req.MaxFileSize > 0 && fi.Size > r.req.MaxFileSize {
		r.warn(fi.Path, errFileTooLarge, "Skipping file larger than %s: %s",
			humanize.Bytes(uint64(r.req.MaxFileSize)), fi.Path)
		return false
	}

	contents, err := os.ReadFile(fi.Path)
	if err != nil {
		r.warn(fi.Path, err, "Couldn't read file: %s", fi.Path)
		return false
	}

	res := sc.scan(fi.Path, contents, r.emit)
	r.stats.Hits += res.hits
	r.stats.LinesWithHits += res.linesWithHits
	if res.linesWithHits > 0 {
		r.stats.FilesWithHits++
	}

	if res.changed {
		r.rewrite(fi.Path, contents, res.updated)
	}
	return true
}

// rewrite saves the replaced contents, writing the backup first when asked.
// A file whose backup cannot be written is left untouched.
func (r *run) rewrite(path string, original, updated []byte) {
	if r.req.Flags.Backup {
		if name, err := backup.Write(path, r.req.BackupExtension, original); err != nil {
			r.warn(path, err, "Couldn't write backup file (skipping replacement): %s", name)
			return
		}
	}
	if err := backup.Overwrite(path, updated); err != nil {
		r.warn(path, err, "Couldn't write to file: %s", path)
		return
	}
	r.stats.FilesUpdated++
}

// warn emits a per-file error line and hands it off right away.
func (r *run) warn(path string, err error, format string, args ...any) {
	slog.Warn("search: file error", "path", path, "error", err)
	r.emitText(warning(format, args...))
	r.out.force(r.stats, false)
}

// emit renders e, records it in the index and queues its text.
func (r *run) emit(e Entry) {
	spans, n := r.render.render(e)
	r.index.Append(e, n)
	r.out.add(spans...)
}

// emitText queues output that is not an entry.
func (r *run) emitText(span TextSpan) {
	r.index.Advance(len(span.Text))
	r.out.add(span)
}
