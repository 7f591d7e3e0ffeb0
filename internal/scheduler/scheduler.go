// Package scheduler runs saved searches on cron schedules.
package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named callback fired on a cron expression.
type Job struct {
	Name string
	Expr string
	Run  func()
}

// Scheduled describes a registered job and when it fires next.
type Scheduled struct {
	Name string     `json:"name"`
	Expr string     `json:"schedule"`
	Next *time.Time `json:"next_run_at,omitempty"`
}

// Scheduler wraps robfig/cron and tracks the jobs it owns by name.
type Scheduler struct {
	mu      sync.RWMutex
	c       *cron.Cron
	entries map[string]cron.EntryID
	exprs   map[string]string
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c:       cron.New(),
		entries: make(map[string]cron.EntryID),
		exprs:   make(map[string]string),
	}
}

// Sync replaces every registered job with jobs. Jobs with an empty
// expression are ignored. Nothing changes if any expression is invalid.
func (s *Scheduler) Sync(jobs []Job) error {
	for _, j := range jobs {
		if j.Expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(j.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q for %q: %w", j.Expr, j.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.c.Remove(id)
		delete(s.entries, name)
		delete(s.exprs, name)
	}
	for _, j := range jobs {
		if j.Expr == "" {
			continue
		}
		id, err := s.c.AddFunc(j.Expr, j.Run)
		if err != nil {
			return fmt.Errorf("invalid cron expression %q for %q: %w", j.Expr, j.Name, err)
		}
		s.entries[j.Name] = id
		s.exprs[j.Name] = j.Expr
		slog.Info("scheduler: job set", "name", j.Name, "cron", j.Expr)
	}
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// Jobs lists the registered jobs ordered by name.
func (s *Scheduler) Jobs() []Scheduled {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Scheduled, 0, len(s.entries))
	for name, id := range s.entries {
		sc := Scheduled{Name: name, Expr: s.exprs[name]}
		if entry := s.c.Entry(id); entry.ID != 0 && !entry.Next.IsZero() {
			t := entry.Next
			sc.Next = &t
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextRunAt returns the next time job name fires, or nil if it is not
// scheduled or the scheduler is stopped.
func (s *Scheduler) NextRunAt(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[name]
	if !ok {
		return nil
	}
	entry := s.c.Entry(id)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}
