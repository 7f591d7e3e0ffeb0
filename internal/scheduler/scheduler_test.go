package scheduler

import (
	"testing"
	"time"
)

func TestSyncRegistersJobs(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	err := s.Sync([]Job{
		{Name: "nightly", Expr: "0 2 * * *", Run: func() {}},
		{Name: "hourly", Expr: "@hourly", Run: func() {}},
		{Name: "manual", Expr: "", Run: func() {}},
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("jobs = %+v, want 2", jobs)
	}
	if jobs[0].Name != "hourly" || jobs[1].Name != "nightly" {
		t.Errorf("jobs not sorted by name: %+v", jobs)
	}
	next := s.NextRunAt("nightly")
	if next == nil {
		t.Fatal("nightly has no next run")
	}
	if next.Hour() != 2 || next.Minute() != 0 || !next.After(time.Now()) {
		t.Errorf("next nightly run = %v", next)
	}
	if s.NextRunAt("manual") != nil {
		t.Error("a job without schedule must not be registered")
	}
}

func TestSyncReplacesJobs(t *testing.T) {
	s := New()
	if err := s.Sync([]Job{{Name: "a", Expr: "@daily", Run: func() {}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync([]Job{{Name: "b", Expr: "@weekly", Run: func() {}}}); err != nil {
		t.Fatal(err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "b" || jobs[0].Expr != "@weekly" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestSyncRejectsInvalidExpression(t *testing.T) {
	s := New()
	if err := s.Sync([]Job{{Name: "a", Expr: "@daily", Run: func() {}}}); err != nil {
		t.Fatal(err)
	}

	err := s.Sync([]Job{
		{Name: "ok", Expr: "@hourly", Run: func() {}},
		{Name: "bad", Expr: "not a cron", Run: func() {}},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid expression")
	}
	if jobs := s.Jobs(); len(jobs) != 1 || jobs[0].Name != "a" {
		t.Errorf("a failed Sync must keep the old jobs, got %+v", jobs)
	}
}

func TestJobFires(t *testing.T) {
	s := New()
	fired := make(chan struct{}, 1)
	if err := s.Sync([]Job{{Name: "tick", Expr: "@every 1s", Run: func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}}}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}
}
