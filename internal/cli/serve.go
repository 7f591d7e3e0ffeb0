package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eargollo/frisk/internal/api"
	"github.com/eargollo/frisk/internal/api/handlers"
	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/db"
	"github.com/eargollo/frisk/internal/history"
	"github.com/eargollo/frisk/internal/scheduler"
	"github.com/eargollo/frisk/internal/search"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled saved searches and run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	cfg := a.store.Get()
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	slog.Info("frisk starting",
		"version", a.version,
		"http_addr", addr,
		"db_path", cfg.DBPath,
		"saved_searches", len(cfg.SavedSearches))

	// ── Database ───────────────────────────────────────────────────────────
	database, err := db.OpenMigrated(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Runs left 'running' by a previous process are marked as failed.
	if err := history.MarkStaleRunsFailed(ctx, database); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}
	rec := history.NewRecorder(database)

	// ── Search engine ──────────────────────────────────────────────────────
	var (
		eng *search.Engine
		hub *handlers.Hub
	)
	eng = search.New(search.Options{
		OnPoke: func(p search.Poke) { hub.PublishPoke(p) },
		OnState: func(st search.State) {
			if err := rec.Record(context.Background(), st); err != nil {
				slog.Error("record search run", "generation", st.Generation, "error", err)
			}
			hub.PublishState(st)
		},
	})
	hub = handlers.NewHub(eng.Generation)

	start := func(ctx context.Context, req search.Request, by string) (uint64, error) {
		gen, err := eng.Submit(req)
		if err != nil {
			return 0, err
		}
		rec.Label(ctx, gen, by)
		slog.Info("search submitted", "generation", gen, "triggered_by", by)
		return gen, nil
	}

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	syncSchedules := func(c config.Config) {
		if err := sched.Sync(scheduledJobs(c, start)); err != nil {
			slog.Warn("scheduler: saved searches not updated", "error", err)
		}
	}
	syncSchedules(cfg)
	a.store.OnChange(syncSchedules)
	sched.Start()

	// ── HTTP server ────────────────────────────────────────────────────────
	srv := api.New(addr, api.Deps{
		DB:      database,
		Config:  a.store,
		Engine:  eng,
		Hub:     hub,
		Sched:   sched,
		Start:   start,
		Version: a.version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		eng.Close()
		return nil
	})
	err = g.Wait()
	slog.Info("frisk stopped")
	return err
}

// scheduledJobs turns every saved search with a schedule into a cron job.
func scheduledJobs(c config.Config, start handlers.StartFunc) []scheduler.Job {
	var jobs []scheduler.Job
	for _, s := range c.SavedSearches {
		if s.Schedule == "" {
			continue
		}
		jobs = append(jobs, scheduler.Job{
			Name: s.Name,
			Expr: s.Schedule,
			Run: func() {
				slog.Info("scheduled search triggered", "name", s.Name)
				req, err := s.Request(&c)
				if err != nil {
					slog.Warn("scheduled search", "name", s.Name, "error", err)
					return
				}
				if _, err := start(context.Background(), req, "schedule:"+s.Name); err != nil {
					slog.Warn("scheduled search start", "name", s.Name, "error", err)
				}
			},
		})
	}
	return jobs
}
