package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/frisk/internal/api/handlers"
	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/scheduler"
	"github.com/eargollo/frisk/internal/search"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	DB      *sql.DB
	Config  *config.Store
	Engine  *search.Engine
	Hub     *handlers.Hub
	Sched   *scheduler.Scheduler
	Start   handlers.StartFunc
	Version string
	// Launch opens a result in the editor; nil uses the command template.
	Launch func(tmpl, path string, line int) error
}

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// NewRouter wires all routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	statusH := &handlers.StatusHandler{Engine: d.Engine, Sched: d.Sched, Version: d.Version}
	searchesH := &handlers.SearchesHandler{Engine: d.Engine, Config: d.Config, Start: d.Start}
	resultsH := &handlers.ResultsHandler{Engine: d.Engine}
	historyH := &handlers.HistoryHandler{DB: d.DB}
	statsH := &handlers.StatsHandler{DB: d.DB}
	backupsH := &handlers.BackupsHandler{Config: d.Config}
	configH := &handlers.ConfigHandler{Config: d.Config}
	openH := &handlers.OpenHandler{Engine: d.Engine, Config: d.Config, Launch: d.Launch}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/searches", searchesH.Create)
		r.Delete("/searches/current", searchesH.Cancel)

		r.Get("/events", d.Hub.ServeHTTP)

		r.Get("/results", resultsH.List)
		r.Get("/results/lookup", resultsH.Lookup)
		r.Post("/open", openH.ServeHTTP)

		r.Get("/history", historyH.List)
		r.Get("/stats", statsH.ServeHTTP)

		r.Get("/backups", backupsH.List)
		r.Post("/backups/restore", backupsH.Restore)

		r.Get("/config", configH.Get)
		r.Get("/saved", configH.ListSaved)
		r.Put("/saved/{name}", configH.PutSaved)
		r.Delete("/saved/{name}", configH.DeleteSaved)
	})

	return r
}

// New returns a Server ready to Run.
func New(addr string, d Deps) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled. Request
// contexts derive from ctx so event streams end on shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
