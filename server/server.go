// ABOUTME: sitegen HTTP API: streaming generation, edit merges, and project and version reads.
// ABOUTME: Generations run detached from the request so persistence finishes even if the client leaves.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/merge"
	"github.com/2389-research/sitegen/persist"
	"github.com/2389-research/sitegen/pipeline"
	"github.com/2389-research/sitegen/store"
)

// Runner starts a generation run.
type Runner interface {
	Run(ctx context.Context, cfg pipeline.Config) <-chan genevent.Event
}

// Config wires the server's dependencies. Stylesheet overrides where style
// edits are written. Publisher is optional.
type Config struct {
	Addr          string
	Store         *store.Store
	Runner        Runner
	Keepalive     time.Duration
	Stylesheet    string
	FileCacheSize int
	Publisher     persist.Publisher
}

// Server is the sitegen HTTP API. inflight holds projects with a generation
// being streamed or persisted; bg tracks generations still running after
// their client disconnected.
type Server struct {
	store     *store.Store
	files     *store.FileCache
	runner    Runner
	adapter   *persist.Adapter
	edits     *persist.EditCommitter
	keepalive time.Duration
	addr      string
	router    chi.Router

	mu       sync.Mutex
	inflight map[string]struct{}
	bg       sync.WaitGroup
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("server: runner is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7780"
	}
	files, err := store.NewFileCache(cfg.Store, cfg.FileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("file cache: %w", err)
	}

	var adapterOpts []persist.Option
	if cfg.Publisher != nil {
		adapterOpts = append(adapterOpts, persist.WithPublisher(cfg.Publisher))
	}

	s := &Server{
		store:     cfg.Store,
		files:     files,
		runner:    cfg.Runner,
		adapter:   persist.NewAdapter(cfg.Store, adapterOpts...),
		edits:     persist.NewEditCommitter(cfg.Store, files, merge.Merger{Stylesheet: cfg.Stylesheet}, cfg.Publisher),
		keepalive: cfg.Keepalive,
		addr:      cfg.Addr,
		inflight:  make(map[string]struct{}),
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down and waits
// for detached generations to finish persisting.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("component=server action=listen addr=%s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Wait blocks until every detached generation has been persisted.
func (s *Server) Wait() {
	s.bg.Wait()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/me", s.handleMe)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleProjectList)
			r.Post("/", s.handleProjectCreate)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleProjectGet)
				r.Post("/generate", s.handleGenerate)
				r.Post("/edits", s.handleEdits)
				r.Get("/versions", s.handleVersionList)
				r.Get("/versions/{versionNumber}/files", s.handleVersionFiles)
			})
		})
	})

	return r
}

// claim marks projectID as generating. It reports false if it already was.
func (s *Server) claim(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[projectID]; busy {
		return false
	}
	s.inflight[projectID] = struct{}{}
	return true
}

func (s *Server) release(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, projectID)
}
