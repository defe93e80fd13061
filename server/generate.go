// ABOUTME: Pipeline endpoint: authorizes the caller, opens a version, and streams generation events as SSE.
// ABOUTME: The run and its persistence use a context detached from the request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/persist"
	"github.com/2389-research/sitegen/pipeline"
	"github.com/2389-research/sitegen/store"
	"github.com/2389-research/sitegen/stream"
)

type generateRequest struct {
	ProjectID string          `json:"projectId"`
	Config    pipeline.Config `json:"config"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFrom(ctx)
	projectID := chi.URLParam(r, "projectID")

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.ProjectID != "" && req.ProjectID != projectID {
		writeError(w, http.StatusBadRequest, "bad_request", "projectId does not match the URL")
		return
	}
	cfg, err := req.Config.Assemble()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}

	project, ok := s.ownedProject(w, r, projectID)
	if !ok {
		return
	}

	// Re-read the balance; the one loaded during auth may be stale.
	fresh, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		log.Printf("component=server action=load_user_failed user=%s err=%v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if fresh.Credits < 1 {
		writeError(w, http.StatusPaymentRequired, "quota_exhausted", "no generation credits remaining")
		return
	}

	if !s.claim(project.ID) {
		writeError(w, http.StatusConflict, "generation_in_progress", "a generation is already running for this project")
		return
	}
	released := false
	defer func() {
		if !released {
			s.release(project.ID)
		}
	}()

	rawConfig, err := json.Marshal(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	version, err := s.store.CreateVersion(ctx, project.ID, store.TriggerGeneration)
	if err != nil {
		log.Printf("component=server action=create_version_failed project=%s err=%v", project.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "could not start generation")
		return
	}
	log.Printf("component=server action=generation_start project=%s version=%d user=%s", project.ID, version.Number, user.ID)

	// From here on the run belongs to the server, not to this request.
	runCtx := context.WithoutCancel(ctx)
	events := s.runner.Run(runCtx, cfg)
	tracked := s.adapter.Track(runCtx, persist.Run{
		VersionID:     version.ID,
		VersionNumber: version.Number,
		ProjectID:     project.ID,
		UserID:        user.ID,
		Config:        rawConfig,
		StartedAt:     time.Now(),
	}, events)

	s.bg.Add(1)
	released = true
	finish := func() {
		s.release(project.ID)
		s.bg.Done()
	}

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	sw := stream.NewWriter(ctx, w, s.keepalive)

	for {
		select {
		case e, ok := <-tracked:
			if !ok {
				if err := sw.Done(); err != nil {
					log.Printf("component=server action=stream_done_failed project=%s err=%v", project.ID, err)
				}
				finish()
				return
			}
			if err := sw.Send(e); err != nil {
				s.detach(project.ID, sw, tracked, finish, err)
				return
			}
			if genevent.IsTerminal(e) {
				log.Printf("component=server action=generation_end project=%s version=%d type=%s", project.ID, version.Number, e.EventType())
			}
		case <-ctx.Done():
			s.detach(project.ID, sw, tracked, finish, ctx.Err())
			return
		}
	}
}

// detach stops writing to a departed client while the run keeps going and
// is persisted in the background.
func (s *Server) detach(projectID string, sw *stream.Writer, tracked <-chan genevent.Event, finish func(), cause error) {
	sw.Close()
	log.Printf("component=server action=client_disconnected project=%s err=%v", projectID, cause)
	go func() {
		defer finish()
		for range tracked {
		}
	}()
}

// ownedProject loads the project and checks the caller owns it, writing
// the error response when not.
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request, projectID string) (store.Project, bool) {
	p, err := s.store.GetProject(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "project not found")
		return store.Project{}, false
	}
	if err != nil {
		log.Printf("component=server action=load_project_failed project=%s err=%v", projectID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return store.Project{}, false
	}
	if p.OwnerID != userFrom(r.Context()).ID {
		writeError(w, http.StatusForbidden, "forbidden", "project belongs to another user")
		return store.Project{}, false
	}
	return p, true
}
