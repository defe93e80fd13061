// ABOUTME: Edit-merge endpoint: applies a batch of visual-editor changes as a new project version.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/sitegen/merge"
	"github.com/2389-research/sitegen/persist"
)

type editRequest struct {
	ProjectID string                `json:"projectId"`
	Changes   []merge.PendingChange `json:"changes"`
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.ProjectID != "" && req.ProjectID != projectID {
		writeError(w, http.StatusBadRequest, "bad_request", "projectId does not match the URL")
		return
	}
	for i, c := range req.Changes {
		if err := c.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_change", fmt.Sprintf("change %d: %v", i, err))
			return
		}
	}

	project, ok := s.ownedProject(w, r, projectID)
	if !ok {
		return
	}

	res, err := s.edits.Apply(r.Context(), project.ID, req.Changes)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, persist.ErrNoChanges):
		writeError(w, http.StatusBadRequest, "no_changes", err.Error())
	case errors.Is(err, persist.ErrNoCompletedVersion):
		writeError(w, http.StatusNotFound, "no_completed_version", err.Error())
	case errors.Is(err, persist.ErrVersionNotComplete):
		writeError(w, http.StatusConflict, "version_not_complete", err.Error())
	case errors.Is(err, persist.ErrPersistFailed):
		log.Printf("component=server action=edit_failed project=%s err=%v", project.ID, err)
		writeError(w, http.StatusInternalServerError, "persist_failed", "failed to save the edited version")
	default:
		log.Printf("component=server action=edit_failed project=%s err=%v", project.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
