// ABOUTME: Read and create endpoints for the caller, projects, versions, and version files.
package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/sitegen/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		log.Printf("component=server action=load_user_failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		log.Printf("component=server action=list_projects_failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	p, err := s.store.CreateProject(r.Context(), userFrom(r.Context()).ID, name)
	if err != nil {
		log.Printf("component=server action=create_project_failed err=%v", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	log.Printf("component=server action=project_created project=%s owner=%s", p.ID, p.OwnerID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ownedProject(w, r, chi.URLParam(r, "projectID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVersionList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ownedProject(w, r, chi.URLParam(r, "projectID"))
	if !ok {
		return
	}
	versions, err := s.store.ListVersions(r.Context(), p.ID)
	if err != nil {
		log.Printf("component=server action=list_versions_failed project=%s err=%v", p.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if versions == nil {
		versions = []store.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleVersionFiles serves a version's files. "latest" names the newest version.
func (s *Server) handleVersionFiles(w http.ResponseWriter, r *http.Request) {
	p, ok := s.ownedProject(w, r, chi.URLParam(r, "projectID"))
	if !ok {
		return
	}

	var (
		v   store.Version
		err error
	)
	if raw := chi.URLParam(r, "versionNumber"); raw == "latest" {
		v, err = s.store.LatestVersion(r.Context(), p.ID)
	} else {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "version number must be a positive integer")
			return
		}
		v, err = s.store.VersionByNumber(r.Context(), p.ID, n)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "version not found")
		return
	}
	if err != nil {
		log.Printf("component=server action=load_version_failed project=%s err=%v", p.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	files, err := s.files.Files(r.Context(), v)
	if err != nil {
		log.Printf("component=server action=load_files_failed version=%s err=%v", v.ID, err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if files == nil {
		files = []store.File{}
	}
	writeJSON(w, http.StatusOK, struct {
		Version store.Version `json:"version"`
		Files   []store.File  `json:"files"`
	}{v, files})
}
