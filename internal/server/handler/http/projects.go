package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/TimeKeeper/internal/models"
)

// ProjectService is the part of the tracker the project endpoints need.
type ProjectService interface {
	Projects() []models.Project
	FetchProjects(ctx context.Context) bool
	AddProject(ctx context.Context, name, color string) (models.Project, error)
	UpdateProject(ctx context.Context, id string, upd models.ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// ProjectHandler serves projects.
type ProjectHandler struct {
	Service ProjectService
}

// ProjectRequest is the body of POST /api/projects.
type ProjectRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// List handles GET /api/projects. ?refresh=1 reloads from the remote store
// first.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		h.Service.FetchProjects(r.Context())
	}
	writeJSON(w, http.StatusOK, h.Service.Projects())
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.AddProject(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Update handles PATCH /api/projects/{id}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd models.ProjectUpdate
	if !decode(w, r, &upd) {
		return
	}
	p, err := h.Service.UpdateProject(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/projects/{id}. Entries keep their project id.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
