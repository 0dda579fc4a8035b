package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/TimeKeeper/internal/client/tracker"
	"github.com/atinyakov/TimeKeeper/internal/models"
)

// EntryService is the part of the tracker the entry endpoints need.
type EntryService interface {
	Entries() []models.TimeEntry
	FetchTodayEntries(ctx context.Context) bool
	FetchAllEntries(ctx context.Context) bool
	UpdateEntry(ctx context.Context, id string, upd models.EntryUpdate) (*models.TimeEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	DailySummary(day time.Time) tracker.DaySummary
	TodaySummary() tracker.DaySummary
}

// EntryHandler serves recorded time entries and daily summaries.
type EntryHandler struct {
	Service  EntryService
	// Location interprets ?day=. Nil means time.Local.
	Location *time.Location
}

// EntryUpdateRequest is the body of PATCH /api/entries/{id}. Duration may
// be given in seconds or as "HH:MM[:SS]".
type EntryUpdateRequest struct {
	Description *string `json:"description"`
	ProjectID   *string `json:"project_id"`
	Duration    *int64  `json:"duration"`
	Clock       *string `json:"clock"`
}

// List handles GET /api/entries?scope=today|all. Without a scope the local
// collection is returned as is. A failed fetch is not an error; the local
// collection is still served.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("scope") {
	case "":
	case "today":
		h.Service.FetchTodayEntries(r.Context())
	case "all":
		h.Service.FetchAllEntries(r.Context())
	default:
		http.Error(w, "scope must be today or all", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Service.Entries())
}

// Summary handles GET /api/summary?day=YYYY-MM-DD. The default is today.
func (h *EntryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		writeJSON(w, http.StatusOK, h.Service.TodaySummary())
		return
	}
	loc := h.Location
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		http.Error(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.Service.DailySummary(t))
}

// Update handles PATCH /api/entries/{id}.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req EntryUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	upd := models.EntryUpdate{
		Description: req.Description,
		ProjectID:   req.ProjectID,
		Duration:    req.Duration,
	}
	if req.Clock != nil {
		secs, err := models.ParseDuration(*req.Clock)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		upd.Duration = &secs
	}

	entry, err := h.Service.UpdateEntry(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil {
		http.Error(w, "entry not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/entries/{id}.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
