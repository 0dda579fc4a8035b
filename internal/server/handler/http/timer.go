package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/TimeKeeper/internal/client/timer"
	"github.com/atinyakov/TimeKeeper/internal/models"
)

// TimerService is the part of the tracker the timer endpoints need.
type TimerService interface {
	ActiveTimer() *models.ActiveTimer
	StartTimer(description string, projectID *string) error
	StopTimer(ctx context.Context) (*models.TimeEntry, error)
	UserID() string
	IsOnline() bool
	IsSyncing() bool
	PendingCounts() (entries, projects int)
	PendingDeletions() int
}

// Ticker projects elapsed time of the running timer.
type Ticker interface {
	Current() timer.Tick
}

// TimerHandler serves the running timer and the overall status.
type TimerHandler struct {
	Service TimerService
	Ticker  Ticker
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	UserID           string              `json:"user_id"`
	Online           bool                `json:"online"`
	Syncing          bool                `json:"syncing"`
	PendingEntries   int                 `json:"pending_entries"`
	PendingProjects  int                 `json:"pending_projects"`
	PendingDeletions int                 `json:"pending_deletions"`
	Active           *models.ActiveTimer `json:"active"`
	Elapsed          string              `json:"elapsed"`
	ElapsedSeconds   int64               `json:"elapsed_seconds"`
}

// StartRequest is the body of POST /api/timer/start.
type StartRequest struct {
	Description string  `json:"description"`
	ProjectID   *string `json:"project_id"`
}

// Status handles GET /api/status.
func (h *TimerHandler) Status(w http.ResponseWriter, r *http.Request) {
	tick := h.Ticker.Current()
	entries, projects := h.Service.PendingCounts()
	writeJSON(w, http.StatusOK, StatusResponse{
		UserID:           h.Service.UserID(),
		Online:           h.Service.IsOnline(),
		Syncing:          h.Service.IsSyncing(),
		PendingEntries:   entries,
		PendingProjects:  projects,
		PendingDeletions: h.Service.PendingDeletions(),
		Active:           tick.Active,
		Elapsed:          tick.Format(),
		ElapsedSeconds:   int64(tick.Elapsed.Seconds()),
	})
}

// Start handles POST /api/timer/start. Starting while a timer runs returns
// the running timer unchanged.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Service.StartTimer(req.Description, req.ProjectID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Service.ActiveTimer())
}

// Stop handles POST /api/timer/stop. It answers 204 when no timer runs.
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Service.StopTimer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
