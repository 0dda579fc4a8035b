package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/TimeKeeper/internal/client/tracker"
)

// SyncService defines the synchronization operations required by the
// SyncHandler.
type SyncService interface {
	SyncAll(ctx context.Context) (entries, projects tracker.SyncReport)
	Refresh(ctx context.Context) bool
	BootstrapIdentity(ctx context.Context) string
	SetUserID(id string) error
	SetOnlineStatus(ctx context.Context, online bool)
	IsOnline() bool
}

// SyncHandler handles synchronization, identity and connectivity requests.
type SyncHandler struct {
	SyncService SyncService
}

// SyncResponse is returned by POST /api/sync.
type SyncResponse struct {
	Entries  tracker.SyncReport `json:"entries"`
	Projects tracker.SyncReport `json:"projects"`
}

// Sync handles POST /api/sync. Pushing while offline is allowed; the remote
// errors simply leave records pending.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	entries, projects := h.SyncService.SyncAll(r.Context())
	writeJSON(w, http.StatusOK, SyncResponse{Entries: entries, Projects: projects})
}

// Refresh handles POST /api/refresh.
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ok := h.SyncService.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// Identity handles POST /api/identity. A body with a user_id caches that
// identity; an empty one asks the remote store for the signed-in user.
func (h *SyncHandler) Identity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	id := req.UserID
	if id != "" {
		if err := h.SyncService.SetUserID(id); err != nil {
			writeError(w, err)
			return
		}
	} else if id = h.SyncService.BootstrapIdentity(r.Context()); id == "" {
		writeError(w, tracker.ErrNoOwnerIdentity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": id})
}

// Connectivity handles POST /api/connectivity with {"online": bool}. Going
// online syncs before the response is written.
func (h *SyncHandler) Connectivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online *bool `json:"online"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Online == nil {
		http.Error(w, "online is required", http.StatusBadRequest)
		return
	}
	h.SyncService.SetOnlineStatus(r.Context(), *req.Online)
	writeJSON(w, http.StatusOK, map[string]bool{"online": h.SyncService.IsOnline()})
}
