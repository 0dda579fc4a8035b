package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/TimeKeeper/internal/client/tracker"
)

// statusFor maps tracker errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrDailyLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tracker.ErrNoOwnerIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, tracker.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return false
	}
	return true
}
