package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"rentoffice/backend/internal/service/appointments"
	"rentoffice/backend/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps workflow errors onto HTTP statuses. Every error
// kind stays a distinct, recoverable outcome for the caller.
func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *appointments.ValidationError
	var pErr *appointments.PolicyError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "the requested time overlaps an existing appointment; pick a different slot")
	case errors.As(err, &pErr):
		writeError(w, http.StatusUnprocessableEntity, "policy_violation", pErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
