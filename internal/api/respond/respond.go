// Package respond centralizes JSON response writing and error mapping.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lifedash/lifedash/internal/model"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Detail writes the {"detail": ...} error body the API uses everywhere.
func Detail(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, map[string]string{"detail": detail})
}

// Error maps a service error onto its HTTP status. Unknown errors are
// internal and deliberately unechoed.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		Detail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		Detail(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrConflict):
		Detail(w, http.StatusConflict, err.Error())
	default:
		Detail(w, http.StatusInternalServerError, "Internal error")
	}
}
