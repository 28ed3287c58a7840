package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/markdave123-py/intellbee/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error kind to its status code. The
// message after the kind prefix is what the client sees.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, detail(err, services.ErrValidation))
	case errors.Is(err, services.ErrAuth):
		writeError(w, http.StatusUnauthorized, detail(err, services.ErrAuth))
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, detail(err, services.ErrNotFound))
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, detail(err, services.ErrConflict))
	case errors.Is(err, services.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, detail(err, services.ErrTimeout))
	case errors.Is(err, services.ErrProvider):
		// provider message is passed through as-is
		writeError(w, http.StatusInternalServerError, detail(err, services.ErrProvider))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func detail(err, kind error) string {
	msg := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	if msg == "" {
		return kind.Error()
	}
	return msg
}

// decodeJSON reads an optional JSON body; an empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
