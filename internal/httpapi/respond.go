package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {message, error}.  code is a stable machine-readable
// identifier, message is for humans.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{Message: message, Error: code})
}

// writeInternal is the only 500 body the API ever sends.  Details stay in
// the server log.
func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
