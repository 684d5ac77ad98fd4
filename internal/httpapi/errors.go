package httpapi

import (
	"encoding/json"
	"net/http"

	"modelgate/pkg/types"
)

// writeJSONError writes a transport-level failure. Domain failures of
// /generate are not errors at this layer; they travel in a 200 body.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf(LevelError, "encode response: %v", err)
	}
}
