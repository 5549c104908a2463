// Package anchorhttp is the net/http façade over the anchor registry:
// issue, subject lookup, and revoke, each returning RFC 7807 problem
// details on failure. It holds no derivation logic of its own — every
// request is a thin translation into internal/anchor calls.
package anchorhttp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// problemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	p := &problemDetail{
		Type:   fmt.Sprintf("https://pact-protocol.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

func writeNotFound(w http.ResponseWriter, detail string) {
	writeProblem(w, http.StatusNotFound, "Not Found", detail)
}

func writeInternal(w http.ResponseWriter, err error) {
	slog.Error("anchorhttp: internal error", "error", err)
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "an unexpected error occurred")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
