// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

const (
	msgInvalidBody  = "Invalid request body"
	msgBodyTooLarge = "Request body too large"
)

// decode reads a JSON body into v. An empty body decodes to the zero value so
// field validation reports what is missing. On failure it writes the response
// and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, messageResponse{Message: msgBodyTooLarge})
		return false
	}
	h.logger.DebugContext(r.Context(), "malformed request body", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgInvalidBody})
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(payload)
}
