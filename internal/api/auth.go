package api

import (
	"encoding/json"
	"net/http"

	"github.com/MrWong99/strategydeck/internal/observe"
)

type authRequest struct {
	Password json.RawMessage `json:"password"`
}

// password returns the submitted password. Anything but a JSON string
// yields ok=false.
func (r authRequest) password() (string, bool) {
	var s string
	if len(r.Password) == 0 || r.Password[0] != '"' || json.Unmarshal(r.Password, &s) != nil {
		return "", false
	}
	return s, true
}

type authResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Auth handles POST /api/auth. A wrong password is still a 200; only an
// unreadable body is a server error.
func (h *Handlers) Auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decode(w, r, &req); err != nil {
		observe.Logger(r.Context()).Warn("auth: decode request", "err", err)
		writeJSON(w, http.StatusInternalServerError, authResponse{Error: "Authentication failed"})
		return
	}

	pw, isString := req.password()
	ok := isString && h.gate.Check(pw)
	h.metrics.RecordAuthAttempt(r.Context(), ok)
	if !ok {
		writeJSON(w, http.StatusOK, authResponse{Error: "Invalid password"})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Success: true})
}
