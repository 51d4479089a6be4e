package api

import (
	"net/http"

	"github.com/MrWong99/strategydeck/internal/observe"
)

// ActionEphemeralToken is the only action POST /api/voice-agent accepts.
const ActionEphemeralToken = "get-ephemeral-token"

type voiceRequest struct {
	Action string `json:"action"`
}

// VoiceAgent handles POST /api/voice-agent. The upstream session body is
// relayed byte for byte.
func (h *Handlers) VoiceAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req voiceRequest
	if err := decode(w, r, &req); err != nil {
		h.metrics.RecordTokenRequest(ctx, "error")
		observe.Logger(ctx).Error("voice-agent: decode request", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Details: err.Error()})
		return
	}
	if req.Action != ActionEphemeralToken {
		h.metrics.RecordTokenRequest(ctx, "invalid_action")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid action"})
		return
	}

	session, err := h.minter.Mint(ctx)
	if err != nil {
		h.metrics.RecordTokenRequest(ctx, "error")
		observe.Logger(ctx).Error("voice-agent: mint session", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Details: err.Error()})
		return
	}

	h.metrics.RecordTokenRequest(ctx, "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(session)
}
