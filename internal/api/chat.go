package api

import (
	"fmt"
	"net/http"
)

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AIAgent handles POST /api/ai-agent. Every readable request gets a 200 with
// an answer, upstream or offline; only a missing question is rejected.
func (h *Handlers) AIAgent(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		a := h.chat.AnswerOffline(r.Context(), "", fmt.Errorf("api: decode question: %w", err))
		writeJSON(w, http.StatusOK, chatResponse{Response: a.Text})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Question is required"})
		return
	}

	a := h.chat.Answer(r.Context(), req.Question)
	writeJSON(w, http.StatusOK, chatResponse{Response: a.Text})
}
