// Package api serves the three same-origin JSON endpoints used by the
// preparation pages: the password gate, the text chat and the realtime
// credential proxy.
//
// Response shapes are fixed by the browser client. Errors are reported in the
// body next to the status code, never as plain text.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrWong99/strategydeck/internal/chat"
	"github.com/MrWong99/strategydeck/internal/observe"
)

// maxRequestBody bounds every JSON request body.
const maxRequestBody = 64 << 10

// PasswordChecker validates a submitted password.
type PasswordChecker interface {
	Check(password string) bool
}

// Answerer produces chat answers. [chat.Service] implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) chat.Answer
	AnswerOffline(ctx context.Context, question string, cause error) chat.Answer
}

// SessionMinter creates upstream realtime sessions. [realtime.Minter]
// implements it.
type SessionMinter interface {
	Mint(ctx context.Context) (json.RawMessage, error)
}

// Handlers holds the endpoint dependencies.
type Handlers struct {
	gate    PasswordChecker
	chat    Answerer
	minter  SessionMinter
	metrics *observe.Metrics
}

// New creates the endpoint handlers. A nil metrics uses [observe.DefaultMetrics].
func New(gate PasswordChecker, answerer Answerer, minter SessionMinter, metrics *observe.Metrics) *Handlers {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Handlers{gate: gate, chat: answerer, minter: minter, metrics: metrics}
}

// Register adds the API routes to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth", h.Auth)
	mux.HandleFunc("POST /api/ai-agent", h.AIAgent)
	mux.HandleFunc("POST /api/voice-agent", h.VoiceAgent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
