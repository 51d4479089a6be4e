package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/strategydeck/internal/resilience"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
	llmmock "github.com/MrWong99/strategydeck/pkg/provider/llm/mock"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d/%q, want 200/ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	ok := func(context.Context) error { return nil }
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "chat", Check: ok}, {Name: "realtime", Check: ok}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"chat": "ok", "realtime": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "chat", Check: ok},
				{Name: "realtime", Check: func(context.Context) error { return errors.New("no key") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"chat": "ok", "realtime": "fail: no key"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tc.checkers...), "/readyz")
			if code != tc.wantStatus {
				t.Errorf("status = %d, want %d", code, tc.wantStatus)
			}
			for k, want := range tc.wantChecks {
				if body.Checks[k] != want {
					t.Errorf("checks[%q] = %q, want %q", k, body.Checks[k], want)
				}
			}
		})
	}
}

func TestReadyz_CancelledRequest(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestChatCircuits(t *testing.T) {
	t.Parallel()

	if err := ChatCircuits(nil).Check(context.Background()); err != nil {
		t.Errorf("nil source: %v", err)
	}

	failing := &llmmock.Provider{CompleteErr: errors.New("quota")}
	chain := resilience.NewLLMChain("primary", failing, resilience.ChainConfig{
		Breaker: resilience.BreakerConfig{MaxFailures: 1},
	})
	check := ChatCircuits(chain)
	if err := check.Check(context.Background()); err != nil {
		t.Fatalf("fresh chain: %v", err)
	}

	_, _ = chain.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	if err := check.Check(context.Background()); err == nil {
		t.Error("expected failure with the only circuit open")
	}

	chain.Add("secondary", &llmmock.Provider{})
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("secondary closed, want pass: %v", err)
	}
}

func TestRealtimeKey(t *testing.T) {
	t.Parallel()
	if err := RealtimeKey(func() bool { return true }).Check(context.Background()); err != nil {
		t.Errorf("configured: %v", err)
	}
	if err := RealtimeKey(func() bool { return false }).Check(context.Background()); err == nil {
		t.Error("expected error when key missing")
	}
	if err := RealtimeKey(nil).Check(context.Background()); err == nil {
		t.Error("expected error for nil probe")
	}
}
