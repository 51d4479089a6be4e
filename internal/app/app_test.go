package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/strategydeck/internal/app"
	"github.com/MrWong99/strategydeck/internal/chat"
	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
	llmmock "github.com/MrWong99/strategydeck/pkg/provider/llm/mock"
)

// testConfig returns a default config whose chat provider is "openai",
// served by the mock registered in newApp.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Auth.Password = "s3cret"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// registryWith serves every name in providers from the given mock.
func registryWith(providers map[string]llm.Provider) *config.Registry {
	reg := config.NewRegistry()
	for name, p := range providers {
		reg.RegisterChat(name, func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
	}
	return reg
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(testMetrics(t))}, opts...)
	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNew_ChatUsesRegisteredProvider(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Start with the champions."}}
	a := newApp(t, testConfig(), app.WithRegistry(registryWith(map[string]llm.Provider{"openai": p})))

	rec := do(t, a.Handler(), http.MethodPost, "/api/ai-agent", `{"question":"Where do I begin?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["response"]; got != "Start with the champions." {
		t.Errorf("response = %v", got)
	}
	if got := len(p.Calls()); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestNew_FailsOverToFallbackProvider(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteErr: errors.New("503 overloaded")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from anthropic"}}

	cfg := testConfig()
	cfg.Providers.ChatFallbacks = []config.ProviderEntry{{Name: "anthropic", Model: "claude"}}
	a := newApp(t, cfg, app.WithRegistry(registryWith(map[string]llm.Provider{
		"openai":    primary,
		"anthropic": secondary,
	})))

	rec := do(t, a.Handler(), http.MethodPost, "/api/ai-agent", `{"question":"pilot plan?"}`)
	if got := decode(t, rec)["response"]; got != "from anthropic" {
		t.Errorf("response = %v, want the fallback provider's answer", got)
	}
}

func TestNew_UnbuildableProviderAnswersOffline(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterChat("openai", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, errors.New("openai: apiKey must not be empty")
	})
	a := newApp(t, testConfig(), app.WithRegistry(reg))

	rec := do(t, a.Handler(), http.MethodPost, "/api/ai-agent", `{"question":"How do you handle resistance from a leader?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	_, want := chat.Respond("How do you handle resistance from a leader?")
	if got := decode(t, rec)["response"]; got != want {
		t.Errorf("response = %v, want offline reply", got)
	}
}

func TestNew_UnknownPersonaFile(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Persona.ChatPromptFile = filepath.Join(t.TempDir(), "missing.md")
	if _, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t))); err == nil {
		t.Fatal("expected error for missing persona file")
	}
}

func TestHandler_Auth(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(), app.WithRegistry(config.NewRegistry()))

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(`{"password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	if got := decode(t, rec)["success"]; got != true {
		t.Errorf("success = %v, want true", got)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want caller's trace ID %q", got, traceID)
	}
}

func TestHandler_VoiceAgentRelaysUpstream(t *testing.T) {
	t.Parallel()
	const body = `{"id":"sess_1","client_secret":{"value":"ek_1","expires_at":1}}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realtime/sessions" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.Providers.Realtime.APIKey = "sk-test"
	cfg.Providers.Realtime.BaseURL = upstream.URL + "/v1"
	a := newApp(t, cfg, app.WithRegistry(config.NewRegistry()), app.WithRealtimeClient(upstream.Client()))

	rec := do(t, a.Handler(), http.MethodPost, "/api/voice-agent", `{"action":"get-ephemeral-token"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %s, want upstream body verbatim", rec.Body)
	}
}

func TestHandler_Readiness(t *testing.T) {
	t.Parallel()

	t.Run("no realtime key", func(t *testing.T) {
		t.Parallel()
		a := newApp(t, testConfig(), app.WithRegistry(config.NewRegistry()))
		if rec := do(t, a.Handler(), http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("readyz = %d, want 503", rec.Code)
		}
		if rec := do(t, a.Handler(), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Errorf("healthz = %d, want 200", rec.Code)
		}
	})

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Providers.Realtime.APIKey = "sk-test"
		a := newApp(t, cfg, app.WithRegistry(registryWith(map[string]llm.Provider{"openai": &llmmock.Provider{}})))
		if rec := do(t, a.Handler(), http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
			t.Errorf("readyz = %d, want 200: %s", rec.Code, rec.Body)
		}
	})
}

func TestHandler_MetricsRoute(t *testing.T) {
	t.Parallel()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})

	a := newApp(t, testConfig(), app.WithRegistry(config.NewRegistry()), app.WithMetricsHandler(metrics))
	rec := do(t, a.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics\n" {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body)
	}

	bare := newApp(t, testConfig(), app.WithRegistry(config.NewRegistry()))
	if rec := do(t, bare.Handler(), http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler = %d, want 404", rec.Code)
	}
}

func TestReload_AppliesHotChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	chatFile := filepath.Join(dir, "chat.md")
	if err := os.WriteFile(chatFile, []byte("You are a reloaded coach."), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	var level slog.LevelVar
	old := testConfig()
	a := newApp(t, old,
		app.WithRegistry(registryWith(map[string]llm.Provider{"openai": p})),
		app.WithLogLevel(&level),
	)

	next := testConfig()
	next.Auth.Password = "n3w"
	next.Server.LogLevel = config.LogDebug
	next.Persona.ChatPromptFile = chatFile
	a.Reload(old, next)

	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", got)
	}
	if got := decode(t, do(t, a.Handler(), http.MethodPost, "/api/auth", `{"password":"n3w"}`))["success"]; got != true {
		t.Error("new password rejected")
	}
	if got := decode(t, do(t, a.Handler(), http.MethodPost, "/api/auth", `{"password":"s3cret"}`))["success"]; got != false {
		t.Error("old password still accepted")
	}

	do(t, a.Handler(), http.MethodPost, "/api/ai-agent", `{"question":"hi"}`)
	calls := p.Calls()
	if len(calls) != 1 || calls[0].Req.SystemPrompt != "You are a reloaded coach." {
		t.Errorf("system prompt after reload = %+v", calls)
	}
}

func TestReload_BadPersonaKeepsCurrent(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	old := testConfig()
	a := newApp(t, old, app.WithRegistry(registryWith(map[string]llm.Provider{"openai": p})))

	next := testConfig()
	next.Persona.ChatPromptFile = filepath.Join(t.TempDir(), "missing.md")
	a.Reload(old, next)

	do(t, a.Handler(), http.MethodPost, "/api/ai-agent", `{"question":"hi"}`)
	calls := p.Calls()
	if len(calls) != 1 || calls[0].Req.SystemPrompt == "" {
		t.Errorf("persona lost after failed reload: %+v", calls)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a := newApp(t, testConfig(), app.WithRegistry(config.NewRegistry()), app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() = %v, want nil on clean stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after cancellation")
	}

	// Second Shutdown is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
}
