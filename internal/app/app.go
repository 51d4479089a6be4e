// Package app wires the strategydeck subsystems into a running HTTP server.
//
// New builds every subsystem from the config, Run serves until the context
// is cancelled, and Shutdown drains in-flight requests. Reload applies the
// hot-reloadable parts of a changed config and is meant to be handed to
// [config.NewWatcher].
//
// For testing, inject doubles through functional options (WithRegistry,
// WithMetrics, WithListener, ...). When an option is not provided, New
// creates the real implementation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/strategydeck/internal/api"
	"github.com/MrWong99/strategydeck/internal/auth"
	"github.com/MrWong99/strategydeck/internal/chat"
	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/internal/health"
	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/internal/persona"
	"github.com/MrWong99/strategydeck/internal/realtime"
	"github.com/MrWong99/strategydeck/internal/resilience"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

// App owns the server and everything it serves.
type App struct {
	cfg *config.Config

	registry       *config.Registry
	metrics        *observe.Metrics
	metricsHandler http.Handler
	logLevel       *slog.LevelVar
	realtimeClient *http.Client
	listener       net.Listener

	personas *persona.Store
	gate     *auth.Gate
	chain    *resilience.LLMChain
	chat     *chat.Service
	minter   *realtime.Minter
	health   *health.Handler

	handler http.Handler
	server  *http.Server

	// mu serialises Reload.
	mu       sync.Mutex
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithRegistry replaces the registry of built-in chat providers.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at GET /metrics. Usually
// [observe.Telemetry.MetricsHandler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel lets Reload adjust the process log level through lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithRealtimeClient replaces the HTTP client used to mint realtime sessions.
func WithRealtimeClient(c *http.Client) Option {
	return func(a *App) { a.realtimeClient = c }
}

// WithListener makes Run serve on l instead of listening on
// server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App from cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
		RegisterBuiltinProviders(a.registry)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	set, err := persona.Load(cfg.Persona.AgentName, cfg.Persona.ChatPromptFile, cfg.Persona.VoicePromptFile)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.personas = persona.NewStore(set)
	a.gate = auth.NewGate(cfg.Auth.Password)

	a.chain = buildChatChain(cfg.Providers, a.registry, a.metrics)
	copts := []chat.Option{
		chat.WithMetrics(a.metrics),
		chat.WithMaxTokens(cfg.Providers.Chat.MaxTokens),
		chat.WithTimeout(cfg.Providers.Chat.Timeout),
	}
	if t := cfg.Providers.Chat.Temperature; t != nil {
		copts = append(copts, chat.WithTemperature(*t))
	}
	a.chat = chat.New(a.chatProvider(), a.personas, copts...)

	a.minter = realtime.NewMinter(cfg.Providers.Realtime.APIKey, a.personas, a.minterOptions()...)
	if !a.minter.Configured() {
		slog.Warn("no realtime API key configured, voice credentials will fail")
	}

	var circuits health.CircuitSource
	if a.chain != nil {
		circuits = a.chain
	}
	a.health = health.New(
		health.ChatCircuits(circuits),
		health.RealtimeKey(a.minter.Configured),
	)

	a.handler = a.routes()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	slog.Info("app initialised",
		"agent", set.AgentName,
		"chat_providers", a.chatProviders(),
		"realtime_configured", a.minter.Configured(),
	)
	return a, nil
}

// chatProvider returns the chain as an [llm.Provider], or a nil interface
// when nothing could be built.
func (a *App) chatProvider() llm.Provider {
	if a.chain == nil {
		return nil
	}
	return a.chain
}

func (a *App) chatProviders() []string {
	if a.chain == nil {
		return nil
	}
	return a.chain.Providers()
}

// minterOptions maps the realtime config onto [realtime.Option]s. Empty
// values keep the package defaults.
func (a *App) minterOptions() []realtime.Option {
	rt := a.cfg.Providers.Realtime
	var opts []realtime.Option
	if rt.BaseURL != "" {
		opts = append(opts, realtime.WithBaseURL(rt.BaseURL))
	}
	if rt.Model != "" {
		opts = append(opts, realtime.WithModel(rt.Model))
	}
	if rt.Voice != "" {
		opts = append(opts, realtime.WithVoice(rt.Voice))
	}
	switch {
	case rt.DisableTranscription:
		opts = append(opts, realtime.WithTranscriptionModel(""))
	case rt.TranscriptionModel != "":
		opts = append(opts, realtime.WithTranscriptionModel(rt.TranscriptionModel))
	}
	if a.realtimeClient != nil {
		opts = append(opts, realtime.WithHTTPClient(a.realtimeClient))
	}
	return opts
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	api.New(a.gate, a.chat, a.minter, a.metrics).Register(mux)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled or the server fails, then shuts the
// server down within server.shutdown_timeout. A clean stop returns nil.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return a.Shutdown(sctx)
	})
	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires. Only the first call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down http server")
		if err = a.server.Shutdown(ctx); err != nil {
			err = fmt.Errorf("app: shutdown: %w", err)
			return
		}
		slog.Info("shutdown complete")
	})
	return err
}

// Reload applies the hot-reloadable differences between old and new: log
// level, auth password and persona documents. Other changes are logged and
// need a restart.
func (a *App) Reload(old, new *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PasswordChanged {
		a.gate.SetSecret(new.Auth.Password)
		slog.Info("auth password replaced")
	}
	if d.PersonaChanged {
		set, err := persona.Load(new.Persona.AgentName, new.Persona.ChatPromptFile, new.Persona.VoicePromptFile)
		if err != nil {
			slog.Warn("persona reload failed, keeping current persona", "err", err)
		} else {
			a.personas.Swap(set)
			slog.Info("persona reloaded", "agent", set.AgentName)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}
