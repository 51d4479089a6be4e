package app

import (
	"context"
	"errors"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/internal/resilience"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
	"github.com/MrWong99/strategydeck/pkg/provider/llm/anyllm"
	"github.com/MrWong99/strategydeck/pkg/provider/llm/openai"
)

// anyllmBackends are served through any-llm-go. openai has its own client.
var anyllmBackends = []string{"anthropic", "gemini", "deepseek", "mistral", "groq"}

// RegisterBuiltinProviders wires every chat backend that ships with
// strategydeck into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	reg.RegisterChat("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org, ok := entry.Options["organization"].(string); ok && org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range anyllmBackends {
		reg.RegisterChat(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ollama is a local server; it takes an address, not a key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	slog.Debug("registered chat providers", "names", reg.ChatNames())
}

// buildChatChain instantiates the configured chat provider and its fallbacks
// as one failover chain. Entries that cannot be built are skipped with a
// warning so the server still answers offline. It returns nil when no entry
// could be built.
func buildChatChain(cfg config.ProvidersConfig, reg *config.Registry, m *observe.Metrics) *resilience.LLMChain {
	entries := make([]config.ProviderEntry, 0, 1+len(cfg.ChatFallbacks))
	if cfg.Chat.Name != "" {
		entries = append(entries, cfg.Chat)
	}
	entries = append(entries, cfg.ChatFallbacks...)

	chainCfg := resilience.ChainConfig{
		Breaker: resilience.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Cooldown:    cfg.Breaker.Cooldown,
			Probes:      cfg.Breaker.Probes,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("chat provider circuit changed", "provider", name, "from", from, "to", to)
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		Observe: func(a resilience.Attempt) {
			m.RecordProviderCall(context.Background(), a.Provider, a.Duration, a.Err)
		},
	}

	var chain *resilience.LLMChain
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		p, err := reg.CreateChat(entry)
		if err != nil {
			if errors.Is(err, config.ErrProviderNotRegistered) {
				slog.Warn("unknown chat provider, skipping", "name", entry.Name)
			} else {
				slog.Warn("chat provider unavailable, skipping", "name", entry.Name, "err", err)
			}
			continue
		}
		// Breakers are keyed by link name; the same backend may appear with
		// different models.
		name := entry.Name
		if seen[name] {
			name += "/" + entry.Model
		}
		seen[name] = true

		if chain == nil {
			chain = resilience.NewLLMChain(name, p, chainCfg)
		} else {
			chain.Add(name, p)
		}
		slog.Info("chat provider ready", "name", entry.Name, "model", entry.Model)
	}
	return chain
}
