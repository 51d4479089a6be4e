// Package anyllm serves the non-OpenAI chat backends (Anthropic, Gemini,
// Ollama, ...) through github.com/mozilla-ai/any-llm-go. They usually sit
// behind the OpenAI provider as failover targets.
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey(key))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// backends maps a lower-case vendor name to its any-llm-go constructor.
var backends = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
}

// Backends returns the accepted vendor names, sorted.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider wraps one any-llm-go backend and model.
type Provider struct {
	backend anyllmlib.Provider
	vendor  string
	model   string
}

// New creates a Provider for vendor (case-insensitive). Without an API key
// option the backend falls back to its usual environment variable, such as
// ANTHROPIC_API_KEY.
func New(vendor, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("anyllm: model is required")
	}
	vendor = strings.ToLower(vendor)
	mk, ok := backends[vendor]
	if !ok {
		return nil, fmt.Errorf("anyllm: unknown backend %q (have %s)", vendor, strings.Join(Backends(), ", "))
	}
	backend, err := mk(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s: %w", vendor, err)
	}
	return &Provider{backend: backend, vendor: vendor, model: model}, nil
}

// Name returns the lower-case vendor name.
func (p *Provider) Name() string { return p.vendor }

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s/%s: %w", p.vendor, p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s/%s: response has no choices", p.vendor, p.model)
	}

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if t := req.Temperature; t != 0 {
		params.Temperature = &t
	}
	if n := req.MaxTokens; n > 0 {
		params.MaxTokens = &n
	}
	return params
}
