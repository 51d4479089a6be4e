// Package openai answers chat questions through the OpenAI chat completions
// API using github.com/openai/openai-go.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Provider sends single-turn completions to one OpenAI model.
type Provider struct {
	client oai.Client
	model  string
}

// Option adjusts the request options of a [Provider].
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithOrganization(org)) }
}

// WithTimeout bounds every request attempt. Zero leaves the SDK default.
func WithTimeout(d time.Duration) Option {
	return func(o *[]option.RequestOption) {
		if d > 0 {
			*o = append(*o, option.WithRequestTimeout(d))
		}
	}
}

// New returns a Provider for model. Outbound requests are traced through
// otelhttp.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: api key is required")
	case model == "":
		return nil, errors.New("openai: model is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %s: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %s: response has no choices", p.model)
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, oai.SystemMessage(m.Content))
		case "user":
			msgs = append(msgs, oai.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			return oai.ChatCompletionNewParams{}, fmt.Errorf("openai: unsupported role %q", m.Role)
		}
	}
	if len(msgs) == 0 {
		return oai.ChatCompletionNewParams{}, errors.New("openai: nothing to send")
	}

	params := oai.ChatCompletionNewParams{Model: shared.ChatModel(p.model), Messages: msgs}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params, nil
}
