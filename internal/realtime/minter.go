// Package realtime mints short-lived credentials for the hosted realtime
// speech API. The long-lived API key stays on the server; browsers and the
// voice client only ever see the ephemeral secret returned upstream.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/internal/persona"
)

// Defaults for the session request.
const (
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultModel              = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice              = "alloy"
	DefaultTranscriptionModel = "whisper-1"
)

// ErrNoAPIKey is returned by [Minter.Mint] when no API key is configured.
var ErrNoAPIKey = errors.New("realtime: API key not configured")

// maxBody bounds how much of an upstream response is read.
const maxBody = 1 << 20

// UpstreamError reports a non-2xx response from the session endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("OpenAI API error: %d", e.StatusCode)
}

// Minter requests realtime sessions. It is safe for concurrent use.
type Minter struct {
	apiKey             string
	baseURL            string
	model              string
	voice              string
	transcriptionModel string
	personas           *persona.Store
	client             *http.Client
}

// Option configures a [Minter].
type Option func(*Minter)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(m *Minter) { m.baseURL = strings.TrimRight(u, "/") }
}

// WithModel overrides [DefaultModel].
func WithModel(model string) Option {
	return func(m *Minter) { m.model = model }
}

// WithVoice overrides [DefaultVoice].
func WithVoice(voice string) Option {
	return func(m *Minter) { m.voice = voice }
}

// WithTranscriptionModel overrides [DefaultTranscriptionModel]. An empty
// model disables input transcription.
func WithTranscriptionModel(model string) Option {
	return func(m *Minter) { m.transcriptionModel = model }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Minter) { m.client = c }
}

// NewMinter creates a Minter that authenticates with apiKey and sends the
// active voice persona as session instructions.
func NewMinter(apiKey string, personas *persona.Store, opts ...Option) *Minter {
	m := &Minter{
		apiKey:             apiKey,
		baseURL:            DefaultBaseURL,
		model:              DefaultModel,
		voice:              DefaultVoice,
		transcriptionModel: DefaultTranscriptionModel,
		personas:           personas,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(op string, r *http.Request) string {
				return op + " " + r.URL.Path
			}),
		)},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Configured reports whether an API key is set.
func (m *Minter) Configured() bool {
	return m.apiKey != ""
}

type transcription struct {
	Model string `json:"model"`
}

type sessionRequest struct {
	Model                   string         `json:"model"`
	Voice                   string         `json:"voice"`
	Instructions            string         `json:"instructions"`
	InputAudioTranscription *transcription `json:"input_audio_transcription,omitempty"`
}

// Mint creates a realtime session upstream and returns the response body
// unchanged. The body carries client_secret.value, the ephemeral credential.
func (m *Minter) Mint(ctx context.Context) (json.RawMessage, error) {
	if m.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	ctx, span := observe.StartSpan(ctx, "realtime.mint")
	defer span.End()
	span.SetAttributes(attribute.String("realtime.model", m.model))

	body := sessionRequest{
		Model:        m.model,
		Voice:        m.voice,
		Instructions: m.personas.Get().Voice,
	}
	if m.transcriptionModel != "" {
		body.InputAudioTranscription = &transcription{Model: m.transcriptionModel}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/realtime/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("realtime: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		err = fmt.Errorf("realtime: create session: %w", err)
		observe.FailSpan(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("realtime: read response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uerr := &UpstreamError{StatusCode: resp.StatusCode, Body: string(data)}
		observe.Logger(ctx).Error("realtime session request rejected",
			"status", resp.StatusCode, "body", uerr.Body)
		observe.FailSpan(span, uerr)
		return nil, uerr
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("realtime: upstream returned invalid JSON")
	}
	return json.RawMessage(data), nil
}
