// Package chat answers free-text interview questions in the persona's voice.
//
// A [Service] forwards each question to an upstream chat model together with
// the chat persona document. When no model is configured or the upstream call
// fails for any reason, the question is answered by the offline keyword
// responder instead, so callers always receive a non-empty answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/internal/persona"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
)

// EmptyReply is returned as an upstream answer when the model responds with
// no content.
const EmptyReply = "I apologize, but I'm having trouble processing your question right now. Could you please rephrase it?"

// Source tells which path produced an [Answer].
type Source int

const (
	// SourceUpstream means the upstream chat model produced the text.
	SourceUpstream Source = iota
	// SourceFallback means the offline responder produced the text.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceUpstream:
		return "upstream"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Answer is the result of [Service.Answer].
type Answer struct {
	Text   string
	Source Source

	// Bucket is the offline responder group that matched. Empty for
	// upstream answers.
	Bucket string

	// Err is the upstream failure that caused a fallback answer. It is kept
	// for logging and tests and is never shown to the asker.
	Err error
}

// Service answers questions. It is safe for concurrent use.
type Service struct {
	provider    llm.Provider
	personas    *persona.Store
	metrics     *observe.Metrics
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxTokens caps the length of upstream answers. Default: 500.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithTimeout bounds each upstream call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// New creates a Service. provider may be nil, in which case every question is
// answered offline.
func New(provider llm.Provider, personas *persona.Store, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		personas:    personas,
		maxTokens:   500,
		temperature: 0.7,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// errNoProvider is recorded on fallback answers when no model is configured.
var errNoProvider = errors.New("chat: no upstream provider configured")

// Answer returns an answer for question. It never returns an empty text.
func (s *Service) Answer(ctx context.Context, question string) Answer {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "chat.answer")
	defer span.End()

	a := s.answer(ctx, question)
	switch {
	case errors.Is(a.Err, errNoProvider):
		observe.Logger(ctx).Debug("no chat provider, answering offline", "bucket", a.Bucket)
	case a.Err != nil:
		observe.Logger(ctx).Warn("chat upstream failed, answering offline",
			"bucket", a.Bucket, "err", a.Err)
	}
	s.metrics.RecordChatAnswer(ctx, a.Source.String(), a.Bucket, time.Since(start))
	return a
}

// AnswerOffline answers question with the offline responder only, recording
// cause as the reason. It is used when a request could not even be read.
func (s *Service) AnswerOffline(ctx context.Context, question string, cause error) Answer {
	a := Fallback(question, cause)
	observe.Logger(ctx).Warn("answering offline", "bucket", a.Bucket, "err", cause)
	s.metrics.RecordChatAnswer(ctx, a.Source.String(), a.Bucket, 0)
	return a
}

func (s *Service) answer(ctx context.Context, question string) Answer {
	if s.provider == nil {
		return Fallback(question, errNoProvider)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: s.personas.Get().Chat,
		Messages:     []llm.Message{llm.UserMessage(question)},
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	if err != nil {
		return Fallback(question, fmt.Errorf("chat: upstream: %w", err))
	}
	if resp == nil || resp.Content == "" {
		return Answer{Text: EmptyReply, Source: SourceUpstream}
	}
	return Answer{Text: resp.Content, Source: SourceUpstream}
}

// Fallback builds an offline answer for question, recording cause.
func Fallback(question string, cause error) Answer {
	bucket, text := Respond(question)
	return Answer{Text: text, Source: SourceFallback, Bucket: bucket, Err: cause}
}
