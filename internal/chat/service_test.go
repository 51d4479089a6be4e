package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/strategydeck/internal/observe"
	"github.com/MrWong99/strategydeck/internal/persona"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
	llmmock "github.com/MrWong99/strategydeck/pkg/provider/llm/mock"
)

func newTestService(t *testing.T, p llm.Provider, opts ...Option) *Service {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	store := persona.NewStore(persona.Set{AgentName: "Robert Mill AI", Chat: "chat persona", Voice: "voice persona"})
	return New(p, store, append([]Option{WithMetrics(m)}, opts...)...)
}

func TestAnswer_Upstream(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Champions first."}}
	svc := newTestService(t, p)

	a := svc.Answer(context.Background(), "How do you start?")
	if a.Source != SourceUpstream {
		t.Fatalf("source = %v, want upstream", a.Source)
	}
	if a.Text != "Champions first." {
		t.Errorf("text = %q", a.Text)
	}
	if a.Err != nil || a.Bucket != "" {
		t.Errorf("upstream answer carries err=%v bucket=%q", a.Err, a.Bucket)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if req.SystemPrompt != "chat persona" {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "How do you start?" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.MaxTokens != 500 || req.Temperature != 0.7 {
		t.Errorf("max tokens = %d, temperature = %v", req.MaxTokens, req.Temperature)
	}
}

func TestAnswer_EmptyContentApologises(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{}}
	a := newTestService(t, p).Answer(context.Background(), "anything")

	if a.Source != SourceUpstream {
		t.Errorf("source = %v, want upstream", a.Source)
	}
	if a.Text != EmptyReply {
		t.Errorf("text = %q, want apology", a.Text)
	}
}

func TestAnswer_UpstreamErrorFallsBack(t *testing.T) {
	upstreamErr := errors.New("401 invalid api key")
	p := &llmmock.Provider{CompleteErr: upstreamErr}

	a := newTestService(t, p).Answer(context.Background(), "What KPIs do you track?")
	if a.Source != SourceFallback {
		t.Fatalf("source = %v, want fallback", a.Source)
	}
	if a.Bucket != "metrics" {
		t.Errorf("bucket = %q, want metrics", a.Bucket)
	}
	if !errors.Is(a.Err, upstreamErr) {
		t.Errorf("err = %v, want wrapped upstream error", a.Err)
	}
	_, want := Respond("What KPIs do you track?")
	if a.Text != want {
		t.Error("fallback text does not match responder output")
	}
}

func TestAnswer_NoProvider(t *testing.T) {
	a := newTestService(t, nil).Answer(context.Background(), "Tell me about CIBC")
	if a.Source != SourceFallback || a.Bucket != "experience" {
		t.Errorf("got source=%v bucket=%q, want fallback/experience", a.Source, a.Bucket)
	}
	if !errors.Is(a.Err, errNoProvider) {
		t.Errorf("err = %v, want errNoProvider", a.Err)
	}
}

func TestAnswer_TimeoutFallsBack(t *testing.T) {
	p := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := newTestService(t, p, WithTimeout(10*time.Millisecond))

	a := svc.Answer(context.Background(), "pilot?")
	if a.Source != SourceFallback {
		t.Fatalf("source = %v, want fallback", a.Source)
	}
	if !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", a.Err)
	}
}

func TestAnswer_Options(t *testing.T) {
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	svc := newTestService(t, p, WithMaxTokens(200), WithTemperature(0.2), WithMaxTokens(0))
	svc.Answer(context.Background(), "q")

	req := p.Calls()[0].Req
	if req.MaxTokens != 200 {
		t.Errorf("max tokens = %d, want 200", req.MaxTokens)
	}
	if req.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", req.Temperature)
	}
}

func TestAnswerOffline(t *testing.T) {
	cause := errors.New("bad json")
	a := newTestService(t, nil).AnswerOffline(context.Background(), "", cause)
	if a.Bucket != DefaultBucket || a.Source != SourceFallback {
		t.Errorf("got bucket=%q source=%v", a.Bucket, a.Source)
	}
	if !errors.Is(a.Err, cause) {
		t.Errorf("err = %v", a.Err)
	}
}

func TestSource_String(t *testing.T) {
	if SourceUpstream.String() != "upstream" || SourceFallback.String() != "fallback" || Source(9).String() != "unknown" {
		t.Error("unexpected Source strings")
	}
}
