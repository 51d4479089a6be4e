package config_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/pkg/provider/llm"
	llmmock "github.com/MrWong99/strategydeck/pkg/provider/llm/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.in.SlogLevel(); got != tt.want {
			t.Errorf("%q.SlogLevel() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_UnknownChat(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateChat(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredChat(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hi"}}

	var gotEntry config.ProviderEntry
	reg.RegisterChat("stub", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return want, nil
	})

	p, err := reg.CreateChat(config.ProviderEntry{Name: "stub", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory got model %q", gotEntry.Model)
	}
	resp, _ := p.Complete(context.Background(), llm.CompletionRequest{})
	if resp.Content != "hi" {
		t.Errorf("unexpected provider returned")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("missing api key")
	reg.RegisterChat("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })

	_, err := reg.CreateChat(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped factory error", err)
	}
}

func TestRegistry_ChatNamesSorted(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, n := range []string{"openai", "anthropic", "groq"} {
		reg.RegisterChat(n, func(config.ProviderEntry) (llm.Provider, error) { return nil, nil })
	}
	got := reg.ChatNames()
	want := []string{"anthropic", "groq", "openai"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ChatNames() = %v, want %v", got, want)
		}
	}
}
