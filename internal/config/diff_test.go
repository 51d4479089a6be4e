package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/strategydeck/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if d := config.Diff(cfg, cfg); !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug
	new.Auth.Password = "rotated"
	new.Persona.ChatPromptFile = "/etc/strategydeck/chat.md"

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %v/%q", d.LogLevelChanged, d.NewLogLevel)
	}
	if !d.PasswordChanged {
		t.Error("expected PasswordChanged")
	}
	if !d.PersonaChanged {
		t.Error("expected PersonaChanged")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.ListenAddr = ":9000"
	temp := 0.2
	new.Providers.Chat.Temperature = &temp
	new.Telemetry.ServiceName = "other"

	d := config.Diff(old, new)
	for _, want := range []string{"server", "providers", "telemetry"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
	if d.PasswordChanged || d.PersonaChanged {
		t.Errorf("unexpected hot-reload flags: %+v", d)
	}
}

func TestDiff_FallbackListChange(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Providers.ChatFallbacks = []config.ProviderEntry{{Name: "groq", Model: "llama-3.1-8b-instant"}}

	d := config.Diff(old, new)
	if !slices.Contains(d.RestartRequired, "providers") {
		t.Errorf("RestartRequired = %v, want providers", d.RestartRequired)
	}
}
