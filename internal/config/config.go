// Package config provides the configuration schema, loader, provider registry
// and file watcher for the strategydeck server and voice client.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to its slog equivalent. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure. It is loaded from YAML with
// [Load] or [LoadFromReader] and completed by [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Persona   PersonaConfig   `yaml:"persona"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default: ":3000".
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig configures the shared-password gate.
type AuthConfig struct {
	// Password is the shared secret. APP_PASSWORD overrides it.
	Password string `yaml:"password"`
}

// ProvidersConfig selects upstream model backends.
type ProvidersConfig struct {
	// Chat is the primary chat-completion provider. Leave Name empty to
	// answer every question offline.
	Chat ProviderEntry `yaml:"chat"`

	// ChatFallbacks are tried in order when Chat fails.
	ChatFallbacks []ProviderEntry `yaml:"chat_fallbacks"`

	// Realtime configures the realtime session endpoint used to mint voice
	// credentials.
	Realtime RealtimeEntry `yaml:"realtime"`

	// Breaker tunes the per-provider circuit breakers.
	Breaker BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is one chat provider. Name looks up the constructor in the
// [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// MaxTokens caps upstream answers. Default: 500.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature. Nil selects 0.7.
	Temperature *float64 `yaml:"temperature"`

	// Timeout bounds a single upstream call. Zero means unbounded.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific settings not covered above.
	Options map[string]any `yaml:"options"`
}

// RealtimeEntry configures realtime session minting.
type RealtimeEntry struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	Model              string `yaml:"model"`
	Voice              string `yaml:"voice"`
	TranscriptionModel string `yaml:"transcription_model"`

	// DisableTranscription stops requesting input transcription.
	DisableTranscription bool `yaml:"disable_transcription"`
}

// BreakerConfig tunes circuit breakers.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
	Probes      int           `yaml:"probes"`
}

// PersonaConfig overrides the embedded persona documents.
type PersonaConfig struct {
	AgentName       string `yaml:"agent_name"`
	ChatPromptFile  string `yaml:"chat_prompt_file"`
	VoicePromptFile string `yaml:"voice_prompt_file"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// VoiceConfig configures the terminal voice client.
type VoiceConfig struct {
	// ProxyURL is the base URL of a running strategydeck server.
	ProxyURL string `yaml:"proxy_url"`

	// RealtimeURL is the realtime SDP endpoint without query string.
	RealtimeURL string `yaml:"realtime_url"`

	// Model is sent as the model query parameter during SDP exchange.
	Model string `yaml:"model"`

	// STUNServers are ICE servers for the peer connection.
	STUNServers []string `yaml:"stun_servers"`

	// ConnectTimeout bounds call setup. Zero leaves setup unbounded.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}
