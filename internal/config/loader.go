package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ChatProviderNames lists the chat provider names the default registry knows.
// [Validate] warns about anything else.
var ChatProviderNames = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// Default returns a Config with every default filled in. It is also the
// base that YAML documents are decoded onto, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":3000",
			LogLevel:        LogInfo,
			ShutdownTimeout: 10 * time.Second,
		},
		Providers: ProvidersConfig{
			Chat: ProviderEntry{
				Name:      "openai",
				Model:     "gpt-4",
				MaxTokens: 500,
			},
			Realtime: RealtimeEntry{
				BaseURL:            "https://api.openai.com/v1",
				Model:              "gpt-4o-realtime-preview-2024-12-17",
				Voice:              "alloy",
				TranscriptionModel: "whisper-1",
			},
		},
		Telemetry: TelemetryConfig{ServiceName: "strategydeck"},
		Voice: VoiceConfig{
			ProxyURL:    "http://localhost:3000",
			RealtimeURL: "https://api.openai.com/v1/realtime",
			Model:       "gpt-4o-realtime-preview-2024-12-17",
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r onto [Default] and validates
// the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

// ApplyEnv fills secrets from the environment. OPENAI_API_KEY is used for the
// realtime key and for an openai chat provider whose key is unset.
// APP_PASSWORD always wins over auth.password.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if pw := getenv("APP_PASSWORD"); pw != "" {
		cfg.Auth.Password = pw
	}

	key := getenv("OPENAI_API_KEY")
	if key == "" {
		return
	}
	if cfg.Providers.Realtime.APIKey == "" {
		cfg.Providers.Realtime.APIKey = key
	}
	if cfg.Providers.Chat.Name == "openai" && cfg.Providers.Chat.APIKey == "" {
		cfg.Providers.Chat.APIKey = key
	}
	for i := range cfg.Providers.ChatFallbacks {
		fb := &cfg.Providers.ChatFallbacks[i]
		if fb.Name == "openai" && fb.APIKey == "" {
			fb.APIKey = key
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative"))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, fmt.Errorf("server.tls requires both cert_file and key_file"))
	}

	errs = append(errs, validateEntry("providers.chat", cfg.Providers.Chat, true)...)
	seen := map[string]int{}
	if cfg.Providers.Chat.Name != "" {
		seen[entryKey(cfg.Providers.Chat)] = -1
	}
	for i, fb := range cfg.Providers.ChatFallbacks {
		prefix := fmt.Sprintf("providers.chat_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		errs = append(errs, validateEntry(prefix, fb, false)...)
		if prev, ok := seen[entryKey(fb)]; ok {
			where := "providers.chat"
			if prev >= 0 {
				where = fmt.Sprintf("providers.chat_fallbacks[%d]", prev)
			}
			errs = append(errs, fmt.Errorf("%s duplicates %s (%s)", prefix, where, entryKey(fb)))
		}
		seen[entryKey(fb)] = i
	}

	b := cfg.Providers.Breaker
	if b.MaxFailures < 0 || b.Probes < 0 || b.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker values must not be negative"))
	}

	if u := cfg.Providers.Realtime.BaseURL; u != "" {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("providers.realtime.base_url: %w", err))
		}
	}

	if u := cfg.Voice.ProxyURL; u != "" {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("voice.proxy_url: %w", err))
		}
	}
	if u := cfg.Voice.RealtimeURL; u != "" {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("voice.realtime_url: %w", err))
		}
	}
	if cfg.Voice.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("voice.connect_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

func validateEntry(prefix string, e ProviderEntry, optional bool) []error {
	if e.Name == "" {
		if optional {
			return nil
		}
		return []error{fmt.Errorf("%s.name is required", prefix)}
	}

	var errs []error
	if !slices.Contains(ChatProviderNames, e.Name) {
		slog.Warn("unknown chat provider name, may be a typo or a custom registration",
			"field", prefix, "name", e.Name, "known", ChatProviderNames)
	}
	if e.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", prefix))
	}
	if e.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s.max_tokens must not be negative", prefix))
	}
	if t := e.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("%s.temperature %.2f is out of range [0, 2]", prefix, *t))
	}
	if e.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must not be negative", prefix))
	}
	if e.BaseURL != "" {
		if err := validateURL(e.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("%s.base_url: %w", prefix, err))
		}
	}
	return errs
}

func entryKey(e ProviderEntry) string {
	return e.Name + "/" + e.Model
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
