package config

import "slices"

// ConfigDiff describes the hot-reloadable differences between two configs.
// Everything else requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PasswordChanged is set when the effective auth secret differs.
	PasswordChanged bool

	// PersonaChanged is set when the agent name or either prompt file path
	// differs. Edits inside an unchanged prompt file are not detected here.
	PersonaChanged bool

	// RestartRequired lists the sections that changed but are only read at
	// startup.
	RestartRequired []string
}

// Empty reports whether nothing observable changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PasswordChanged && !d.PersonaChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.PasswordChanged = old.Auth.Password != new.Auth.Password
	d.PersonaChanged = old.Persona != new.Persona

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !entryEqual(old.Providers.Chat, new.Providers.Chat) ||
		!slices.EqualFunc(old.Providers.ChatFallbacks, new.Providers.ChatFallbacks, entryEqual) ||
		old.Providers.Realtime != new.Providers.Realtime ||
		old.Providers.Breaker != new.Providers.Breaker {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// entryEqual compares the scalar fields of two entries. Options are ignored.
func entryEqual(a, b ProviderEntry) bool {
	if (a.Temperature == nil) != (b.Temperature == nil) {
		return false
	}
	if a.Temperature != nil && *a.Temperature != *b.Temperature {
		return false
	}
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.MaxTokens == b.MaxTokens && a.Timeout == b.Timeout
}
