// Command voicecall is a terminal voice client for a running strategydeck
// server. It captures the default microphone, plays the agent through the
// default speaker and shows the live transcript.
//
// Keys: s starts (or retries) a call, m toggles mute, q ends the call and
// ctrl+c exits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/internal/persona"
	"github.com/MrWong99/strategydeck/internal/voice"
	"github.com/MrWong99/strategydeck/pkg/audio/device"
	"github.com/MrWong99/strategydeck/pkg/audio/webrtc"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	proxyURL := flag.String("proxy", "", "strategydeck server base URL (overrides voice.proxy_url)")
	logFile := flag.String("log-file", "voicecall.log", "file receiving logs while the UI owns the terminal; empty discards them")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		return 1
	}
	if *proxyURL != "" {
		cfg.Voice.ProxyURL = *proxyURL
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voicecall: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOut = f
	}
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: &level})))

	// ── Audio devices ─────────────────────────────────────────────────────────
	devices, err := device.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		return 1
	}
	defer func() {
		if err := devices.Close(); err != nil {
			slog.Warn("close audio context", "err", err)
		}
	}()

	agentName := cfg.Persona.AgentName
	if agentName == "" {
		agentName = persona.DefaultAgentName
	}

	stun := cfg.Voice.STUNServers
	session, err := voice.NewSession(voice.Config{
		Credentials: voice.NewProxyCredentials(cfg.Voice.ProxyURL, nil),
		Microphone:  device.NewMicrophone(devices),
		Transport: func() (webrtc.PeerTransport, error) {
			t, err := webrtc.New(webrtc.WithSTUNServers(stun...))
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Negotiator: voice.NewSDPNegotiator(cfg.Voice.RealtimeURL, cfg.Voice.Model, nil),
		Sink:       device.NewSpeaker(devices),
		AgentName:  agentName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		return 1
	}
	defer session.End()

	slog.Info("voicecall starting", "proxy", cfg.Voice.ProxyURL, "realtime", cfg.Voice.RealtimeURL, "model", cfg.Voice.Model)

	// ── UI ────────────────────────────────────────────────────────────────────
	p := tea.NewProgram(newModel(session, agentName, cfg.Voice.ConnectTimeout), tea.WithAltScreen())
	session.OnChange(func(s voice.Snapshot) { p.Send(snapshotMsg(s)) })

	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		return 1
	}
	if m, ok := final.(model); ok {
		fmt.Println(m.statusLine())
	}
	return 0
}

// loadConfig reads path when it exists and falls back to the defaults
// otherwise. Environment secrets are applied in both cases.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}
