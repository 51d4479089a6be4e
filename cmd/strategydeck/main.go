// Command strategydeck serves the interview-preparation API: the password
// gate, the text-chat proxy and the realtime voice credential proxy.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/MrWong99/strategydeck/internal/app"
	"github.com/MrWong99/strategydeck/internal/config"
	"github.com/MrWong99/strategydeck/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile, ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "strategydeck: %v\n", err)
		return 1
	}

	// ── Configuration ─────────────────────────────────────────────────────────
	var application atomic.Pointer[app.App]
	var watcher *config.Watcher
	var cfg *config.Config

	if _, err := os.Stat(*configPath); err == nil {
		watcher, err = config.NewWatcher(*configPath, func(old, new *config.Config) {
			if a := application.Load(); a != nil {
				a.Reload(old, new)
			}
		}, config.WithEnv(os.Getenv))
		if err != nil {
			fmt.Fprintf(os.Stderr, "strategydeck: %v\n", err)
			return 1
		}
		defer watcher.Stop()
		cfg = watcher.Current()
	} else if flagSet("config") {
		fmt.Fprintf(os.Stderr, "strategydeck: config file %q not found\n", *configPath)
		return 1
	} else {
		cfg = config.Default()
		config.ApplyEnv(cfg, os.Getenv)
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("strategydeck starting",
		"version", version,
		"config", *configPath,
		"watching", watcher != nil,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watcher != nil {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if _, err := watcher.Reload(); err != nil {
						slog.Warn("reload on SIGHUP failed", "err", err)
					}
				}
			}
		}()
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithLogLevel(&level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	application.Store(a)

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
