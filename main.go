// mgchat - terminal client for the MGZon chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/cli"
	"github.com/jeranaias/mgchat/internal/commands"
	"github.com/jeranaias/mgchat/internal/config"
	"github.com/jeranaias/mgchat/internal/local"
	"github.com/jeranaias/mgchat/internal/offline"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/render"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/speech"
	"github.com/jeranaias/mgchat/internal/store"
	"github.com/jeranaias/mgchat/internal/tasks"
	"github.com/jeranaias/mgchat/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := cli.Parse(os.Args[1:])

	if args.Help {
		fmt.Print(cli.Usage)
		return
	}
	if args.Version {
		fmt.Printf("mgchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args cli.Args) error {
	// ==========================================================================
	// CONFIGURATION
	// ==========================================================================

	configPath := args.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.Path()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if args.ServerURL != "" {
		cfg.Server.URL = args.ServerURL
	}
	if args.Model != "" {
		cfg.Local.TextModel = args.Model
	}
	if args.Language != "" {
		cfg.Generation.Language = args.Language
	}
	if args.Offline {
		cfg.Local.Force = true
	}
	if args.Offline || cfg.Local.Force {
		offline.ForceOffline()
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logger, logClose, err := openLogger(cfg, dataDir)
	if err != nil {
		return err
	}
	defer logClose()
	logger.Info("starting mgchat", "version", Version, "server", cfg.Server.URL)

	// ==========================================================================
	// SERVICES
	// ==========================================================================

	client := api.NewClient(api.ClientConfig{
		BaseURL:   cfg.Server.URL,
		Timeout:   time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		UserAgent: "mgchat/" + Version,
		SessionID: auth.SessionID(),
		Logger:    logger,
	})

	tokens, err := auth.NewTokenStore(filepath.Join(dataDir, "keys"))
	if err != nil {
		return err
	}
	gate := auth.NewGate(client, tokens, logger)

	runtime := local.NewRuntime(local.Config{
		BaseURL:    cfg.Local.URL,
		TextModel:  cfg.Local.TextModel,
		AudioModel: cfg.Local.AudioModel,
		Logger:     logger,
	})
	route := router.New(client, runtime, cfg.Local.Force, logger)

	localStore, err := store.NewLocalStore(filepath.Join(dataDir, "conversations"))
	if err != nil {
		return err
	}
	index, err := store.OpenIndex(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return err
	}
	defer index.Close()
	repo := store.NewRepository(localStore, index, client, gate.Authenticated, logger)

	speaker := speech.NewSpeaker(cfg.TTS.Enabled, cfg.TTS.Voice, logger)
	runner := tasks.NewRunner(logger)
	defer runner.Shutdown()

	// Config changes from the file or from /lang and /tts land here.
	var cfgMu sync.RWMutex
	pipe := pipeline.New(pipeline.Options{
		Repo:   repo,
		Router: route,
		Gate:   gate,
		Params: func() pipeline.Params {
			cfgMu.RLock()
			defer cfgMu.RUnlock()
			return pipeline.Params{
				Temperature:    cfg.Generation.Temperature,
				MaxNewTokens:   cfg.Generation.MaxNewTokens,
				EnableBrowsing: cfg.Generation.EnableBrowsing,
				OutputFormat:   cfg.Generation.OutputFormat,
				Language:       cfg.Generation.Language,
			}
		},
		Logger: logger,
	})

	env := &commands.Env{
		Ctx:        context.Background(),
		Pipeline:   pipe,
		Repo:       repo,
		Gate:       gate,
		Client:     client,
		Speaker:    speaker,
		Config:     cfg,
		ConfigPath: configPath,
		Runner:     runner,
	}
	registry := commands.NewRegistry()

	// ==========================================================================
	// STARTUP PROBES
	// ==========================================================================

	runner.GoWithTimeout("offline-probe", 10*time.Second, func(ctx context.Context) error {
		offline.Probe(ctx, cfg.Server.URL)
		return nil
	})
	runner.GoWithTimeout("auth-check", 15*time.Second, func(ctx context.Context) error {
		_, err := gate.CheckAuth(ctx)
		return err
	})

	gate.OnLogin(func() {
		runner.Go("settings-fetch", func(ctx context.Context) error {
			settings, err := client.GetSettings(ctx)
			if err != nil {
				return err
			}
			cfgMu.Lock()
			applySettings(cfg, settings, speaker)
			cfgMu.Unlock()
			return cfg.Save(configPath)
		})
	})

	if watcher, err := config.Watch(configPath, logger); err == nil {
		defer watcher.Close()
		go func() {
			for updated := range watcher.Updates() {
				cfgMu.Lock()
				*cfg = *updated
				cfgMu.Unlock()
				speaker.SetEnabled(cfg.TTS.Enabled)
				logger.Info("configuration reloaded")
			}
		}()
	}

	// ==========================================================================
	// FRONT END
	// ==========================================================================

	if args.Message != "" {
		return cli.Ask(env, args.Message)
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if args.Plain || cfg.UI.Plain || !isTTY {
		return cli.New(cli.Options{
			Env:      env,
			Registry: registry,
			Renderer: render.New(renderWidth(), !isTTY),
		}).Run(env.Ctx)
	}

	var storeChanges <-chan struct{}
	if watcher, err := store.WatchDir(filepath.Join(dataDir, "conversations"), logger); err == nil {
		defer watcher.Close()
		storeChanges = watcher.Changes()
	}

	program := tea.NewProgram(
		ui.New(ui.Options{
			Env:          env,
			Registry:     registry,
			Renderer:     render.New(renderWidth(), false),
			StoreChanges: storeChanges,
		}),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// applySettings copies server-side preferences over the local config.
func applySettings(cfg *config.Config, s *api.Settings, speaker *speech.Speaker) {
	if s.Language != "" {
		cfg.Generation.Language = s.Language
	}
	if s.OutputFormat != "" {
		cfg.Generation.OutputFormat = s.OutputFormat
	}
	if s.Temperature > 0 {
		cfg.Generation.Temperature = s.Temperature
	}
	cfg.TTS.Enabled = s.TTSEnabled
	if s.TTSVoice != "" {
		cfg.TTS.Voice = s.TTSVoice
	}
	speaker.SetEnabled(s.TTSEnabled)
}

// openLogger writes structured logs to a file so the TUI screen stays clean.
func openLogger(cfg *config.Config, dataDir string) (*slog.Logger, func(), error) {
	path := cfg.Log.File
	if path == "" {
		path = filepath.Join(dataDir, "mgchat.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

// renderWidth picks the markdown wrap width from the terminal.
func renderWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	if width > 120 {
		width = 120
	}
	return width
}
