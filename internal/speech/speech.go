// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech reads assistant replies aloud through a system TTS engine.
// Speaking is fire and forget: a missing engine or a failed utterance never
// disturbs the chat flow.
package speech

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/mgchat/internal/lang"
)

// utteranceTimeout bounds a single spoken reply.
const utteranceTimeout = 2 * time.Minute

// engines are tried in order; the first one present on PATH wins.
var engines = []string{"espeak-ng", "espeak", "say"}

// Speaker drives the system TTS engine.
type Speaker struct {
	enabled bool
	voice   string
	log     *slog.Logger

	lookOnce sync.Once
	binary   string

	mu      sync.Mutex
	current context.CancelFunc

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
	// runCmd is swapped in tests.
	runCmd func(ctx context.Context, name string, args ...string) error
}

// NewSpeaker creates a speaker. voice selects the engine variant, e.g. "m1".
func NewSpeaker(enabled bool, voice string, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Speaker{
		enabled:  enabled,
		voice:    voice,
		log:      logger,
		lookPath: exec.LookPath,
	}
	s.runCmd = func(ctx context.Context, name string, args ...string) error {
		return exec.CommandContext(ctx, name, args...).Run()
	}
	return s
}

// SetEnabled toggles speech.
func (s *Speaker) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
	if !on {
		s.Stop()
	}
}

// Enabled reports whether speech is on.
func (s *Speaker) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Available reports whether a TTS engine is installed.
func (s *Speaker) Available() bool {
	return s.findEngine() != ""
}

// Speak reads text aloud in the voice for the detected language. It returns
// immediately; a previous utterance still playing is cut off first.
func (s *Speaker) Speak(text, langCode string) {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled || strings.TrimSpace(text) == "" {
		return
	}

	binary := s.findEngine()
	if binary == "" {
		s.log.Debug("no TTS engine installed, skipping speech")
		return
	}

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), utteranceTimeout)
	s.mu.Lock()
	s.current = cancel
	s.mu.Unlock()

	locale := lang.SpeechLocale(langCode)
	go func() {
		defer cancel()
		args := s.engineArgs(binary, locale, text)
		if err := s.runCmd(ctx, binary, args...); err != nil && ctx.Err() == nil {
			s.log.Debug("speech failed", "engine", binary, "locale", locale, "error", err)
		}
	}()
}

// Stop cuts off the current utterance.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.current
	s.current = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// findEngine locates the TTS binary once per process.
func (s *Speaker) findEngine() string {
	s.lookOnce.Do(func() {
		for _, name := range engines {
			if path, err := s.lookPath(name); err == nil {
				s.binary = path
				s.log.Debug("speech engine found", "engine", path)
				return
			}
		}
	})
	return s.binary
}

// engineArgs builds the command line for the engine in use.
func (s *Speaker) engineArgs(binary, locale, text string) []string {
	name := binary
	if i := strings.LastIndexByte(binary, '/'); i >= 0 {
		name = binary[i+1:]
	}
	switch name {
	case "say":
		// macOS say takes a voice name, not a locale.
		return []string{text}
	default:
		voice := strings.ToLower(strings.SplitN(locale, "-", 2)[0])
		if s.voice != "" {
			voice += "+" + s.voice
		}
		return []string{"-v", voice, text}
	}
}
