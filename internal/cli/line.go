// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/mgchat/internal/config"
)

// LineEditor wraps liner with persistent input history so arrow keys recall
// earlier prompts across sessions.
type LineEditor struct {
	line        *liner.State
	historyFile string
}

// NewLineEditor creates the editor and loads saved history.
func NewLineEditor() *LineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}

	ed := &LineEditor{
		line:        line,
		historyFile: filepath.Join(dir, "input_history"),
	}
	ed.loadHistory()
	return ed
}

func (e *LineEditor) loadHistory() {
	if f, err := os.Open(e.historyFile); err == nil {
		e.line.ReadHistory(f)
		f.Close()
	}
}

// Read reads one line with the given prompt. Non-empty input is added to
// history.
func (e *LineEditor) Read(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Aborted reports whether err is the Ctrl+C abort from Read.
func (e *LineEditor) Aborted(err error) bool {
	return err == liner.ErrPromptAborted
}

func (e *LineEditor) saveHistory() {
	if err := os.MkdirAll(filepath.Dir(e.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	e.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (e *LineEditor) Close() {
	e.saveHistory()
	e.line.Close()
}
