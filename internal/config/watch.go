// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and delivers the
// result on a channel.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan *Config
	log     *slog.Logger
	done    chan struct{}
}

// Watch starts watching path. The parent directory is watched because
// editors and AtomicWriteFile replace the file by rename.
func Watch(path string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		updates: make(chan *Config, 1),
		log:     logger,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Updates delivers each successfully reloaded config.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				// A half-written or invalid file keeps the previous config.
				w.log.Warn("config reload failed", "error", err)
				continue
			}
			select {
			case w.updates <- cfg:
			default:
				// Drop if the consumer has not drained the last update.
				select {
				case <-w.updates:
				default:
				}
				w.updates <- cfg
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err)
		}
	}
}
