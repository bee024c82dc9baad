// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs background work that must not take the client down:
// sync-on-login, settings fetches, model preload. Panics in a task are
// recovered and logged.
package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a background task unless the caller overrides it.
const DefaultTimeout = 2 * time.Minute

// Runner launches and tracks background tasks.
type Runner struct {
	log *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	cancel []context.CancelFunc
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{log: logger}
}

// Go runs fn in the background with a bounded context. After Shutdown new
// tasks are dropped.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.GoWithTimeout(name, DefaultTimeout, fn)
}

// GoWithTimeout runs fn with a custom timeout.
func (r *Runner) GoWithTimeout(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Debug("runner closed, dropping task", "task", name)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	r.cancel = append(r.cancel, cancel)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("background task panicked", "task", name, "panic", fmt.Sprint(rec))
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.log.Warn("background task failed", "task", name, "error", err, "duration", time.Since(start))
			return
		}
		r.log.Debug("background task done", "task", name, "duration", time.Since(start))
	}()
}

// Shutdown cancels running tasks and waits for them to exit.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	cancels := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
}
