// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoRunsTask(t *testing.T) {
	r := NewRunner(nil)
	var ran atomic.Bool
	r.Go("probe", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Shutdown()
	assert.True(t, ran.Load())
}

func TestGoRecoversPanic(t *testing.T) {
	r := NewRunner(nil)
	r.Go("explode", func(ctx context.Context) error {
		panic("boom")
	})
	// Shutdown returning proves the panic did not escape.
	r.Shutdown()
}

func TestGoSurfacesErrorsOnlyToLog(t *testing.T) {
	r := NewRunner(nil)
	r.Go("fail", func(ctx context.Context) error {
		return errors.New("expected")
	})
	r.Shutdown()
}

func TestShutdownCancelsRunningTasks(t *testing.T) {
	r := NewRunner(nil)
	started := make(chan struct{})
	var cancelled atomic.Bool
	r.Go("long", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	<-started

	done := make(chan struct{})
	go func() {
		r.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.True(t, cancelled.Load())
}

func TestGoAfterShutdownDropped(t *testing.T) {
	r := NewRunner(nil)
	r.Shutdown()
	var ran atomic.Bool
	r.Go("late", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}
