// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/jeranaias/mgchat/internal/api"
)

// =============================================================================
// AUTH GATE
// =============================================================================

// Gate tracks whether the client is logged in and owns the stored token.
// A rejected token is deleted and the registered redirect handler fires at
// most once per rejection, so a burst of failing requests produces a single
// login prompt.
type Gate struct {
	client *api.Client
	tokens *TokenStore
	log    *slog.Logger

	mu            sync.Mutex
	token         string
	authenticated bool
	redirected    bool

	// onRedirect is invoked outside the lock when the session is rejected.
	onRedirect func()
	// onLogin is invoked outside the lock after a successful login.
	onLogin func()
}

// NewGate builds a gate over the given API client and token store.
func NewGate(client *api.Client, tokens *TokenStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	g := &Gate{client: client, tokens: tokens, log: logger}
	client.SetTokenProvider(g.Token)
	return g
}

// OnRedirect registers the handler called when a stored session is rejected.
func (g *Gate) OnRedirect(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onRedirect = fn
}

// OnLogin registers the handler called after every successful login.
func (g *Gate) OnLogin(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogin = fn
}

// Token returns the current bearer token, empty when logged out.
func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Authenticated reports the current login state.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// CheckAuth establishes the login state at startup. With no stored token it
// returns false without touching the network. A token rejected by the server
// is deleted and the redirect handler fires. Any other failure, such as the
// server being unreachable, keeps the token for a later attempt.
func (g *Gate) CheckAuth(ctx context.Context) (bool, error) {
	token, err := g.tokens.Load()
	if err != nil {
		if err != ErrNoToken {
			g.log.Warn("token load failed", "error", err)
		}
		return false, nil
	}

	g.mu.Lock()
	g.token = token
	g.mu.Unlock()

	if err := g.client.VerifyToken(ctx); err != nil {
		// Both 401 and 403 on verification mean the stored session is no
		// longer honored.
		if api.IsAuthError(err) || api.TypeOf(err) == api.ErrTypeLimitReached {
			g.Invalidate()
			return false, nil
		}
		g.log.Warn("token verification failed", "error", err)
		g.mu.Lock()
		g.authenticated = false
		g.mu.Unlock()
		return false, err
	}

	g.mu.Lock()
	g.authenticated = true
	g.redirected = false
	g.mu.Unlock()
	return true, nil
}

// Login exchanges credentials for a token, stores it, and fires the login
// handler.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	token, err := g.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return g.adopt(token)
}

// Register creates an account and adopts the token it was issued.
func (g *Gate) Register(ctx context.Context, reg api.RegisterRequest) error {
	token, err := g.client.Register(ctx, reg)
	if err != nil {
		return err
	}
	return g.adopt(token)
}

// Logout deletes the stored token and clears the login state.
func (g *Gate) Logout() error {
	g.mu.Lock()
	g.token = ""
	g.authenticated = false
	g.redirected = false
	g.mu.Unlock()
	return g.tokens.Delete()
}

// Invalidate handles a rejected session discovered at any point: the token
// is deleted and the redirect handler fires once. Safe to call repeatedly.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.token = ""
	g.authenticated = false
	fire := !g.redirected
	g.redirected = true
	fn := g.onRedirect
	g.mu.Unlock()

	if err := g.tokens.Delete(); err != nil {
		g.log.Warn("token delete failed", "error", err)
	}
	if fire && fn != nil {
		fn()
	}
}

// adopt stores a fresh token and flips the gate to authenticated.
func (g *Gate) adopt(token string) error {
	if err := g.tokens.Save(token); err != nil {
		return err
	}
	g.mu.Lock()
	g.token = token
	g.authenticated = true
	g.redirected = false
	fn := g.onLogin
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}
