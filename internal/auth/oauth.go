// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// OAuth providers the service supports.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// ValidProvider reports whether name is a supported OAuth provider.
func ValidProvider(name string) bool {
	switch name {
	case ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// BeginOAuth fetches the provider authorization URL. The caller opens it in
// a browser and feeds the redirect back to CompleteOAuth.
func (g *Gate) BeginOAuth(ctx context.Context, provider string) (string, error) {
	if !ValidProvider(provider) {
		return "", fmt.Errorf("unknown OAuth provider %q", provider)
	}
	return g.client.OAuthAuthorizeURL(ctx, provider)
}

// CompleteOAuth exchanges the authorization code for a token and adopts it.
// The redirect argument accepts either the bare code or the full redirect
// URL the browser landed on.
func (g *Gate) CompleteOAuth(ctx context.Context, provider, redirect string) error {
	if !ValidProvider(provider) {
		return fmt.Errorf("unknown OAuth provider %q", provider)
	}
	code, err := extractCode(redirect)
	if err != nil {
		return err
	}
	token, err := g.client.OAuthCallback(ctx, provider, code)
	if err != nil {
		return err
	}
	return g.adopt(token)
}

// extractCode pulls the authorization code out of a pasted redirect URL,
// passing bare codes through unchanged.
func extractCode(redirect string) (string, error) {
	redirect = strings.TrimSpace(redirect)
	if redirect == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	if !strings.Contains(redirect, "://") && !strings.Contains(redirect, "?") {
		return redirect, nil
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if msg := q.Get("error"); msg != "" {
		if desc := q.Get("error_description"); desc != "" {
			msg = desc
		}
		return "", fmt.Errorf("authorization failed: %s", msg)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL carries no authorization code")
	}
	return code, nil
}
