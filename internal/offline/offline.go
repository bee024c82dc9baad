// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline tracks whether the remote chat service is reachable.
package offline

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ProbeTimeout bounds the reachability check so a dead network cannot stall
// startup or submission.
const ProbeTimeout = 3 * time.Second

// =============================================================================
// GLOBAL MODE
// =============================================================================

var (
	mu      sync.RWMutex
	offline bool
	// forced pins the mode regardless of probe results, set by the
	// --offline flag or config.
	forced bool
)

// IsOffline reports the current mode.
func IsOffline() bool {
	mu.RLock()
	defer mu.RUnlock()
	return offline
}

// SetOffline records the mode after a probe.
func SetOffline(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if forced {
		return
	}
	offline = v
}

// ForceOffline pins offline mode on, ignoring later probes.
func ForceOffline() {
	mu.Lock()
	defer mu.Unlock()
	forced = true
	offline = true
}

// Reset clears mode and forcing. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	forced = false
	offline = false
}

// =============================================================================
// REACHABILITY PROBE
// =============================================================================

// probeClient uses short timeouts and no keep-alive state that could mask a
// dead link.
var probeClient = &http.Client{
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: ProbeTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   ProbeTimeout,
		ResponseHeaderTimeout: ProbeTimeout,
	},
	Timeout: ProbeTimeout,
}

// Probe sends a HEAD request to baseURL and records the result in the
// global mode. Any HTTP response, including an error status, proves
// reachability; only transport failure flips the client offline.
func Probe(ctx context.Context, baseURL string) bool {
	reachable := check(ctx, baseURL)
	SetOffline(!reachable)
	return reachable
}

func check(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// =============================================================================
// URL HELPERS
// =============================================================================

// IsLocalhost reports whether rawURL points at the local machine. Local
// endpoints are treated as reachable without probing.
func IsLocalhost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateBaseURL checks that a configured endpoint is an absolute http or
// https URL.
func ValidateBaseURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
