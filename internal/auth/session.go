// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"sync"

	"github.com/google/uuid"
)

var (
	sessionOnce sync.Once
	sessionID   string
)

// SessionID returns the anonymous session identifier for this process.
// Unauthenticated requests carry it so the server can count free-tier
// usage. It is generated once and never persisted.
func SessionID() string {
	sessionOnce.Do(func() {
		sessionID = uuid.NewString()
	})
	return sessionID
}
