// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth manages the login state of the client: the encrypted token
// keystore, the startup auth check, password and OAuth login flows, and the
// anonymous session identifier used before login.
package auth
