// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the MGZon chat service.
//
// It covers authentication (password, registration, OAuth code exchange),
// the chat endpoint in both of its response modes (single JSON reply and
// text/plain chunk stream), media uploads, conversation CRUD and sync, and
// user settings. All failures are *ClientError values classified by
// ErrorType; streaming failures additionally carry the partial reply through
// *StreamError so cancelled requests can be finalized.
package api
