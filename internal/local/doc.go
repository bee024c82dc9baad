// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package local speaks to a local inference runtime so the client keeps
// working without a network connection. It covers streaming text generation
// and audio transcription against an Ollama-compatible HTTP API.
package local
