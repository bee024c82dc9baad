// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists conversations. A JSON file per conversation forms
// the local cache, a SQLite full-text index backs message search, and the
// repository decides per operation whether the server or the cache serves,
// mirroring every server result locally.
package store
