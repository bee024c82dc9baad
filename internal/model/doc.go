// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation holds an ordered transcript of Messages plus title and
// timestamp metadata. Conversations start local-only and acquire a server id
// the first time the chat service persists them or during sync-on-login.
package model
