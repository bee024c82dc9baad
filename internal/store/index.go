// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/mgchat/internal/model"
)

// schema backs the full-text message search. The FTS table carries the
// message bodies; the conversations table supplies titles for display.
const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    conversation_id UNINDEXED,
    role UNINDEXED,
    content,
    tokenize='porter unicode61'
);
`

const initMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// =============================================================================
// SEARCH INDEX
// =============================================================================

// SearchHit is one conversation matching a search query.
type SearchHit struct {
	ConversationID string
	Title          string
	Snippet        string
}

// SearchIndex maintains a SQLite full-text index over message content so
// /search stays fast without loading every conversation file.
type SearchIndex struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*SearchIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	if _, err := db.Exec(initMetadata); err != nil {
		db.Close()
		return nil, err
	}
	return &SearchIndex{db: db}, nil
}

// Close closes the database.
func (idx *SearchIndex) Close() error {
	return idx.db.Close()
}

// IndexConversation replaces the indexed rows for a conversation with its
// current messages.
func (idx *SearchIndex) IndexConversation(conv *model.Conversation) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE conversation_id = ?`, conv.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO conversations (id, title, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		conv.ID, conv.DisplayTitle(), conv.UpdatedAt.Unix()); err != nil {
		return err
	}

	for _, msg := range conv.Messages {
		if msg.Content == "" {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO messages_fts (conversation_id, role, content) VALUES (?, ?, ?)`,
			conv.ID, string(msg.Role), msg.Content); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Remove drops a conversation from the index.
func (idx *SearchIndex) Remove(conversationID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages_fts WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

// Rekey moves indexed rows to a new conversation id.
func (idx *SearchIndex) Rekey(oldID, newID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE messages_fts SET conversation_id = ? WHERE conversation_id = ?`, newID, oldID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE OR REPLACE conversations SET id = ? WHERE id = ?`, newID, oldID); err != nil {
		return err
	}
	return tx.Commit()
}

// Search finds conversations whose messages match the query, best match
// first. At most limit hits are returned, one per conversation.
func (idx *SearchIndex) Search(query string, limit int) ([]SearchHit, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// snippet() is not allowed in an aggregate select, so matches arrive
	// ordered by rank and the best row per conversation is kept here.
	rows, err := idx.db.Query(`
		SELECT messages_fts.conversation_id,
		       c.title,
		       snippet(messages_fts, 2, '', '', '...', 12)
		FROM messages_fts
		JOIN conversations c ON c.id = messages_fts.conversation_id
		WHERE messages_fts MATCH ?
		ORDER BY rank`, ftsQuery)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	seen := make(map[string]bool)
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.ConversationID, &hit.Title, &hit.Snippet); err != nil {
			return nil, err
		}
		if seen[hit.ConversationID] {
			continue
		}
		seen[hit.ConversationID] = true
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	return hits, rows.Err()
}

// buildFTSQuery converts free text into a prefix-matching FTS5 query,
// quoting each token so user input cannot inject FTS syntax.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}
