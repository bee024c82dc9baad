// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/util"
)

// MaxConversations bounds the local cache. Oldest conversations are evicted
// first once the limit is reached.
const MaxConversations = 200

// ErrNotFound is returned when a conversation does not exist.
// Use errors.Is(err, ErrNotFound) to check for it.
var ErrNotFound = &StoreError{Message: "conversation not found"}

// StoreError represents a storage-level error.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LOCAL STORE
// =============================================================================

// LocalStore persists conversations as one JSON file each. It is the cache
// behind the repository: every mutation lands here regardless of whether the
// server copy exists.
type LocalStore struct {
	baseDir string
	maxConv int
}

// NewLocalStore creates a store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &LocalStore{baseDir: baseDir, maxConv: MaxConversations}, nil
}

// Dir returns the directory conversations are stored in.
func (s *LocalStore) Dir() string {
	return s.baseDir
}

// Save writes the conversation atomically.
func (s *LocalStore) Save(conv *model.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return err
	}
	if s.maxConv > 0 {
		s.enforceLimit()
	}
	return nil
}

// Load reads a conversation by id.
func (s *LocalStore) Load(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Delete removes a conversation. Missing conversations yield ErrNotFound.
func (s *LocalStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Exists reports whether a conversation file is present.
func (s *LocalStore) Exists(id string) bool {
	_, err := os.Stat(s.filePath(id))
	return err == nil
}

// List returns metadata for all conversations, most recently updated first.
// Corrupted files are skipped.
func (s *LocalStore) List() ([]model.ConversationMeta, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.ConversationMeta{}, nil
		}
		return nil, err
	}

	var metas []model.ConversationMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, conv.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// ListLocalOnly returns conversations the server has never seen, oldest
// first so sync preserves creation order.
func (s *LocalStore) ListLocalOnly() ([]*model.Conversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	var convs []*model.Conversation
	for _, meta := range metas {
		if !meta.LocalOnly {
			continue
		}
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})
	return convs, nil
}

// Rekey moves a conversation to a new id, used when the server assigns an
// identity to a conversation created offline.
func (s *LocalStore) Rekey(oldID, newID string) error {
	conv, err := s.Load(oldID)
	if err != nil {
		return err
	}
	conv.ID = newID
	if err := s.Save(conv); err != nil {
		return err
	}
	return s.Delete(oldID)
}

// Clear removes every stored conversation.
func (s *LocalStore) Clear() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.baseDir, entry.Name()))
		}
	}
	return nil
}

// enforceLimit evicts the oldest conversations over the cap.
func (s *LocalStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.maxConv {
		return
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})
	for i := 0; i < len(metas)-s.maxConv; i++ {
		s.Delete(metas[i].ID)
	}
}

func (s *LocalStore) filePath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}
