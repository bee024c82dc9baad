// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files for use outside the client.
package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/mgchat/internal/model"
	"github.com/jeranaias/mgchat/internal/util"
)

// Format selects the export encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q, use markdown or json", name)
}

// Markdown renders the conversation as a markdown transcript.
func Markdown(conv *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + conv.DisplayTitle() + "\n\n")
	sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		if msg.Streaming {
			continue
		}
		role := "**User**"
		switch msg.Role {
		case model.RoleAssistant:
			role = "**Assistant**"
		case model.RoleSystem:
			role = "**System**"
		}
		sb.WriteString(role + " (" + msg.CreatedAt.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// JSON renders the conversation as pretty-printed JSON.
func JSON(conv *model.Conversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}

// Write exports the conversation to path, inferring the format from the
// extension when format is empty. Returns the path written.
func Write(conv *model.Conversation, path string, format Format) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			format = FormatJSON
		default:
			format = FormatMarkdown
		}
	}

	var data []byte
	switch format {
	case FormatJSON:
		var err error
		data, err = JSON(conv)
		if err != nil {
			return "", err
		}
	case FormatMarkdown:
		data = []byte(Markdown(conv))
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}

	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultPath suggests a file name for an export in dir.
func DefaultPath(dir string, conv *model.Conversation, format Format) string {
	ext := ".md"
	if format == FormatJSON {
		ext = ".json"
	}
	name := sanitizeName(conv.DisplayTitle())
	if name == "" {
		name = "conversation"
	}
	return filepath.Join(dir, name+"-"+conv.CreatedAt.Format("20060102-1504")+ext)
}

// sanitizeName keeps file names portable.
func sanitizeName(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
