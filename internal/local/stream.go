// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/jeranaias/mgchat/internal/api"
)

// StreamReader parses the runtime's newline-delimited JSON chat stream.
type StreamReader struct {
	reader      *bufio.Reader
	accumulator strings.Builder
	model       string
	tokenCount  int
}

// NewStreamReader wraps a response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream until done, delivering each delta through cb.
// Blocks until the stream completes or the context is cancelled.
func (s *StreamReader) Process(ctx context.Context, cb api.StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && len(line) == 0 {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if len(line) == 0 {
			continue
		}

		var resp ChatResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// Skip malformed lines.
			continue
		}
		if resp.Model != "" {
			s.model = resp.Model
		}
		if resp.Message.Content != "" {
			s.accumulator.WriteString(resp.Message.Content)
			s.tokenCount++
			if cb != nil {
				cb(api.StreamChunk{Delta: resp.Message.Content})
			}
		}
		if resp.Done {
			return nil
		}
	}
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// TokenCount returns the number of content chunks received.
func (s *StreamReader) TokenCount() int {
	return s.tokenCount
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}
