// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStyledKeepsContent(t *testing.T) {
	r := New(80, false)
	out := r.Render("# Title\n\nSome **bold** text.")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}

func TestRenderPlainPassesTextThrough(t *testing.T) {
	r := New(80, true)
	out := r.Render("just plain text, no markup")
	assert.Contains(t, out, "just plain text, no markup")
}

func TestRenderPlainHighlightsFencedCode(t *testing.T) {
	r := New(80, true)
	md := "Look:\n```go\nfunc main() {}\n```\ndone"
	out := r.Render(md)
	assert.Contains(t, out, "func")
	assert.Contains(t, out, "done")
	assert.NotContains(t, out, "```go")
}

func TestHighlightCodeUnknownLanguage(t *testing.T) {
	out := HighlightCode("some opaque text", "nosuchlang")
	assert.Contains(t, out, "opaque")
}

func TestSplitTokensWordsKeepWhitespace(t *testing.T) {
	tokens := SplitTokens("Hello brave new world")
	assert.Equal(t, []string{"Hello ", "brave ", "new ", "world"}, tokens)
	assert.Equal(t, "Hello brave new world", Plain(tokens))
}

func TestSplitTokensNeverSplitsTags(t *testing.T) {
	tokens := SplitTokens("before <a href=\"x\">link</a> after")
	for _, tok := range tokens {
		opens := strings.Count(tok, "<")
		closes := strings.Count(tok, ">")
		assert.Equal(t, opens, closes, "token %q has an unbalanced tag", tok)
	}
	assert.Equal(t, "before <a href=\"x\">link</a> after", Plain(tokens))
}

func TestSplitTokensMultibyteSafe(t *testing.T) {
	text := "مرحبا بالعالم こんにちは"
	tokens := SplitTokens(text)
	assert.Equal(t, text, Plain(tokens))
	for _, tok := range tokens {
		assert.True(t, len([]rune(tok)) > 0)
	}
}

func TestSplitTokensEmpty(t *testing.T) {
	assert.Nil(t, SplitTokens(""))
}

func TestRevealDeliversEverythingInOrder(t *testing.T) {
	r := NewRevealer()
	var got strings.Builder
	err := r.Reveal(context.Background(), "one two three", func(tok string) {
		got.WriteString(tok)
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three", got.String())
}

func TestRevealStopsOnCancel(t *testing.T) {
	r := NewRevealer()
	ctx, cancel := context.WithCancel(context.Background())

	var count int
	err := r.Reveal(ctx, strings.Repeat("word ", 50), func(tok string) {
		count++
		if count == 2 {
			cancel()
		}
	})
	assert.Error(t, err)
	assert.Less(t, count, 50)
}

func TestRevealPacing(t *testing.T) {
	r := NewRevealer()
	start := time.Now()
	err := r.Reveal(context.Background(), "a b c d", func(string) {})
	require.NoError(t, err)
	// Four tokens at 50ms apart, minus the initial burst allowance.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
