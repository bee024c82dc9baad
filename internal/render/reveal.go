// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/time/rate"
)

// revealRate paces the word-by-word reveal of a reply that arrived in one
// piece, so it reads like a live stream. 20 tokens per second is 50ms apart.
const revealRate = rate.Limit(20)

// Revealer emits a reply one token at a time at a fixed pace.
type Revealer struct {
	limiter *rate.Limiter
}

// NewRevealer creates a revealer at the default pace.
func NewRevealer() *Revealer {
	return &Revealer{limiter: rate.NewLimiter(revealRate, 1)}
}

// Reveal splits text into tokens and delivers each through emit, waiting
// out the pacing interval between them. Cancelling the context stops the
// reveal; the remaining text is not delivered.
func (r *Revealer) Reveal(ctx context.Context, text string, emit func(token string)) error {
	for _, token := range SplitTokens(text) {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		emit(token)
	}
	return nil
}

// SplitTokens breaks text into reveal units: a word plus its trailing
// whitespace per token. Angle-bracketed tags travel as one token so markup
// is never emitted half-open, and splits always land on rune boundaries.
func SplitTokens(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	runes := []rune(text)
	start := 0
	i := 0

	for i < len(runes) {
		// A tag is consumed whole, through its closing bracket.
		if runes[i] == '<' {
			j := i + 1
			for j < len(runes) && runes[j] != '>' && runes[j] != '\n' {
				j++
			}
			if j < len(runes) && runes[j] == '>' {
				i = j + 1
				continue
			}
		}

		if unicode.IsSpace(runes[i]) {
			// Attach the whitespace run to the preceding word.
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
			start = i
			continue
		}
		i++
	}
	if start < len(runes) {
		tokens = append(tokens, string(runes[start:]))
	}
	return tokens
}

// Plain strips the reveal into a single string, used in tests and exports.
func Plain(tokens []string) string {
	return strings.Join(tokens, "")
}
