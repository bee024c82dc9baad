// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/mgchat/internal/commands"
	"github.com/jeranaias/mgchat/internal/pipeline"
)

// Ask sends one message, streams the answer to stdout, and returns. Used for
// `mgchat "question"` so the answer can be piped.
func Ask(env *commands.Env, message string) error {
	if !env.Pipeline.Submit(message) {
		return fmt.Errorf("empty message")
	}

	streamed := false
	for ev := range env.Pipeline.Events() {
		switch ev.Kind {
		case pipeline.EventDelta:
			streamed = true
			fmt.Print(ev.Delta)
		case pipeline.EventDone:
			// Single-shot replies arrive without deltas.
			if !streamed && ev.Message != nil {
				fmt.Print(ev.Message.Content)
			}
			fmt.Println()
			return nil
		case pipeline.EventError:
			return ev.Err
		}
	}
	return nil
}
