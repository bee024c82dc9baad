// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the line-mode chat client for terminals without TUI
// support and for piped sessions.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/jeranaias/mgchat/internal/commands"
	"github.com/jeranaias/mgchat/internal/lang"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/render"
	"github.com/jeranaias/mgchat/internal/router"
	"github.com/jeranaias/mgchat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	servedLocalStyle = lipgloss.NewStyle().
				Foreground(styles.Emerald)
)

// =============================================================================
// CLIENT
// =============================================================================

// Options configures the line-mode client.
type Options struct {
	Env      *commands.Env
	Registry *commands.Registry
	Renderer *render.Renderer
}

// Client runs the read-eval-print loop.
type Client struct {
	env      *commands.Env
	registry *commands.Registry
	renderer *render.Renderer
	editor   *LineEditor
	markdown bool
}

// New creates a line-mode client. Markdown rendering is enabled only when
// stdout is a terminal.
func New(opts Options) *Client {
	return &Client{
		env:      opts.Env,
		registry: opts.Registry,
		renderer: opts.Renderer,
		editor:   NewLineEditor(),
		markdown: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Run drives the REPL until /quit, Ctrl+D, or a second Ctrl+C at the prompt.
func (c *Client) Run(ctx context.Context) error {
	defer c.editor.Close()

	c.printWelcome()

	// Ctrl+C during a reply cancels the stream instead of exiting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			c.env.Pipeline.Cancel()
		}
	}()

	for {
		input, err := c.editor.Read(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt or EOF both end the session.
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if commands.IsCommand(input) {
			quit := c.runCommand(input)
			if quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := c.send(ctx, input); err != nil {
			c.printError(err)
		}
	}
}

// runCommand dispatches a slash command and reports whether to exit.
func (c *Client) runCommand(input string) bool {
	res, err := c.registry.Execute(c.env, input)
	if err != nil {
		c.printError(err)
		return false
	}
	if res.Output != "" {
		fmt.Println(infoStyle.Render(res.Output))
	}
	if res.LoginPrompt {
		if err := c.runLogin(c.env.Ctx); err != nil && !c.editor.Aborted(err) {
			c.printError(err)
		}
	}
	if res.OpenConversation != "" {
		conv, err := c.env.Repo.Open(c.env.Ctx, res.OpenConversation)
		if err != nil {
			c.printError(err)
		} else {
			c.env.Pipeline.SetConversation(conv)
			c.printInfo("Opened " + conv.DisplayTitle() + ".")
		}
	}
	// Commands like /retry start a submission of their own.
	if c.env.Pipeline.Busy() {
		if err := c.awaitReply(); err != nil {
			c.printError(err)
		}
	}
	return res.Quit
}

// send submits a message and blocks until the reply finishes or fails.
func (c *Client) send(ctx context.Context, input string) error {
	if !c.env.Pipeline.Submit(input) {
		return fmt.Errorf("could not submit, a reply may still be in progress")
	}
	return c.awaitReply()
}

// awaitReply drains pipeline events for the in-flight request, printing the
// reply as it arrives.
func (c *Client) awaitReply() error {
	fmt.Println()
	var content string
	var served router.Served

loop:
	for ev := range c.env.Pipeline.Events() {
		switch ev.Kind {
		case pipeline.EventDelta:
			// Stream raw text; the markdown pass happens on the full
			// reply where formatting is reliable.
			if !c.markdown {
				fmt.Print(ev.Delta)
			}
		case pipeline.EventDone:
			if ev.Message != nil {
				content = ev.Message.Content
			}
			served = ev.Served
			break loop
		case pipeline.EventError:
			fmt.Println()
			return ev.Err
		}
	}

	if c.markdown {
		fmt.Print(c.renderer.Render(content))
	}
	fmt.Println()
	if served == router.ServedLocal {
		fmt.Println(servedLocalStyle.Render("(answered by the local model)"))
	}
	fmt.Println()

	if c.env.Speaker.Enabled() {
		c.env.Speaker.Speak(content, lang.Detect(content))
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (c *Client) printWelcome() {
	fmt.Println(infoStyle.Render("mgchat - type a message, /help for commands, /quit to exit"))
	if !c.env.Gate.Authenticated() {
		fmt.Println(infoStyle.Render("Not logged in. Conversations stay on this machine until /login."))
	}
	fmt.Println()
}

func (c *Client) printInfo(msg string) {
	fmt.Println(infoStyle.Render(msg))
}

func (c *Client) printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("[Error]")+" "+err.Error())
}
