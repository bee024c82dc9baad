// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
)

// readPassword reads a password without echo. Falls back to plain input when
// stdin is not a terminal.
func (c *Client) readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return c.editor.Read(prompt)
	}
	fmt.Print(prompt)
	data, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// runLogin walks the interactive login flow: password, account creation, or
// an OAuth code paste.
func (c *Client) runLogin(ctx context.Context) error {
	choice, err := c.editor.Read("Log in with [p]assword, [r]egister, [g]oogle, or git[h]ub? ")
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "p", "password", "":
		return c.loginPassword(ctx)
	case "r", "register":
		return c.register(ctx)
	case "g", "google":
		return c.loginOAuth(ctx, auth.ProviderGoogle)
	case "h", "github":
		return c.loginOAuth(ctx, auth.ProviderGitHub)
	}
	return fmt.Errorf("unknown choice %q", strings.TrimSpace(choice))
}

func (c *Client) loginPassword(ctx context.Context) error {
	email, err := c.editor.Read("Email: ")
	if err != nil {
		return err
	}
	password, err := c.readPassword("Password: ")
	if err != nil {
		return err
	}
	if err := c.env.Gate.Login(ctx, strings.TrimSpace(email), password); err != nil {
		return err
	}
	c.printInfo("Logged in.")
	return nil
}

func (c *Client) register(ctx context.Context) error {
	email, err := c.editor.Read("Email: ")
	if err != nil {
		return err
	}
	username, err := c.editor.Read("Username: ")
	if err != nil {
		return err
	}
	password, err := c.readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := c.readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	err = c.env.Gate.Register(ctx, api.RegisterRequest{
		Email:    strings.TrimSpace(email),
		Username: strings.TrimSpace(username),
		Password: password,
	})
	if err != nil {
		return err
	}
	c.printInfo("Account created and logged in.")
	return nil
}

func (c *Client) loginOAuth(ctx context.Context, provider string) error {
	url, err := c.env.Gate.BeginOAuth(ctx, provider)
	if err != nil {
		return err
	}
	fmt.Println("Open this URL in a browser and authorize:")
	fmt.Println("  " + url)
	pasted, err := c.editor.Read("Paste the code or redirect URL: ")
	if err != nil {
		return err
	}
	if err := c.env.Gate.CompleteOAuth(ctx, provider, pasted); err != nil {
		return err
	}
	c.printInfo("Logged in with " + provider + ".")
	return nil
}
