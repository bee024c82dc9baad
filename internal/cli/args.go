// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
)

// Args holds the parsed command line.
type Args struct {
	// Plain selects the line-mode client instead of the TUI.
	Plain bool

	// Offline pins the session to the local model.
	Offline bool

	// ConfigPath overrides the default config file location.
	ConfigPath string

	// ServerURL overrides server.url from the config.
	ServerURL string

	// Model overrides local.text_model from the config.
	Model string

	// Language pins the reply language instead of detecting it.
	Language string

	// Message, when non-empty, is sent as a single question and the answer
	// is printed to stdout.
	Message string

	// Version and Help short-circuit startup.
	Version bool
	Help    bool
}

// Parse reads the raw arguments. Flags may appear in --flag value or
// --flag=value form; remaining positional words join into a one-shot
// message.
func Parse(raw []string) Args {
	var args Args
	var positional []string

	i := 0
	for i < len(raw) {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		value := ""
		hasValue := false
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			value = name[eq+1:]
			name = name[:eq]
			hasValue = true
		}
		takeValue := func() string {
			if hasValue {
				return value
			}
			if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
				i++
				return raw[i]
			}
			return ""
		}

		switch name {
		case "plain", "p":
			args.Plain = true
		case "offline", "local":
			args.Offline = true
		case "config", "c":
			args.ConfigPath = takeValue()
		case "server":
			args.ServerURL = takeValue()
		case "model", "m":
			args.Model = takeValue()
		case "lang", "l":
			args.Language = takeValue()
		case "version", "v":
			args.Version = true
		case "help", "h":
			args.Help = true
		}
		i++
	}

	args.Message = strings.Join(positional, " ")
	return args
}

// Usage is the --help text.
const Usage = `mgchat - terminal client for the MGZon chat service

Usage:
  mgchat [flags]              start the chat TUI
  mgchat [flags] <message>    ask one question and print the answer

Flags:
  -p, --plain           line-mode client instead of the TUI
      --offline         answer with the local model only
  -c, --config PATH     config file (default ~/.config/mgchat/config.toml)
      --server URL      override the chat service URL
  -m, --model NAME      override the local text model
  -l, --lang CODE       pin the reply language, e.g. ar
  -v, --version         print the version
  -h, --help            this help
`
