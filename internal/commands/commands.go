// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash commands shared by the TUI and the
// plain line-mode client.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/mgchat/internal/api"
	"github.com/jeranaias/mgchat/internal/auth"
	"github.com/jeranaias/mgchat/internal/config"
	"github.com/jeranaias/mgchat/internal/export"
	"github.com/jeranaias/mgchat/internal/offline"
	"github.com/jeranaias/mgchat/internal/pipeline"
	"github.com/jeranaias/mgchat/internal/speech"
	"github.com/jeranaias/mgchat/internal/store"
	"github.com/jeranaias/mgchat/internal/tasks"
)

// Env is everything a command may touch.
type Env struct {
	Ctx        context.Context
	Pipeline   *pipeline.Pipeline
	Repo       *store.Repository
	Gate       *auth.Gate
	Client     *api.Client
	Speaker    *speech.Speaker
	Config     *config.Config
	ConfigPath string
	Runner     *tasks.Runner
}

// Result tells the front end what happened and what to do next.
type Result struct {
	// Output is text to show the user.
	Output string

	// Quit asks the front end to exit.
	Quit bool

	// RefreshSidebar asks for a conversation list reload.
	RefreshSidebar bool

	// OpenConversation asks the front end to switch transcripts.
	OpenConversation string

	// ClearTranscript asks the front end to blank the view, set when the
	// active conversation was deleted.
	ClearTranscript bool

	// LoginPrompt asks the front end to run its interactive login flow.
	LoginPrompt bool
}

// Command is one slash command.
type Command struct {
	Name  string
	Usage string
	Help  string
	Run   func(env *Env, args []string) (Result, error)
}

// Registry maps command names to implementations.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry builds the registry with every built-in command.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]*Command)}
	for _, cmd := range builtins() {
		r.commands[cmd.Name] = cmd
	}
	return r
}

// IsCommand reports whether the input line is a slash command.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Execute parses and runs a command line. Unknown commands return an error
// with the help hint.
func (r *Registry) Execute(env *Env, line string) (Result, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Result{}, fmt.Errorf("empty command")
	}
	name := strings.TrimPrefix(fields[0], "/")
	cmd, ok := r.commands[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown command /%s, try /help", name)
	}
	return cmd.Run(env, fields[1:])
}

// Help renders the command list.
func (r *Registry) Help() string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, name := range names {
		cmd := r.commands[name]
		sb.WriteString(fmt.Sprintf("  %-28s %s\n", cmd.Usage, cmd.Help))
	}
	return sb.String()
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func builtins() []*Command {
	var registry *Registry // bound below for /help

	cmds := []*Command{
		{
			Name: "new", Usage: "/new", Help: "start a new conversation",
			Run: func(env *Env, args []string) (Result, error) {
				if env.Pipeline.Busy() {
					return Result{}, fmt.Errorf("a reply is still in progress")
				}
				conv, err := env.Repo.Create()
				if err != nil {
					return Result{}, err
				}
				env.Pipeline.SetConversation(conv)
				return Result{Output: "Started a new conversation.", RefreshSidebar: true, ClearTranscript: true}, nil
			},
		},
		{
			Name: "open", Usage: "/open <number|id>", Help: "open a conversation from the list",
			Run: func(env *Env, args []string) (Result, error) {
				if len(args) != 1 {
					return Result{}, fmt.Errorf("usage: /open <number|id>")
				}
				id, err := resolveConversation(env, args[0])
				if err != nil {
					return Result{}, err
				}
				return Result{OpenConversation: id}, nil
			},
		},
		{
			Name: "list", Usage: "/list", Help: "list conversations",
			Run: func(env *Env, args []string) (Result, error) {
				metas, err := env.Repo.List(env.Ctx)
				if err != nil {
					return Result{}, err
				}
				if len(metas) == 0 {
					return Result{Output: "No conversations yet."}, nil
				}
				var sb strings.Builder
				for i, meta := range metas {
					marker := " "
					if conv := env.Pipeline.Conversation(); conv != nil && conv.ID == meta.ID {
						marker = "*"
					}
					title := meta.Title
					if title == "" {
						title = "New Conversation"
					}
					sb.WriteString(fmt.Sprintf("%s %2d. %s (%d messages)\n", marker, i+1, title, meta.MessageCount))
				}
				return Result{Output: strings.TrimRight(sb.String(), "\n")}, nil
			},
		},
		{
			Name: "delete", Usage: "/delete <number|id>", Help: "delete a conversation",
			Run: func(env *Env, args []string) (Result, error) {
				if len(args) != 1 {
					return Result{}, fmt.Errorf("usage: /delete <number|id>")
				}
				id, err := resolveConversation(env, args[0])
				if err != nil {
					return Result{}, err
				}
				if err := env.Repo.Delete(env.Ctx, id); err != nil {
					return Result{}, err
				}
				res := Result{Output: "Conversation deleted.", RefreshSidebar: true}
				if conv := env.Pipeline.Conversation(); conv != nil && conv.ID == id {
					env.Pipeline.ClearConversation()
					res.ClearTranscript = true
				}
				return res, nil
			},
		},
		{
			Name: "rename", Usage: "/rename <title>", Help: "rename the active conversation",
			Run: func(env *Env, args []string) (Result, error) {
				conv := env.Pipeline.Conversation()
				if conv == nil {
					return Result{}, fmt.Errorf("no active conversation")
				}
				title := strings.TrimSpace(strings.Join(args, " "))
				if title == "" {
					return Result{}, fmt.Errorf("usage: /rename <title>")
				}
				if err := env.Repo.Rename(env.Ctx, conv.ID, title); err != nil {
					return Result{}, err
				}
				conv.SetTitle(title)
				return Result{Output: "Renamed to " + strconv.Quote(title) + ".", RefreshSidebar: true}, nil
			},
		},
		{
			Name: "retry", Usage: "/retry", Help: "resend the last message",
			Run: func(env *Env, args []string) (Result, error) {
				if !env.Pipeline.Retry() {
					return Result{}, fmt.Errorf("nothing to retry")
				}
				return Result{}, nil
			},
		},
		{
			Name: "search", Usage: "/search <text>", Help: "search message content",
			Run: func(env *Env, args []string) (Result, error) {
				query := strings.Join(args, " ")
				if strings.TrimSpace(query) == "" {
					return Result{}, fmt.Errorf("usage: /search <text>")
				}
				hits, err := env.Repo.Search(query, 10)
				if err != nil {
					return Result{}, err
				}
				if len(hits) == 0 {
					return Result{Output: "No matches."}, nil
				}
				var sb strings.Builder
				for _, hit := range hits {
					sb.WriteString(fmt.Sprintf("%s: %s\n", hit.Title, hit.Snippet))
				}
				return Result{Output: strings.TrimRight(sb.String(), "\n")}, nil
			},
		},
		{
			Name: "lang", Usage: "/lang [code]", Help: "show or pin the reply language",
			Run: func(env *Env, args []string) (Result, error) {
				if len(args) == 0 {
					current := env.Config.Generation.Language
					if current == "" {
						return Result{Output: "Language: auto-detect"}, nil
					}
					return Result{Output: "Language: " + current}, nil
				}
				code := strings.ToLower(args[0])
				if code == "auto" {
					env.Config.Generation.Language = ""
				} else {
					env.Config.Generation.Language = code
				}
				if err := env.Config.Save(env.ConfigPath); err != nil {
					return Result{}, err
				}
				pushSettings(env)
				return Result{Output: "Language set to " + args[0] + "."}, nil
			},
		},
		{
			Name: "tts", Usage: "/tts on|off", Help: "toggle spoken replies",
			Run: func(env *Env, args []string) (Result, error) {
				if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
					return Result{}, fmt.Errorf("usage: /tts on|off")
				}
				on := args[0] == "on"
				if on && !env.Speaker.Available() {
					return Result{}, fmt.Errorf("no speech engine installed (espeak-ng)")
				}
				env.Speaker.SetEnabled(on)
				env.Config.TTS.Enabled = on
				if err := env.Config.Save(env.ConfigPath); err != nil {
					return Result{}, err
				}
				pushSettings(env)
				return Result{Output: "Speech " + args[0] + "."}, nil
			},
		},
		{
			Name: "export", Usage: "/export [path] [md|json]", Help: "export the active conversation",
			Run: func(env *Env, args []string) (Result, error) {
				conv := env.Pipeline.Conversation()
				if conv == nil {
					return Result{}, fmt.Errorf("no active conversation")
				}
				format := export.FormatMarkdown
				path := ""
				for _, arg := range args {
					if f, err := export.ParseFormat(arg); err == nil && (arg == "md" || arg == "json" || arg == "markdown") {
						format = f
						continue
					}
					path = arg
				}
				if path == "" {
					path = export.DefaultPath(".", conv, format)
				}
				written, err := export.Write(conv, path, format)
				if err != nil {
					return Result{}, err
				}
				return Result{Output: "Exported to " + written + "."}, nil
			},
		},
		{
			Name: "settings", Usage: "/settings", Help: "show the current settings",
			Run: func(env *Env, args []string) (Result, error) {
				cfg := env.Config
				language := cfg.Generation.Language
				if language == "" {
					language = "auto"
				}
				out := fmt.Sprintf(
					"Server:       %s\nLocal model:  %s\nLanguage:     %s\nTemperature:  %.1f\nSpeech:       %v\nConfig file:  %s",
					cfg.Server.URL, cfg.Local.TextModel, language,
					cfg.Generation.Temperature, cfg.TTS.Enabled, env.ConfigPath)
				return Result{Output: out}, nil
			},
		},
		{
			Name: "profile", Usage: "/profile username|email <value>", Help: "change an account field",
			Run: func(env *Env, args []string) (Result, error) {
				if len(args) != 2 {
					return Result{}, fmt.Errorf("usage: /profile username|email <value>")
				}
				var p api.Profile
				switch args[0] {
				case "username":
					p.Username = args[1]
				case "email":
					p.Email = args[1]
				default:
					return Result{}, fmt.Errorf("usage: /profile username|email <value>")
				}
				if !env.Gate.Authenticated() {
					return Result{}, fmt.Errorf("log in first with /login")
				}
				if err := env.Client.UpdateProfile(env.Ctx, p); err != nil {
					return Result{}, err
				}
				return Result{Output: "Profile updated."}, nil
			},
		},
		{
			Name: "login", Usage: "/login", Help: "log in to sync conversations",
			Run: func(env *Env, args []string) (Result, error) {
				if env.Gate.Authenticated() {
					return Result{Output: "Already logged in."}, nil
				}
				return Result{LoginPrompt: true}, nil
			},
		},
		{
			Name: "logout", Usage: "/logout", Help: "log out and forget the session",
			Run: func(env *Env, args []string) (Result, error) {
				if err := env.Gate.Logout(); err != nil {
					return Result{}, err
				}
				return Result{Output: "Logged out.", RefreshSidebar: true}, nil
			},
		},
		{
			Name: "sync", Usage: "/sync", Help: "push offline conversations to the server",
			Run: func(env *Env, args []string) (Result, error) {
				if !env.Gate.Authenticated() {
					return Result{}, fmt.Errorf("log in first with /login")
				}
				count, err := env.Repo.SyncOnLogin(env.Ctx)
				if err != nil {
					return Result{}, err
				}
				if count == 0 {
					return Result{Output: "Nothing to sync."}, nil
				}
				return Result{Output: fmt.Sprintf("Synced %d conversation(s).", count), RefreshSidebar: true}, nil
			},
		},
		{
			Name: "offline", Usage: "/offline", Help: "pin the session to the local model",
			Run: func(env *Env, args []string) (Result, error) {
				offline.ForceOffline()
				return Result{Output: "Offline mode: replies come from " + env.Config.Local.TextModel + "."}, nil
			},
		},
		{
			Name: "quit", Usage: "/quit", Help: "exit",
			Run: func(env *Env, args []string) (Result, error) {
				return Result{Quit: true}, nil
			},
		},
	}

	help := &Command{
		Name: "help", Usage: "/help", Help: "show this help",
		Run: func(env *Env, args []string) (Result, error) {
			return Result{Output: registry.Help()}, nil
		},
	}
	cmds = append(cmds, help)

	registry = &Registry{commands: make(map[string]*Command)}
	for _, cmd := range cmds {
		registry.commands[cmd.Name] = cmd
	}
	return cmds
}

// pushSettings mirrors local preference changes to the server. Failures only
// reach the log, the local config is already saved.
func pushSettings(env *Env) {
	if env.Client == nil || env.Runner == nil || !env.Gate.Authenticated() {
		return
	}
	cfg := env.Config
	settings := api.Settings{
		Language:     cfg.Generation.Language,
		TTSEnabled:   cfg.TTS.Enabled,
		TTSVoice:     cfg.TTS.Voice,
		OutputFormat: cfg.Generation.OutputFormat,
		Temperature:  cfg.Generation.Temperature,
	}
	env.Runner.Go("settings-push", func(ctx context.Context) error {
		return env.Client.UpdateSettings(ctx, settings)
	})
}

// resolveConversation accepts either a 1-based list position or an id.
func resolveConversation(env *Env, arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		metas, err := env.Repo.List(env.Ctx)
		if err != nil {
			return "", err
		}
		if n < 1 || n > len(metas) {
			return "", fmt.Errorf("no conversation %d, see /list", n)
		}
		return metas[n-1].ID, nil
	}
	return arg, nil
}
