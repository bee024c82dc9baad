// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/mgchat/internal/api"
)

// Defaults for the local runtime connection.
const (
	// DefaultBaseURL uses the explicit IPv4 loopback to avoid IPv6
	// resolution issues on Windows.
	DefaultBaseURL = "http://127.0.0.1:11434"

	DefaultTimeout = 30 * time.Second

	// FallbackAudioModel is tried when the configured audio model cannot
	// decode the input.
	FallbackAudioModel = "whisper-tiny"
)

// audioExtensions lists the formats the local decoder accepts.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
	".webm": true,
}

// =============================================================================
// RUNTIME
// =============================================================================

// Config holds the local runtime connection settings.
type Config struct {
	BaseURL    string
	TextModel  string
	AudioModel string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// sharedStreamingClient has no timeout; streaming requests are bounded by
// their context. The runtime is plain HTTP on localhost, so no TLS setup.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Runtime talks to a local inference server when the chat service is
// unreachable. Model availability is checked once per process and the
// outcome is cached, so a model installed mid-session is picked up on the
// next start.
type Runtime struct {
	baseURL    string
	textModel  string
	audioModel string
	httpClient *http.Client
	log        *slog.Logger

	modelMu sync.Mutex
	models  map[string]error
}

// NewRuntime creates a Runtime, applying defaults for unset fields.
func NewRuntime(cfg Config) *Runtime {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runtime{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		textModel:  cfg.TextModel,
		audioModel: cfg.AudioModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        cfg.Logger,
		models:     make(map[string]error),
	}
}

// BaseURL returns the runtime endpoint.
func (r *Runtime) BaseURL() string {
	return r.baseURL
}

// TextModel returns the configured text model name.
func (r *Runtime) TextModel() string {
	return r.textModel
}

// Available reports whether the runtime answers on its base URL.
func (r *Runtime) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models installed in the runtime.
func (r *Runtime) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("local runtime is not running", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable("failed to list models: "+resp.Status, nil)
	}
	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, unavailable("failed to decode model list", err)
	}
	return result.Models, nil
}

// EnsureModel verifies the named model is loadable. The result, success or
// failure, is cached for the life of the process.
func (r *Runtime) EnsureModel(ctx context.Context, model string) error {
	r.modelMu.Lock()
	cached, seen := r.models[model]
	r.modelMu.Unlock()
	if seen {
		return cached
	}

	err := r.showModel(ctx, model)
	if err != nil {
		r.log.Warn("local model unavailable", "model", model, "error", err)
	}

	r.modelMu.Lock()
	r.models[model] = err
	r.modelMu.Unlock()
	return err
}

// showModel checks model presence via /api/show.
func (r *Runtime) showModel(ctx context.Context, model string) error {
	body, err := json.Marshal(ShowModelRequest{Name: model})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return unavailable("local runtime is not running", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return unavailable(fmt.Sprintf("model %q is not installed", model), nil)
	default:
		return unavailable("unexpected status from local runtime: "+resp.Status, nil)
	}
}

// =============================================================================
// CHAT
// =============================================================================

// Chat streams a reply from the local text model. The signature mirrors the
// remote client so the two paths are interchangeable to the caller: deltas
// arrive through cb and the accumulated reply is returned. Local replies
// never carry a server conversation id, so the meta result is always nil.
func (r *Runtime) Chat(ctx context.Context, req api.ChatRequest, cb api.StreamCallback) (string, *api.ChatMeta, error) {
	if err := r.EnsureModel(ctx, r.textModel); err != nil {
		return "", nil, err
	}

	messages := make([]Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, h := range req.History {
		messages = append(messages, Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, Message{Role: "user", Content: req.Message})

	body, err := json.Marshal(ChatRequest{
		Model:    r.textModel,
		Messages: messages,
		Stream:   true,
		Options: &Options{
			Temperature: req.Temperature,
			NumPredict:  req.MaxNewTokens,
		},
	})
	if err != nil {
		return "", nil, err
	}

	// No client timeout on the streaming request. Cancellation comes from
	// the context.
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sharedStreamingClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return "", nil, &api.StreamError{Err: api.NewError(api.ErrTypeAbortedByUser, api.ErrAbortedByUser.Message, err)}
		}
		return "", nil, unavailable("local runtime is not running", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var re runtimeError
		if err := json.NewDecoder(resp.Body).Decode(&re); err == nil && re.Error != "" {
			return "", nil, unavailable(re.Error, nil)
		}
		return "", nil, unavailable("chat request failed: "+resp.Status, nil)
	}

	reader := NewStreamReader(resp.Body)
	if err := reader.Process(ctx, cb); err != nil {
		partial := reader.Accumulated()
		if errors.Is(err, context.Canceled) {
			return partial, nil, &api.StreamError{
				Partial: partial,
				Err:     api.NewError(api.ErrTypeAbortedByUser, api.ErrAbortedByUser.Message, err),
			}
		}
		return partial, nil, &api.StreamError{
			Partial: partial,
			Err:     unavailable("stream from local runtime failed", err),
		}
	}
	if cb != nil {
		cb(api.StreamChunk{Done: true})
	}
	return reader.Accumulated(), nil, nil
}

// =============================================================================
// AUDIO TRANSCRIPTION
// =============================================================================

// Transcribe decodes an audio file with the configured audio model, falling
// back to the small built-in model when the primary cannot handle the input.
func (r *Runtime) Transcribe(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !audioExtensions[ext] {
		return "", api.NewError(api.ErrTypeAudioFormatUnsupported,
			fmt.Sprintf("audio format %q is not supported", ext), nil)
	}

	text, err := r.transcribeWith(ctx, path, r.audioModel)
	if err == nil {
		return text, nil
	}
	if api.TypeOf(err) == api.ErrTypeLocalModelUnavailable {
		return "", err
	}

	r.log.Warn("primary audio model failed, trying fallback",
		"model", r.audioModel, "error", err)
	text, ferr := r.transcribeWith(ctx, path, FallbackAudioModel)
	if ferr != nil {
		return "", api.NewError(api.ErrTypeAudioFormatUnsupported,
			"audio could not be decoded", ferr)
	}
	return text, nil
}

// transcribeWith posts the file to the OpenAI-compatible transcription
// endpoint with the given model.
func (r *Runtime) transcribeWith(ctx context.Context, path, model string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", model); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", unavailable("local runtime is not running", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var re runtimeError
		if err := json.NewDecoder(resp.Body).Decode(&re); err == nil && re.Error != "" {
			return "", fmt.Errorf("transcription failed: %s", re.Error)
		}
		return "", fmt.Errorf("transcription failed: %s", resp.Status)
	}

	var result TranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription: %w", err)
	}
	return result.Text, nil
}

// unavailable wraps a local runtime failure in the shared error taxonomy.
func unavailable(msg string, cause error) *api.ClientError {
	return api.NewError(api.ErrTypeLocalModelUnavailable, msg, cause)
}
