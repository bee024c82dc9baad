// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Configuration constants for the MGZon API.
const (
	// DefaultBaseURL is the production service endpoint.
	DefaultBaseURL = "https://mgzon-mgzon-app.hf.space"

	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// sharedHTTPClient pools connections for all non-streaming requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streaming requests are bounded
	// by their context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// TokenProvider supplies the current bearer token, or "" when the session is
// anonymous.
type TokenProvider func() string

// ClientConfig configures a Client. Zero values fall back to defaults.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// Token supplies the bearer token per request, so a login during the
	// process lifetime is picked up without rebuilding the client.
	Token TokenProvider

	// SessionID identifies an anonymous browsing session. Sent with every
	// chat request so the server can meter unauthenticated usage.
	SessionID string

	Logger *slog.Logger
}

// Client speaks the MGZon chat service HTTP API.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	token     TokenProvider
	sessionID string
	log       *slog.Logger
}

// NewClient creates a Client, applying defaults for unset config fields.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mgchat/0.1.0"
	}
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		token:     cfg.Token,
		sessionID: cfg.SessionID,
		log:       cfg.Logger,
	}
}

// BaseURL returns the configured service endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenProvider replaces the token source. Used when the auth layer is
// built after the client and owns the stored token.
func (c *Client) SetTokenProvider(tp TokenProvider) {
	if tp == nil {
		tp = func() string { return "" }
	}
	c.token = tp
}

// setHeaders applies the standard headers. The bearer token is attached only
// when one is available.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.sessionID != "" {
		req.Header.Set("X-Session-Id", c.sessionID)
	}
}

// readBody reads a response body with the size cap applied.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded %d bytes", int64(MaxResponseSize))
	}
	return body, nil
}

// statusError maps an HTTP error status to the client error taxonomy,
// preferring the server's "detail" message when one is present.
func statusError(statusCode int, body []byte) *ClientError {
	detail := ""
	var dr detailResponse
	if err := json.Unmarshal(body, &dr); err == nil {
		detail = dr.Detail
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return NewError(ErrTypeUnauthorized, MsgSessionExpired, nil)
	case statusCode == http.StatusForbidden:
		return NewError(ErrTypeLimitReached, MsgLimitReached, nil)
	case statusCode >= 500:
		msg := ErrServerUnavailable.Message
		if detail != "" {
			msg = detail
		}
		return NewError(ErrTypeServerUnavailable, msg, nil)
	default:
		msg := detail
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", statusCode)
		}
		return NewError(ErrTypeMalformedResponse, msg, nil)
	}
}

// doJSON performs a request and decodes a JSON response into out. A nil out
// discards the body.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to build request", err)
	}
	c.setHeaders(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return wrapTransport(ctx, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api request", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	data, err := readBody(resp)
	if err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to parse response", err)
	}
	return nil
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// VerifyToken checks the stored token against GET /api/verify-token.
// Returns nil when the token is valid.
func (c *Client) VerifyToken(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/verify-token", nil, "", nil)
}

// Login exchanges credentials for a bearer token via the form-encoded
// POST /auth/jwt/login endpoint.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var tr TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/jwt/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &tr)
	if err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", NewError(ErrTypeMalformedResponse, "no access token in response", nil)
	}
	return tr.AccessToken, nil
}

// Register creates an account via POST /auth/register and returns the
// bearer token issued for it.
func (c *Client) Register(ctx context.Context, reg RegisterRequest) (string, error) {
	form := url.Values{}
	form.Set("email", reg.Email)
	form.Set("username", reg.Username)
	form.Set("password", reg.Password)

	var tr TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &tr)
	if err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", NewError(ErrTypeMalformedResponse, "no access token in response", nil)
	}
	return tr.AccessToken, nil
}

// OAuthAuthorizeURL fetches the provider authorization URL to open in a
// browser. Provider is "google" or "github".
func (c *Client) OAuthAuthorizeURL(ctx context.Context, provider string) (string, error) {
	var ar AuthorizeResponse
	err := c.doJSON(ctx, http.MethodGet, "/auth/"+provider+"/authorize", nil, "", &ar)
	if err != nil {
		return "", err
	}
	if ar.AuthorizationURL == "" {
		return "", NewError(ErrTypeMalformedResponse, "no authorization URL received", nil)
	}
	return ar.AuthorizationURL, nil
}

// OAuthCallback exchanges the authorization code from the provider redirect
// for a bearer token.
func (c *Client) OAuthCallback(ctx context.Context, provider, code string) (string, error) {
	path := "/auth/" + provider + "/callback?code=" + url.QueryEscape(code)
	var tr TokenResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", NewError(ErrTypeMalformedResponse, "no access token received from "+provider, nil)
	}
	return tr.AccessToken, nil
}

// =============================================================================
// CONVERSATION ENDPOINTS
// =============================================================================

// ListConversations fetches the account's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]RemoteConversation, error) {
	var convs []RemoteConversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, "", &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetConversation fetches one conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, id string) (*RemoteConversation, error) {
	var conv RemoteConversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, "", &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation stores a conversation remotely and returns the
// server-assigned identity.
func (c *Client) CreateConversation(ctx context.Context, conv RemoteConversation) (*RemoteConversation, error) {
	body, err := json.Marshal(conv)
	if err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to marshal conversation", err)
	}
	var created RemoteConversation
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations",
		bytes.NewReader(body), "application/json", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteConversation removes a conversation remotely.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, "", nil)
}

// UpdateConversationTitle renames a conversation via the title endpoint.
func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) error {
	body, err := json.Marshal(TitleUpdate{Title: title})
	if err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to marshal title", err)
	}
	return c.doJSON(ctx, http.MethodPut, "/api/conversations/"+url.PathEscape(id)+"/title",
		bytes.NewReader(body), "application/json", nil)
}

// SyncConversations pushes local-only conversations and returns the ids the
// server assigned, aligned by index with the request.
func (c *Client) SyncConversations(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to marshal sync request", err)
	}
	var sr SyncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations/sync",
		bytes.NewReader(body), "application/json", &sr); err != nil {
		return nil, err
	}
	if len(sr.Conversations) != len(req.Conversations) {
		return nil, NewError(ErrTypeMalformedResponse,
			fmt.Sprintf("sync returned %d results for %d conversations",
				len(sr.Conversations), len(req.Conversations)), nil)
	}
	return &sr, nil
}

// =============================================================================
// MEDIA ENDPOINTS
// =============================================================================

// uploadFile posts a multipart form with the file and optional fields.
func (c *Client) uploadFile(ctx context.Context, path, filePath string, fields map[string]string) (*ChatResponse, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to open file", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to build form", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to read file", err)
	}
	for k, v := range fields {
		if v != "" {
			w.WriteField(k, v)
		}
	}
	if err := w.Close(); err != nil {
		return nil, NewError(ErrTypeMalformedResponse, "failed to finish form", err)
	}

	var cr ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, path, &buf, w.FormDataContentType(), &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// AnalyzeImage uploads an image to POST /api/image-analysis and returns the
// model's description.
func (c *Client) AnalyzeImage(ctx context.Context, filePath, conversationID, outputFormat string) (*ChatResponse, error) {
	return c.uploadFile(ctx, "/api/image-analysis", filePath, map[string]string{
		"conversation_id": conversationID,
		"output_format":   outputFormat,
	})
}

// TranscribeAudio uploads an audio file to POST /api/audio-transcription and
// returns the transcript.
func (c *Client) TranscribeAudio(ctx context.Context, filePath, conversationID string) (*ChatResponse, error) {
	return c.uploadFile(ctx, "/api/audio-transcription", filePath, map[string]string{
		"conversation_id": conversationID,
	})
}

// =============================================================================
// SETTINGS ENDPOINTS
// =============================================================================

// GetSettings fetches the stored user preferences.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.doJSON(ctx, http.MethodGet, "/api/settings", nil, "", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings stores user preferences.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) error {
	body, err := json.Marshal(s)
	if err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to marshal settings", err)
	}
	return c.doJSON(ctx, http.MethodPut, "/api/settings", bytes.NewReader(body), "application/json", nil)
}

// UpdateProfile changes account fields via PUT /users/me.
func (c *Client) UpdateProfile(ctx context.Context, p Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return NewError(ErrTypeMalformedResponse, "failed to marshal profile", err)
	}
	return c.doJSON(ctx, http.MethodPut, "/users/me", bytes.NewReader(body), "application/json", nil)
}
