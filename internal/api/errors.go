// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorType classifies a client failure. Every error surfaced to the
// pipeline and the UI carries exactly one of these.
type ErrorType string

const (
	// ErrTypeNetworkUnreachable means the request never reached the server.
	ErrTypeNetworkUnreachable ErrorType = "network_unreachable"

	// ErrTypeUnauthorized maps HTTP 401: the token is missing or expired.
	ErrTypeUnauthorized ErrorType = "unauthorized"

	// ErrTypeLimitReached maps HTTP 403: the anonymous message quota is
	// exhausted.
	ErrTypeLimitReached ErrorType = "limit_reached"

	// ErrTypeServerUnavailable maps HTTP 503 and other 5xx responses.
	ErrTypeServerUnavailable ErrorType = "server_unavailable"

	// ErrTypeMalformedResponse means the server replied with something the
	// client cannot interpret, including an empty stream.
	ErrTypeMalformedResponse ErrorType = "malformed_response"

	// ErrTypeLocalModelUnavailable means the offline model could not be
	// loaded or reached.
	ErrTypeLocalModelUnavailable ErrorType = "local_model_unavailable"

	// ErrTypeAudioFormatUnsupported means no decoder accepted the audio
	// input.
	ErrTypeAudioFormatUnsupported ErrorType = "audio_format_unsupported"

	// ErrTypeAbortedByUser means the user cancelled the request.
	ErrTypeAbortedByUser ErrorType = "aborted_by_user"
)

// User-facing messages for error types with mandated wording.
const (
	MsgLimitReached   = "Message limit reached. Please log in to continue."
	MsgSessionExpired = "Session expired. Please log in again."
	MsgOffline        = "You are offline. Please connect to the internet and try again."
	MsgEmptyResponse  = "Empty response from server"
)

// ClientError is the error type returned by this package.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches two client errors by type so sentinels work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// UserMessage returns the message suitable for direct display.
func (e *ClientError) UserMessage() string {
	return e.Message
}

// Sentinel errors, one per type. Compare with errors.Is.
var (
	ErrNetworkUnreachable    = &ClientError{Type: ErrTypeNetworkUnreachable, Message: MsgOffline}
	ErrUnauthorized          = &ClientError{Type: ErrTypeUnauthorized, Message: MsgSessionExpired}
	ErrLimitReached          = &ClientError{Type: ErrTypeLimitReached, Message: MsgLimitReached}
	ErrServerUnavailable     = &ClientError{Type: ErrTypeServerUnavailable, Message: "Server unavailable. Please try again later."}
	ErrMalformedResponse     = &ClientError{Type: ErrTypeMalformedResponse, Message: "Unexpected response from server."}
	ErrLocalModelUnavailable = &ClientError{Type: ErrTypeLocalModelUnavailable, Message: "Local model not available."}
	ErrAudioFormatUnsupported = &ClientError{Type: ErrTypeAudioFormatUnsupported, Message: "Audio format not supported."}
	ErrAbortedByUser         = &ClientError{Type: ErrTypeAbortedByUser, Message: "Request cancelled."}
)

// NewError builds a ClientError of the given type with a custom message.
func NewError(errType ErrorType, message string, cause error) *ClientError {
	return &ClientError{Type: errType, Message: message, Cause: cause}
}

// TypeOf extracts the ErrorType from err, or empty string when err is not a
// ClientError.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}

// IsAuthError reports whether err should clear the stored token and send the
// user to the login screen.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// wrapTransport converts a transport-level failure into a ClientError,
// preserving user cancellation.
func wrapTransport(ctx context.Context, err error) *ClientError {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return NewError(ErrTypeAbortedByUser, ErrAbortedByUser.Message, err)
	}
	return NewError(ErrTypeNetworkUnreachable, MsgOffline, err)
}
