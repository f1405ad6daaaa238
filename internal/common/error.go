// Package common defines shared constants and sentinel errors used across
// resumegate components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Access gating outcomes. These are returned as values by the gateway and
	// never mean that something is broken.
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrRateLimited          = errors.New("rate limited")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")

	// Backend I/O failure in the file storage collaborator.
	ErrStorage = errors.New("storage failure")

	// Corrupt or mismatched refresh-token envelope.
	ErrDecrypt = errors.New("decrypt error")

	// Auth errors (invalid, expired or tampered token).
	ErrInvalidToken = errors.New("invalid token")

	// The identity provider returned no refresh token and none is stored.
	ErrReconsentRequired = errors.New("missing refresh token, re-consent with offline access required")
)
