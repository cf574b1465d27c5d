// Package common defines shared constants and sentinel errors used across
// the diary client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/remote-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Remote store reachability.
	ErrUnavailable = errors.New("server unavailable")

	// Auth session lifecycle.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrNotLoggedIn         = errors.New("not logged in")
)
