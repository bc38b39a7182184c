package auth

import "errors"

// Sentinel errors for the auth core. Internal layers return these; only the
// HTTP boundary translates them into protocol status codes and messages.
var (
	ErrNotFound       = errors.New("auth: not found")
	ErrAlreadyExists  = errors.New("auth: already exists")
	ErrInvalidInput   = errors.New("auth: invalid input")
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrSessionExpired = errors.New("auth: session expired")
	ErrInternal       = errors.New("auth: internal error")
)
