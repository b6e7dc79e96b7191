package domain

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication is returned when Discord rejects the bot token.
	ErrAuthentication = errors.New("discord authentication failed")

	// ErrUserNotFound is returned when the target user ID does not resolve.
	ErrUserNotFound = errors.New("discord user not found")

	ErrNotReady = errors.New("discord client is not ready")
)
