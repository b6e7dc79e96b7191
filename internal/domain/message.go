package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxMessageContent is the Discord limit for a single message body (in characters).
const MaxMessageContent = 2000

// DefaultAnnouncement is pushed onto the message queue once the target user is resolved.
const DefaultAnnouncement = "```diff\n+ Successful connection to Discord API\n```"

// Diagnostic outcomes published to the optional diagnostic queue.
const (
	DiagnosticLoginFailed  = "[DISCORD] Failed to connect to Discord API using provided token."
	DiagnosticUserNotFound = "[DISCORD] Failed to find user using provided user ID."

	diagnosticFoundUserPrefix = "[DISCORD] Found user: "
)

// FoundUserDiagnostic reports a successful target user resolution.
func FoundUserDiagnostic(username string) string {
	return diagnosticFoundUserPrefix + username
}

// AnnouncementFor builds the self-announcement for an application name.
func AnnouncementFor(appName string) string {
	name := strings.TrimSpace(appName)
	if name == "" {
		return DefaultAnnouncement
	}
	return fmt.Sprintf("```diff\n+ Successful connection to Discord API for %s\n```", name)
}

// ValidateMessage checks a producer-supplied message before it is enqueued.
func ValidateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content is required", ErrValidation)
	}

	contentLen := len([]rune(content))
	if contentLen > MaxMessageContent {
		return fmt.Errorf("%w: message content exceeds %d characters (got %d)", ErrValidation, MaxMessageContent, contentLen)
	}
	return nil
}

// ParseUserID normalizes a Discord user snowflake.
func ParseUserID(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("%w: user id is required", ErrValidation)
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || id == 0 {
		return "", fmt.Errorf("%w: invalid user id %q", ErrValidation, s)
	}
	return strconv.FormatUint(id, 10), nil
}
