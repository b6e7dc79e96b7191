package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/kursadbilgin/discord-notifier/internal/domain"
)

// closeAuthenticationFailed is the gateway close code for an invalid token.
const closeAuthenticationFailed = 4004

// APIError classifies a Discord failure. Kind is one of the domain sentinels
// (or nil when the failure has no special meaning for the caller).
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Kind       error
	Cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "discord error")
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// classify wraps err as an *APIError when discordgo reports something the
// caller needs to react to. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		apiErr := &APIError{
			StatusCode: restErr.Response.StatusCode,
			Cause:      err,
		}
		if restErr.Message != nil {
			apiErr.Code = restErr.Message.Code
			apiErr.Message = restErr.Message.Message
		}

		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			apiErr.Kind = domain.ErrAuthentication
		case apiErr.Code == discordgo.ErrCodeUnknownUser:
			apiErr.Kind = domain.ErrUserNotFound
		}
		return apiErr
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
		return &APIError{
			Message: "gateway rejected token",
			Kind:    domain.ErrAuthentication,
			Cause:   err,
		}
	}

	return err
}
