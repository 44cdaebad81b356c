// Package services implements the core business logic for commitcast:
// fetching commits, summarizing them, composing posts and publishing them.
package services

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by adapters and services. Adapters wrap one of these
// sentinels so callers can branch with errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrAuthFailed              = errors.New("authentication failed")
	ErrQuotaExceeded           = errors.New("quota exceeded")
	ErrCreditsDepleted         = errors.New("credits depleted")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrFetchFailed             = errors.New("fetch failed")
	ErrProviderFailed          = errors.New("provider request failed")
	ErrValidation              = errors.New("validation error")
)

// PublishErrorKind classifies publish failures
type PublishErrorKind string

const (
	KindCreditsDepleted         PublishErrorKind = "credits_depleted"
	KindInsufficientPermissions PublishErrorKind = "insufficient_permissions"
	KindAuthFailed              PublishErrorKind = "auth_failed"
	KindValidation              PublishErrorKind = "validation"
	KindFailed                  PublishErrorKind = "failed"
)

// PublishError is returned by Publisher.Publish
type PublishError struct {
	Kind PublishErrorKind
	Err  error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("publish failed (%s)", e.Kind)
	}
	return fmt.Sprintf("publish failed (%s): %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Hint returns a human-actionable explanation of the failure
func (e *PublishError) Hint() string {
	switch e.Kind {
	case KindCreditsDepleted:
		return "The posting account has run out of API credits. Add credits or upgrade the plan, then try again."
	case KindInsufficientPermissions:
		return "The posting app lacks write permission. Enable read and write access for the app and regenerate its tokens."
	case KindAuthFailed:
		return "The posting credentials were rejected. Check that the access token is valid and not expired."
	case KindValidation:
		return "The post text is empty or longer than the character limit. Regenerate the draft and try again."
	default:
		return "Posting failed. Try again later or discard the draft."
	}
}

// classifyPublishError maps an adapter error onto a PublishErrorKind
func classifyPublishError(err error) PublishErrorKind {
	switch {
	case errors.Is(err, ErrCreditsDepleted), errors.Is(err, ErrQuotaExceeded):
		return KindCreditsDepleted
	case errors.Is(err, ErrInsufficientPermissions):
		return KindInsufficientPermissions
	case errors.Is(err, ErrAuthFailed):
		return KindAuthFailed
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindFailed
	}
}

// UserMessage turns any pipeline error into a sentence suitable for a chat
// reply or API response.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		return pubErr.Hint()
	}

	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("Repository not found: %v", err)
	case errors.Is(err, ErrAuthFailed):
		return "Authentication failed. Check the configured access token."
	case errors.Is(err, ErrQuotaExceeded):
		return "The AI provider quota is exhausted. Check billing or wait for the quota to reset."
	case errors.Is(err, ErrCreditsDepleted):
		return "The posting account has run out of credits."
	case errors.Is(err, ErrInsufficientPermissions):
		return "The account lacks the permissions required for this action."
	case errors.Is(err, ErrFetchFailed):
		return "Could not fetch commits right now. Try again shortly."
	case errors.Is(err, ErrProviderFailed):
		return "The AI provider request failed. Try again shortly."
	default:
		return "Something went wrong. Try again shortly."
	}
}
