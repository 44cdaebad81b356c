package services

import (
	"context"
)

// Platform identifiers
const (
	PlatformTwitter = "twitter"
	PlatformBluesky = "bluesky"
)

// SocialClient defines the interface for social media platform clients.
// Adapters wrap the taxonomy sentinels (ErrCreditsDepleted,
// ErrInsufficientPermissions, ErrAuthFailed, ErrProviderFailed) in their errors.
type SocialClient interface {
	// Post publishes content to the platform.
	Post(ctx context.Context, content PostContent) (*PostResult, error)

	// ValidateContent checks platform-specific requirements without a network call.
	ValidateContent(content PostContent) error

	// Platform returns the platform identifier (e.g., "twitter", "bluesky").
	Platform() string
}

// PostContent represents the content to be posted to a social media platform.
type PostContent struct {
	// Text is the main text content of the post.
	Text string

	// ThreadID is an optional parent post ID for replies.
	ThreadID *string
}

// PostResult represents the result of a successful post operation.
type PostResult struct {
	// PostID is the platform-specific identifier for the created post.
	PostID string

	// PostURL is the public URL to view the post.
	PostURL string

	// Platform that accepted the post.
	Platform string
}
