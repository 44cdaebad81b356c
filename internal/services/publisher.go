package services

import (
	"context"
	"fmt"
	"strings"
)

// Publisher sends finished post text to the configured social platform
type Publisher struct {
	client    SocialClient
	charLimit int
}

// NewPublisher creates a Publisher. A charLimit below 1 selects DefaultCharLimit.
func NewPublisher(client SocialClient, charLimit int) *Publisher {
	if charLimit < 1 {
		charLimit = DefaultCharLimit
	}
	return &Publisher{
		client:    client,
		charLimit: charLimit,
	}
}

// Platform returns the identifier of the underlying social client
func (p *Publisher) Platform() string {
	return p.client.Platform()
}

// Publish posts text once. Text over the limit is rejected locally. Every
// failure is a *PublishError.
func (p *Publisher) Publish(ctx context.Context, text string) (*PostResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &PublishError{Kind: KindValidation, Err: fmt.Errorf("%w: post text is empty", ErrValidation)}
	}
	if n := TextLength(text); n > p.charLimit {
		return nil, &PublishError{
			Kind: KindValidation,
			Err:  fmt.Errorf("%w: post is %d characters, limit is %d", ErrValidation, n, p.charLimit),
		}
	}

	content := PostContent{Text: text}
	if err := p.client.ValidateContent(content); err != nil {
		return nil, &PublishError{Kind: classifyPublishError(err), Err: err}
	}

	result, err := p.client.Post(ctx, content)
	if err != nil {
		return nil, &PublishError{Kind: classifyPublishError(err), Err: err}
	}
	if result == nil {
		result = &PostResult{}
	}
	if result.Platform == "" {
		result.Platform = p.client.Platform()
	}
	return result, nil
}
