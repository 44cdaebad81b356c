package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// DefaultCharLimit is the post length limit used when none is configured
const DefaultCharLimit = 280

// sentencePattern matches maximal runs ending in sentence punctuation
var sentencePattern = regexp.MustCompile(`[^.!?]*[.!?]+`)

// TextLength counts characters the way post limits are enforced (code points)
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// PostPrefix returns the heading prepended to posts for projectName
func PostPrefix(projectName string) string {
	if projectName == "" {
		return ""
	}
	return projectName + " Updates\n\n"
}

// Composer turns a summary into a post that always fits the character limit.
// It asks the provider once, retries once with a stricter prompt, and finally
// truncates mechanically.
type Composer struct {
	client    ChatClient
	charLimit int
	logger    zerolog.Logger
}

// NewComposer creates a Composer. A charLimit below 1 selects DefaultCharLimit.
func NewComposer(client ChatClient, charLimit int, logger zerolog.Logger) *Composer {
	if charLimit < 1 {
		charLimit = DefaultCharLimit
	}
	return &Composer{
		client:    client,
		charLimit: charLimit,
		logger:    logger.With().Str("component", "composer").Logger(),
	}
}

// CharLimit returns the configured post length limit
func (c *Composer) CharLimit() int {
	return c.charLimit
}

// Compose builds a post for summary. When projectName is set the result starts
// with PostPrefix(projectName) and the whole result still fits the limit.
func (c *Composer) Compose(ctx context.Context, summary, projectName string) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("%w: summary is empty", ErrValidation)
	}

	prefix := PostPrefix(projectName)
	budget := c.charLimit - TextLength(prefix)
	if budget < 1 {
		return "", fmt.Errorf("%w: project name %q leaves no room within %d characters", ErrValidation, projectName, c.charLimit)
	}

	post, err := c.complete(ctx, buildPostPrompt(summary, budget))
	if err != nil {
		return "", err
	}

	if TextLength(post) > budget {
		c.logger.Debug().
			Int("length", TextLength(post)).
			Int("budget", budget).
			Msg("Post over budget, retrying with stricter prompt")

		post, err = c.complete(ctx, buildStrictPostPrompt(summary, budget))
		if err != nil {
			return "", err
		}
	}

	if TextLength(post) > budget {
		c.logger.Debug().
			Int("length", TextLength(post)).
			Int("budget", budget).
			Msg("Retry still over budget, truncating")
		post = TruncateToBudget(post, budget)
	}

	return prefix + post, nil
}

func (c *Composer) complete(ctx context.Context, prompt string) (string, error) {
	post, err := c.client.CreateChatCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate post: %w", err)
	}
	post = cleanPost(post)
	if post == "" {
		return "", fmt.Errorf("%w: provider returned an empty post", ErrProviderFailed)
	}
	return post, nil
}

// cleanPost trims whitespace and a single pair of wrapping quotes
func cleanPost(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// TruncateToBudget shortens text to at most budget characters. It keeps whole
// sentences when at least one fits, otherwise whole words, and only cuts
// inside a word when the first word alone exceeds budget.
func TruncateToBudget(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget < 1 || text == "" {
		return ""
	}
	if TextLength(text) <= budget {
		return text
	}

	if out := accumulate(sentencePattern.FindAllString(text, -1), budget); out != "" {
		return out
	}
	if out := accumulate(strings.Fields(text), budget); out != "" {
		return out
	}

	runes := []rune(strings.Fields(text)[0])
	return string(runes[:budget])
}

// accumulate joins parts with single spaces while the result fits budget
func accumulate(parts []string, budget int) string {
	var out string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		candidate := part
		if out != "" {
			candidate = out + " " + part
		}
		if TextLength(candidate) > budget {
			break
		}
		out = candidate
	}
	return out
}

func buildPostPrompt(summary string, budget int) string {
	return fmt.Sprintf(`Write a social media post announcing this project progress.

Summary:
%s

Requirements:
- The post MUST be %d characters or fewer, counting spaces and punctuation.
- Do NOT mention file names or quote commit messages.
- Avoid technical jargon; write for a general audience.
- Use complete sentences only. Never stop mid-sentence.
- Plain text. No hashtags, no markdown, no emoji.

Output ONLY the post text.`, summary, budget)
}

func buildStrictPostPrompt(summary string, budget int) string {
	return fmt.Sprintf(`Your previous post was too long. Rewrite it SHORTER.

HARD LIMIT: %d characters. Two short sentences at most.
No file names. No commit messages. No jargon. Complete sentences only.

Summary:
%s

Output ONLY the post text.`, budget, summary)
}
