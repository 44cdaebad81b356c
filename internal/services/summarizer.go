package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikelady/commitcast/internal/models"
)

// ChatClient is the text-completion provider used for summaries and posts
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, prompt string) (string, error)
}

// Summarizer turns structured change data into a plain-language summary
type Summarizer struct {
	client ChatClient
}

// NewSummarizer creates a new summarizer with the given chat client
func NewSummarizer(client ChatClient) *Summarizer {
	return &Summarizer{
		client: client,
	}
}

// Summarize asks the provider for an accomplishment summary of analysis.
// analysis is the text built by BuildAnalysis.
func (s *Summarizer) Summarize(ctx context.Context, analysis string) (string, error) {
	if strings.TrimSpace(analysis) == "" {
		return "", fmt.Errorf("%w: nothing to summarize", ErrValidation)
	}

	summary, err := s.client.CreateChatCompletion(ctx, buildSummaryPrompt(analysis))
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

// BuildAnalysis renders commits as the structured change text fed to Summarize
func BuildAnalysis(commits []models.Commit) string {
	var sb strings.Builder

	for i, c := range commits {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Change %d\n", i+1))
		sb.WriteString(fmt.Sprintf("Repository: %s\n", c.Repo))
		sb.WriteString(fmt.Sprintf("Message: %s\n", c.Message))

		if !c.HasFiles() {
			sb.WriteString("Files: details unavailable\n")
			continue
		}
		if len(c.Files) == 0 {
			sb.WriteString("Files: none\n")
			continue
		}

		sb.WriteString("Files:\n")
		for _, f := range c.Files {
			sb.WriteString(fmt.Sprintf("- %s (%s, +%d/-%d)\n", f.Path, f.Status, f.Additions, f.Deletions))
		}
	}

	return sb.String()
}

func buildSummaryPrompt(analysis string) string {
	return fmt.Sprintf(`You explain software progress to a general audience.

Below is structured data about recent code changes: repository names, commit messages and the files each change touched.

%s
Write a short summary of what was accomplished. Rules:
- Do NOT quote or repeat commit message text.
- Do NOT mention file names, paths or extensions.
- Use everyday language a non-programmer understands.
- Describe the outcome and why it matters, not how the code changed.
- Plain text only: no markdown, no bullet points, no emoji, no hashtags.

Output ONLY the summary text.`, analysis)
}
