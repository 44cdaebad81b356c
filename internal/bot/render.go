package bot

import (
	"fmt"
	"strings"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// RenderCommitList formats a numbered commit listing for chat
func RenderCommitList(commits []models.Commit) string {
	if len(commits) == 0 {
		return "No recent commits found."
	}

	var sb strings.Builder
	sb.WriteString("Recent commits:\n")
	for i, c := range commits {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s %s (%s)\n", i+1, c.Repo, c.Hash, c.Message, c.DisplayDate()))
	}
	sb.WriteString("\nSelect commits by number, e.g. 1,3.")
	return sb.String()
}

// RenderDraft formats a drafted session for review. The summary is cut to
// maxSummary characters for display only.
func RenderDraft(sess *session.Session, charLimit, maxSummary int) string {
	if sess == nil || sess.GeneratedPost == nil {
		return "No draft available."
	}

	var sb strings.Builder
	project := "Project"
	if sess.ProjectName != nil && *sess.ProjectName != "" {
		project = *sess.ProjectName
	}
	sb.WriteString(fmt.Sprintf("Draft for %s (%s)\n", project, sess.DraftID))

	for _, c := range sess.SelectedCommits {
		sb.WriteString(fmt.Sprintf("- %s %s\n", c.Hash, c.URL))
	}

	if sess.GeneratedSummary != nil {
		sb.WriteString("\nSummary:\n")
		sb.WriteString(truncateDisplay(*sess.GeneratedSummary, maxSummary))
		sb.WriteString("\n")
	}

	post := *sess.GeneratedPost
	sb.WriteString(fmt.Sprintf("\nPost (%d/%d characters):\n%s\n", services.TextLength(post), charLimit, post))
	sb.WriteString("\nReply publish to post it, regenerate for another version, or discard to drop it.")
	return sb.String()
}

// truncateDisplay cuts s to max characters, marking the cut with "..."
func truncateDisplay(s string, max int) string {
	runes := []rune(s)
	if max < 1 || len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
