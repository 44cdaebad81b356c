package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/services"
)

// GitLabClient lists commits and projects through the GitLab API. Repository
// identifiers are project paths such as "group/sub/name".
type GitLabClient struct {
	client *gitlab.Client
}

// NewGitLabClient creates a GitLab client. baseURL may be empty for gitlab.com;
// "/api/v4" is appended when missing.
func NewGitLabClient(token, baseURL string) (*GitLabClient, error) {
	opts := []gitlab.ClientOptionFunc{
		gitlab.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		gitlab.WithoutRetries(),
	}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return &GitLabClient{client: client}, nil
}

var _ services.CommitLister = (*GitLabClient)(nil)

// ListCommits returns the count most recent commits of the project's default branch
func (c *GitLabClient) ListCommits(ctx context.Context, repo string, count int) ([]models.Commit, error) {
	opt := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{PerPage: count},
	}

	raw, resp, err := c.client.Commits.ListCommits(repo, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError(resp, err)
	}

	commits := make([]models.Commit, 0, len(raw))
	for _, rc := range raw {
		commit := models.Commit{
			Hash:     models.ShortHash(rc.ID),
			FullHash: rc.ID,
			Message:  models.FirstLine(rc.Message),
			Author:   rc.AuthorName,
			URL:      rc.WebURL,
			Repo:     services.GitLabPrefix + repo,
		}
		if commit.Message == "" {
			commit.Message = rc.Title
		}
		if rc.AuthoredDate != nil {
			commit.Date = *rc.AuthoredDate
		} else if rc.CommittedDate != nil {
			commit.Date = *rc.CommittedDate
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// CommitFiles returns the per-file changes of one commit, with line counts
// taken from the diff text.
func (c *GitLabClient) CommitFiles(ctx context.Context, repo, sha string) ([]models.FileChange, error) {
	diffs, resp, err := c.client.Commits.GetCommitDiff(repo, sha, &gitlab.GetCommitDiffOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError(resp, err)
	}

	files := make([]models.FileChange, 0, len(diffs))
	for _, d := range diffs {
		additions, deletions := services.DiffStat(d.Diff)
		path := d.NewPath
		if d.DeletedFile && d.OldPath != "" {
			path = d.OldPath
		}
		files = append(files, models.FileChange{
			Path:      path,
			Status:    gitlabFileStatus(d),
			Additions: additions,
			Deletions: deletions,
		})
	}
	return files, nil
}

// ListRepos lists the projects of username as "gitlab:" identifiers
func (c *GitLabClient) ListRepos(ctx context.Context, username string) ([]string, error) {
	opt := &gitlab.ListProjectsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	projects, resp, err := c.client.Projects.ListUserProjects(username, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError(resp, err)
	}

	repos := make([]string, 0, len(projects))
	for _, p := range projects {
		repos = append(repos, services.GitLabPrefix+p.PathWithNamespace)
	}
	return repos, nil
}

func gitlabFileStatus(d *gitlab.Diff) string {
	switch {
	case d.NewFile:
		return models.FileAdded
	case d.DeletedFile:
		return models.FileRemoved
	case d.RenamedFile:
		return models.FileRenamed
	default:
		return models.FileModified
	}
}

// gitlabError maps a client-go failure onto the shared error taxonomy
func gitlabError(resp *gitlab.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: GitLab rejected the token", services.ErrAuthFailed)
	case status == http.StatusNotFound || errors.Is(err, gitlab.ErrNotFound):
		return fmt.Errorf("%w: GitLab returned 404", services.ErrNotFound)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: GitLab returned 403", services.ErrInsufficientPermissions)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: GitLab rate limit reached", services.ErrQuotaExceeded)
	default:
		return fmt.Errorf("%w: GitLab: %s", services.ErrFetchFailed, strings.TrimSpace(err.Error()))
	}
}
