package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/services"
)

const defaultGitHubBaseURL = "https://api.github.com"

// githubCommit is the subset of a GitHub commit object the client reads
type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Files []githubFile `json:"files"`
}

type githubFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

type githubRepo struct {
	FullName string `json:"full_name"`
}

// GitHubClient lists commits and repositories through the GitHub REST API
type GitHubClient struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewGitHubClient creates a new GitHub API client. An empty token reaches
// public repositories only.
func NewGitHubClient(accessToken string, baseURL string) *GitHubClient {
	if baseURL == "" {
		baseURL = defaultGitHubBaseURL
	}

	return &GitHubClient{
		accessToken: accessToken,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

var _ services.CommitLister = (*GitHubClient)(nil)

// ListCommits returns the count most recent commits on the default branch of
// repo ("owner/name"), newest first.
func (c *GitHubClient) ListCommits(ctx context.Context, repo string, count int) ([]models.Commit, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(count))

	var raw []githubCommit
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/commits?%s", repo, params.Encode()), &raw); err != nil {
		return nil, err
	}

	commits := make([]models.Commit, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, models.Commit{
			Hash:     models.ShortHash(rc.SHA),
			FullHash: rc.SHA,
			Message:  models.FirstLine(rc.Commit.Message),
			Author:   rc.Commit.Author.Name,
			Date:     rc.Commit.Author.Date,
			URL:      rc.HTMLURL,
			Repo:     repo,
		})
	}
	return commits, nil
}

// CommitFiles returns the files changed by one commit
func (c *GitHubClient) CommitFiles(ctx context.Context, repo, sha string) ([]models.FileChange, error) {
	var raw githubCommit
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/commits/%s", repo, sha), &raw); err != nil {
		return nil, err
	}

	files := make([]models.FileChange, 0, len(raw.Files))
	for _, f := range raw.Files {
		files = append(files, models.FileChange{
			Path:      f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
		})
	}
	return files, nil
}

// ListRepos lists the repositories of username, most recently updated first.
// An empty username lists the token owner's repositories.
func (c *GitHubClient) ListRepos(ctx context.Context, username string) ([]string, error) {
	params := url.Values{}
	params.Set("per_page", "100")
	params.Set("sort", "updated")

	path := fmt.Sprintf("/users/%s/repos?%s", url.PathEscape(username), params.Encode())
	if username == "" {
		if c.accessToken == "" {
			return nil, fmt.Errorf("%w: a username is required without a token", services.ErrValidation)
		}
		path = "/user/repos?" + params.Encode()
	}

	var raw []githubRepo
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	repos := make([]string, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, r.FullName)
	}
	return repos, nil
}

// get performs a GET against the API and decodes the JSON body into out
func (c *GitHubClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to call GitHub API: %v", services.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", services.ErrFetchFailed, err)
	}

	if err := githubStatusError(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", services.ErrFetchFailed, err)
	}
	return nil
}

// githubStatusError maps a non-2xx status onto the shared error taxonomy
func githubStatusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: GitHub rejected the token", services.ErrAuthFailed)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: GitHub returned 404", services.ErrNotFound)
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: GitHub returned %d - %s", services.ErrQuotaExceeded, status, truncateBody(body))
	default:
		return fmt.Errorf("%w: GitHub returned %d - %s", services.ErrFetchFailed, status, truncateBody(body))
	}
}

// truncateBody keeps error messages readable when a server returns a page of HTML
func truncateBody(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
