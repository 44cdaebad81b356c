package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mikelady/commitcast/internal/models"
)

// GitLabPrefix marks repository identifiers hosted on GitLab
const GitLabPrefix = "gitlab:"

// maxConcurrentRepos bounds the per-repository fan-out
const maxConcurrentRepos = 4

// CommitLister is implemented by source-hosting adapters (GitHub, GitLab)
type CommitLister interface {
	// ListCommits returns the count most recent commits of repo, without file detail
	ListCommits(ctx context.Context, repo string, count int) ([]models.Commit, error)

	// CommitFiles returns the per-file changes of one commit
	CommitFiles(ctx context.Context, repo, sha string) ([]models.FileChange, error)

	// ListRepos returns repository identifiers owned by username
	ListRepos(ctx context.Context, username string) ([]string, error)
}

// CommitSource fetches commits across repositories, routing each repository
// to the adapter for its host.
type CommitSource struct {
	github CommitLister
	gitlab CommitLister
	logger zerolog.Logger
}

// NewCommitSource creates a CommitSource. gitlab may be nil when no GitLab
// repositories are configured.
func NewCommitSource(github, gitlab CommitLister, logger zerolog.Logger) *CommitSource {
	return &CommitSource{
		github: github,
		gitlab: gitlab,
		logger: logger.With().Str("component", "commit_source").Logger(),
	}
}

// listerFor picks the adapter for repo and returns the host-local identifier
func (s *CommitSource) listerFor(repo string) (CommitLister, string, error) {
	name := strings.TrimSpace(repo)
	lister := s.github
	if strings.HasPrefix(name, GitLabPrefix) {
		name = strings.TrimPrefix(name, GitLabPrefix)
		lister = s.gitlab
	}

	owner, rest, ok := strings.Cut(name, "/")
	if !ok || owner == "" || rest == "" {
		return nil, "", fmt.Errorf("%w: repository %q must look like owner/name", ErrValidation, repo)
	}
	if lister == nil {
		return nil, "", fmt.Errorf("%w: no source adapter configured for %q", ErrValidation, repo)
	}
	return lister, name, nil
}

// FetchRepo fetches the count most recent commits of a single repository with
// file detail. Detail failures degrade to a commit without files; listing
// failures are returned to the caller.
func (s *CommitSource) FetchRepo(ctx context.Context, repo string, count int) ([]models.Commit, error) {
	commits, err := s.listRepo(ctx, repo, count)
	if err != nil {
		return nil, err
	}
	return s.AttachFiles(ctx, commits), nil
}

// listRepo lists commits of one repository without file detail
func (s *CommitSource) listRepo(ctx context.Context, repo string, count int) ([]models.Commit, error) {
	lister, name, err := s.listerFor(repo)
	if err != nil {
		return nil, err
	}

	commits, err := lister.ListCommits(ctx, name, count)
	if err != nil {
		return nil, fmt.Errorf("fetching commits for %s: %w", repo, err)
	}
	for i := range commits {
		commits[i].Repo = repo
	}
	return commits, nil
}

// AttachFiles fetches file detail for each commit, routed by its Repo. A
// commit whose detail cannot be fetched keeps Files nil.
func (s *CommitSource) AttachFiles(ctx context.Context, commits []models.Commit) []models.Commit {
	for i := range commits {
		logger := s.logger.With().Str("repo", commits[i].Repo).Str("hash", commits[i].Hash).Logger()

		lister, name, err := s.listerFor(commits[i].Repo)
		if err != nil {
			logger.Warn().Err(err).Msg("Commit detail unavailable, continuing without files")
			commits[i].Files = nil
			continue
		}
		files, err := lister.CommitFiles(ctx, name, commits[i].FullHash)
		if err != nil {
			logger.Warn().Err(err).Msg("Commit detail unavailable, continuing without files")
			commits[i].Files = nil
			continue
		}
		if files == nil {
			files = []models.FileChange{}
		}
		commits[i].Files = files
	}
	return commits
}

// FetchRecent fetches count commits per repository, merges them newest first
// and truncates the merged list to count. A repository that fails is logged
// and skipped.
func (s *CommitSource) FetchRecent(ctx context.Context, repos []string, count int) ([]models.Commit, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: commit count must be at least 1", ErrValidation)
	}

	merged := s.fetchAll(ctx, repos, count)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	if len(merged) > count {
		merged = merged[:count]
	}
	return merged, nil
}

// FetchLatest returns the newest commit of each repository that could be fetched,
// in repository order.
func (s *CommitSource) FetchLatest(ctx context.Context, repos []string) ([]models.Commit, error) {
	latest := s.fetchAll(ctx, repos, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return latest, nil
}

// FetchHeads lists the count newest commits of each repository without file
// detail, newest first within a repository and in repository order across
// them. A repository that fails is logged and skipped.
func (s *CommitSource) FetchHeads(ctx context.Context, repos []string, count int) ([]models.Commit, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: commit count must be at least 1", ErrValidation)
	}

	heads := s.fanOut(ctx, repos, count, s.listRepo)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return heads, nil
}

// ListRepos lists the repositories of username on GitHub
func (s *CommitSource) ListRepos(ctx context.Context, username string) ([]string, error) {
	if s.github == nil {
		return nil, fmt.Errorf("%w: no GitHub adapter configured", ErrValidation)
	}
	repos, err := s.github.ListRepos(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing repositories for %q: %w", username, err)
	}
	return repos, nil
}

// fetchAll fans out FetchRepo over repos and concatenates the successes in
// repository order.
func (s *CommitSource) fetchAll(ctx context.Context, repos []string, count int) []models.Commit {
	return s.fanOut(ctx, repos, count, s.FetchRepo)
}

type repoFetch func(ctx context.Context, repo string, count int) ([]models.Commit, error)

func (s *CommitSource) fanOut(ctx context.Context, repos []string, count int, fetch repoFetch) []models.Commit {
	results := make([][]models.Commit, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRepos)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			commits, err := fetch(gctx, repo, count)
			if err != nil {
				s.logger.Error().Err(err).Str("repo", repo).Msg("Skipping repository")
				return nil
			}
			results[i] = commits
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.Commit
	for _, commits := range results {
		merged = append(merged, commits...)
	}
	return merged
}
