// Package jobs provides background job implementations for commitcast.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/bot"
	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/orchestrator"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// HeadFetcher lists recent commits cheaply and fetches file detail on demand.
// It is implemented by services.CommitSource.
type HeadFetcher interface {
	// FetchHeads returns up to count newest commits per repository without
	// file detail, newest first within each repository.
	FetchHeads(ctx context.Context, repos []string, count int) ([]models.Commit, error)

	// AttachFiles fills in file detail, leaving Files nil where it fails
	AttachFiles(ctx context.Context, commits []models.Commit) []models.Commit
}

// Drafter turns commits into a draft post
type Drafter interface {
	DraftCommits(ctx context.Context, commits []models.Commit) (*orchestrator.Draft, error)
}

// CommitWatcherConfig configures the commit watcher
type CommitWatcherConfig struct {
	// Repos are the repositories to watch
	Repos []string

	// ChannelID keys auto-drafted sessions and receives draft notifications
	ChannelID string

	// Interval between polls. Default: 30 seconds
	Interval time.Duration

	// WatchCount is how many commits per repository one poll looks back.
	// Commits newer than the watermark within that window share one draft.
	// Default: 1
	WatchCount int

	// CharLimit is shown in notifications. Default: 280
	CharLimit int

	// MaxSummaryDisplay truncates the summary in notifications. Default: 800
	MaxSummaryDisplay int
}

// DefaultCommitWatcherConfig returns sensible defaults
func DefaultCommitWatcherConfig() CommitWatcherConfig {
	return CommitWatcherConfig{
		Interval:          30 * time.Second,
		WatchCount:        1,
		CharLimit:         services.DefaultCharLimit,
		MaxSummaryDisplay: 800,
	}
}

// WatchResult contains the results of a single poll
type WatchResult struct {
	// Seeded is the count of repositories seen for the first time
	Seeded int

	// Unchanged is the count of repositories whose head matched the watermark
	Unchanged int

	// Drafted is the count of auto-drafts stored
	Drafted int

	// Errors is a list of errors encountered during the poll
	Errors []error

	// Duration is how long the poll took
	Duration time.Duration
}

// CommitWatcher polls repositories for new head commits and auto-drafts a
// pending post into the channel session whenever one appears. The first
// observation of a repository only seeds its watermark.
type CommitWatcher struct {
	store    *session.Store
	fetcher  HeadFetcher
	drafter  Drafter
	notifier services.Notifier
	config   CommitWatcherConfig
	logger   zerolog.Logger
}

// NewCommitWatcher creates a new commit watcher. notifier may be nil.
func NewCommitWatcher(store *session.Store, fetcher HeadFetcher, drafter Drafter, notifier services.Notifier, config CommitWatcherConfig, logger zerolog.Logger) *CommitWatcher {
	defaults := DefaultCommitWatcherConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.WatchCount < 1 {
		config.WatchCount = defaults.WatchCount
	}
	if config.CharLimit < 1 {
		config.CharLimit = defaults.CharLimit
	}
	if config.MaxSummaryDisplay < 1 {
		config.MaxSummaryDisplay = defaults.MaxSummaryDisplay
	}

	return &CommitWatcher{
		store:    store,
		fetcher:  fetcher,
		drafter:  drafter,
		notifier: notifier,
		config:   config,
		logger:   logger.With().Str("component", "commit_watcher").Logger(),
	}
}

// Seed records the current head of every repository without drafting
func (w *CommitWatcher) Seed(ctx context.Context) error {
	heads, err := w.fetcher.FetchHeads(ctx, w.config.Repos, 1)
	if err != nil {
		return fmt.Errorf("seeding watermarks: %w", err)
	}

	for _, c := range heads {
		w.store.SetWatermark(c.Repo, c.Hash)
	}
	w.logger.Info().Int("repos", len(heads)).Msg("Watermarks seeded")
	return nil
}

// Tick runs one poll. A failed fetch is recorded in the result rather than
// returned so the caller keeps polling.
func (w *CommitWatcher) Tick(ctx context.Context) *WatchResult {
	start := time.Now()
	result := &WatchResult{}

	heads, err := w.fetcher.FetchHeads(ctx, w.config.Repos, w.config.WatchCount)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("fetching latest commits: %w", err))
		w.logger.Error().Err(err).Msg("Poll fetch failed")
		result.Duration = time.Since(start)
		return result
	}

	for _, recent := range groupByRepo(heads) {
		head := recent[0]
		previous, seen := w.store.Watermark(head.Repo)
		switch {
		case !seen:
			w.store.SetWatermark(head.Repo, head.Hash)
			result.Seeded++
			continue
		case previous == head.Hash:
			result.Unchanged++
			continue
		}

		// the watermark moves before drafting so a failing draft is not retried every tick
		w.store.SetWatermark(head.Repo, head.Hash)
		fresh := w.fetcher.AttachFiles(ctx, newerThan(recent, previous))
		if err := w.draft(ctx, fresh); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("drafting %s@%s: %w", head.Repo, head.Hash, err))
			continue
		}
		result.Drafted++
	}

	result.Duration = time.Since(start)
	w.logger.Debug().
		Int("seeded", result.Seeded).
		Int("unchanged", result.Unchanged).
		Int("drafted", result.Drafted).
		Int("errors", len(result.Errors)).
		Dur("took", result.Duration).
		Msg("Poll completed")
	return result
}

// Run seeds the watermarks and polls every Interval until ctx is done
func (w *CommitWatcher) Run(ctx context.Context) error {
	if err := w.Seed(ctx); err != nil {
		// unseeded repositories are seeded by the first tick instead
		w.logger.Warn().Err(err).Msg("Initial seeding failed")
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// groupByRepo splits heads into per-repository runs, keeping their order
func groupByRepo(heads []models.Commit) [][]models.Commit {
	var groups [][]models.Commit
	for _, c := range heads {
		if n := len(groups); n > 0 && groups[n-1][0].Repo == c.Repo {
			groups[n-1] = append(groups[n-1], c)
			continue
		}
		groups = append(groups, []models.Commit{c})
	}
	return groups
}

// newerThan returns the commits listed before watermark. When the watermark
// fell out of the window every listed commit is new.
func newerThan(recent []models.Commit, watermark string) []models.Commit {
	for i, c := range recent {
		if c.Hash == watermark {
			return append([]models.Commit(nil), recent[:i]...)
		}
	}
	return append([]models.Commit(nil), recent...)
}

func (w *CommitWatcher) draft(ctx context.Context, commits []models.Commit) error {
	logger := w.logger.With().Str("repo", commits[0].Repo).Str("hash", commits[0].Hash).Int("commits", len(commits)).Logger()

	draft, err := w.drafter.DraftCommits(ctx, commits)
	if err != nil {
		logger.Error().Err(err).Msg("Auto-draft failed")
		return err
	}

	summary := draft.Summary
	post := draft.Post
	project := draft.ProjectName
	sess := &session.Session{
		Key:              session.ByChannel(w.config.ChannelID),
		SelectedCommits:  commits,
		GeneratedSummary: &summary,
		GeneratedPost:    &post,
		ProjectName:      &project,
		PendingPost:      true,
		DraftID:          draft.ID,
	}
	if err := w.store.Put(sess); err != nil {
		return err
	}
	logger.Info().Str("session", sess.Key.String()).Str("draft_id", draft.ID).Msg("Auto-draft stored")

	if w.notifier != nil {
		text := bot.RenderDraft(sess, w.config.CharLimit, w.config.MaxSummaryDisplay)
		if err := w.notifier.SendMessage(ctx, w.config.ChannelID, text); err != nil {
			logger.Warn().Err(err).Msg("Draft notification failed")
		}
	}
	return nil
}
