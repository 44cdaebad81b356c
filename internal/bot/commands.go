// Package bot implements the post-review commands: listing commits, selecting
// some to draft, regenerating, discarding and confirming publication.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/orchestrator"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// CommitFetcher is the part of services.CommitSource the commands use
type CommitFetcher interface {
	FetchRecent(ctx context.Context, repos []string, count int) ([]models.Commit, error)
	ListRepos(ctx context.Context, username string) ([]string, error)
}

// Drafter is the part of orchestrator.Orchestrator the commands use
type Drafter interface {
	DraftCommits(ctx context.Context, commits []models.Commit) (*orchestrator.Draft, error)
	Recompose(ctx context.Context, summary, projectName string) (*orchestrator.Draft, error)
}

// PostPublisher publishes confirmed post text
type PostPublisher interface {
	Publish(ctx context.Context, text string) (*services.PostResult, error)
}

// Config holds command settings
type Config struct {
	// Repos are the repositories listed by List
	Repos []string

	// ListCount is the number of commits List fetches. Default: 5
	ListCount int

	// CharLimit is shown next to drafts. Default: 280
	CharLimit int

	// MaxSummaryDisplay truncates summaries in rendered messages. Default: 800
	MaxSummaryDisplay int
}

// Commands is the review state machine over a session.Store
type Commands struct {
	store     *session.Store
	fetcher   CommitFetcher
	drafter   Drafter
	publisher PostPublisher
	config    Config
	logger    zerolog.Logger
}

// NewCommands creates the command set, applying defaults for zero config values
func NewCommands(store *session.Store, fetcher CommitFetcher, drafter Drafter, publisher PostPublisher, config Config, logger zerolog.Logger) *Commands {
	if config.ListCount < 1 {
		config.ListCount = 5
	}
	if config.CharLimit < 1 {
		config.CharLimit = services.DefaultCharLimit
	}
	if config.MaxSummaryDisplay < 1 {
		config.MaxSummaryDisplay = 800
	}

	return &Commands{
		store:     store,
		fetcher:   fetcher,
		drafter:   drafter,
		publisher: publisher,
		config:    config,
		logger:    logger.With().Str("component", "commands").Logger(),
	}
}

// Config returns the effective configuration
func (c *Commands) Config() Config {
	return c.config
}

// List fetches recent commits across the configured repositories and starts a
// fresh listing for userID, dropping any previous selection or draft.
func (c *Commands) List(ctx context.Context, userID string) (*session.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", services.ErrValidation)
	}

	commits, err := c.fetcher.FetchRecent(ctx, c.config.Repos, c.config.ListCount)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		Key:     session.ByUser(userID),
		Commits: commits,
	}
	if err := c.store.Put(sess); err != nil {
		return nil, err
	}

	c.logger.Info().Str("session", sess.Key.String()).Int("commits", len(commits)).Msg("Commits listed")
	return sess, nil
}

// Select drafts a post from the listed commits at the given 1-based positions.
// Invalid input is rejected with services.ErrValidation before any external call.
func (c *Commands) Select(ctx context.Context, userID string, rawIndices []string) (*session.Session, error) {
	sess, ok := c.store.Get(session.ByUser(userID))
	if !ok || len(sess.Commits) == 0 {
		return nil, fmt.Errorf("%w: no commits listed, list commits first", services.ErrValidation)
	}

	positions, err := ParseSelection(rawIndices, len(sess.Commits))
	if err != nil {
		return nil, err
	}

	selected := make([]models.Commit, 0, len(positions))
	for _, p := range positions {
		selected = append(selected, sess.Commits[p-1])
	}

	draft, err := c.drafter.DraftCommits(ctx, selected)
	if err != nil {
		return nil, err
	}

	sess.SelectedCommits = selected
	applyDraft(sess, draft)
	if err := c.store.Put(sess); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("session", sess.Key.String()).
		Str("draft_id", draft.ID).
		Ints("positions", positions).
		Msg("Draft created from selection")
	return sess, nil
}

// Regenerate composes a new post from the existing summary of the resolved session
func (c *Commands) Regenerate(ctx context.Context, userID, channelID string) (*session.Session, error) {
	sess, ok := c.store.Resolve(userID, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: no active draft to regenerate", services.ErrValidation)
	}
	if sess.GeneratedSummary == nil || sess.ProjectName == nil {
		return nil, fmt.Errorf("%w: select commits before regenerating", services.ErrValidation)
	}

	draft, err := c.drafter.Recompose(ctx, *sess.GeneratedSummary, *sess.ProjectName)
	if err != nil {
		return nil, err
	}

	applyDraft(sess, draft)
	if err := c.store.Put(sess); err != nil {
		return nil, err
	}

	c.logger.Info().Str("session", sess.Key.String()).Str("draft_id", draft.ID).Msg("Draft regenerated")
	return sess, nil
}

// Discard deletes the resolved session
func (c *Commands) Discard(userID, channelID string) (*session.Session, error) {
	sess, ok := c.store.Resolve(userID, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: nothing to discard", services.ErrValidation)
	}

	c.store.Delete(sess.Key)
	c.logger.Info().Str("session", sess.Key.String()).Str("draft_id", sess.DraftID).Msg("Draft discarded")
	return sess, nil
}

// ConfirmPublish publishes the pending post of the resolved session. The
// session is deleted on success and left untouched on failure.
func (c *Commands) ConfirmPublish(ctx context.Context, userID, channelID string) (*services.PostResult, error) {
	sess, ok := c.store.Resolve(userID, channelID)
	if !ok || !sess.PendingPost || sess.GeneratedPost == nil {
		return nil, fmt.Errorf("%w: no draft awaiting confirmation", services.ErrValidation)
	}

	result, err := c.publisher.Publish(ctx, *sess.GeneratedPost)
	if err != nil {
		c.logger.Error().Err(err).Str("session", sess.Key.String()).Str("draft_id", sess.DraftID).Msg("Publish failed")
		return nil, err
	}

	c.store.Delete(sess.Key)
	c.logger.Info().
		Str("session", sess.Key.String()).
		Str("draft_id", sess.DraftID).
		Str("url", result.PostURL).
		Msg("Draft published")
	return result, nil
}

// Show returns the resolved session without changing it
func (c *Commands) Show(userID, channelID string) (*session.Session, error) {
	sess, ok := c.store.Resolve(userID, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: no active session", services.ErrValidation)
	}
	return sess, nil
}

// Repos lists the repositories of username
func (c *Commands) Repos(ctx context.Context, username string) ([]string, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", services.ErrValidation)
	}
	return c.fetcher.ListRepos(ctx, username)
}

// ParseSelection parses 1-based positions against a list of n items. Entries
// may hold several positions separated by commas or spaces. Duplicates are
// dropped, first occurrence order is kept.
func ParseSelection(raw []string, n int) ([]int, error) {
	var tokens []string
	for _, r := range raw {
		tokens = append(tokens, strings.FieldsFunc(r, func(ch rune) bool {
			return ch == ',' || ch == ' ' || ch == '\t'
		})...)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: select at least one commit", services.ErrValidation)
	}

	seen := make(map[int]bool, len(tokens))
	positions := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		p, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a commit number", services.ErrValidation, tok)
		}
		if p < 1 || p > n {
			return nil, fmt.Errorf("%w: commit number %d is out of range 1-%d", services.ErrValidation, p, n)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		positions = append(positions, p)
	}
	return positions, nil
}

func applyDraft(sess *session.Session, draft *orchestrator.Draft) {
	summary := draft.Summary
	post := draft.Post
	project := draft.ProjectName

	sess.GeneratedSummary = &summary
	sess.GeneratedPost = &post
	sess.ProjectName = &project
	sess.PendingPost = true
	sess.DraftID = draft.ID
}
