// Package orchestrator chains the drafting pipeline: selected commits are
// rendered into an analysis, summarized, and composed into a post.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/services"
)

// Summarizer produces a summary from analysis text
type Summarizer interface {
	Summarize(ctx context.Context, analysis string) (string, error)
}

// Composer produces a length-bounded post from a summary
type Composer interface {
	Compose(ctx context.Context, summary, projectName string) (string, error)
}

// Draft is the output of one pipeline run
type Draft struct {
	ID          string
	Summary     string
	Post        string
	ProjectName string
}

// Orchestrator coordinates the pipeline from commits to a draft post
type Orchestrator struct {
	summarizer     Summarizer
	composer       Composer
	defaultProject string
	logger         zerolog.Logger
}

// NewOrchestrator creates a new orchestrator. defaultProject names drafts whose
// repository yields no usable name.
func NewOrchestrator(summarizer Summarizer, composer Composer, defaultProject string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		summarizer:     summarizer,
		composer:       composer,
		defaultProject: defaultProject,
		logger:         logger.With().Str("component", "orchestrator").Logger(),
	}
}

// ProjectNameFor derives the project name from the first commit's repository
func (o *Orchestrator) ProjectNameFor(commits []models.Commit) string {
	if len(commits) > 0 {
		if name := models.ProjectName(commits[0].Repo); name != "" {
			return name
		}
	}
	return o.defaultProject
}

// DraftCommits runs analysis → summary → post for commits
func (o *Orchestrator) DraftCommits(ctx context.Context, commits []models.Commit) (*Draft, error) {
	if len(commits) == 0 {
		return nil, fmt.Errorf("%w: no commits to draft", services.ErrValidation)
	}

	project := o.ProjectNameFor(commits)
	o.logger.Debug().Int("commits", len(commits)).Str("project", project).Msg("Generating summary")

	summary, err := o.summarizer.Summarize(ctx, services.BuildAnalysis(commits))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize commits: %w", err)
	}

	post, err := o.composer.Compose(ctx, summary, project)
	if err != nil {
		return nil, fmt.Errorf("failed to compose post: %w", err)
	}

	draft := &Draft{
		ID:          uuid.New().String(),
		Summary:     summary,
		Post:        post,
		ProjectName: project,
	}
	o.logger.Info().
		Str("draft_id", draft.ID).
		Str("project", project).
		Int("post_length", services.TextLength(post)).
		Msg("Draft generated")

	return draft, nil
}

// Recompose builds a new post from an existing summary
func (o *Orchestrator) Recompose(ctx context.Context, summary, projectName string) (*Draft, error) {
	post, err := o.composer.Compose(ctx, summary, projectName)
	if err != nil {
		return nil, fmt.Errorf("failed to compose post: %w", err)
	}

	return &Draft{
		ID:          uuid.New().String(),
		Summary:     summary,
		Post:        post,
		ProjectName: projectName,
	}, nil
}
