package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/orchestrator"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

type fakeFetcher struct {
	mu      sync.Mutex
	commits []models.Commit
	repos   []string
	err     error
	calls   int
}

func (f *fakeFetcher) FetchRecent(ctx context.Context, repos []string, count int) ([]models.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := append([]models.Commit(nil), f.commits...)
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeFetcher) ListRepos(ctx context.Context, username string) ([]string, error) {
	return f.repos, f.err
}

// fakeDrafter drafts deterministically from the commit hashes. A gate keyed by
// the first selected hash blocks the call until the test closes it.
type fakeDrafter struct {
	mu        sync.Mutex
	err       error
	gates     map[string]chan struct{}
	entered   chan string
	drafted   [][]models.Commit
	recompose []string
}

func (d *fakeDrafter) DraftCommits(ctx context.Context, commits []models.Commit) (*orchestrator.Draft, error) {
	d.mu.Lock()
	d.drafted = append(d.drafted, commits)
	gate := d.gates[commits[0].Hash]
	err := d.err
	d.mu.Unlock()

	if d.entered != nil {
		d.entered <- commits[0].Hash
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	var hashes []string
	for _, c := range commits {
		hashes = append(hashes, c.Hash)
	}
	project := models.ProjectName(commits[0].Repo)
	return &orchestrator.Draft{
		ID:          uuid.New().String(),
		Summary:     "summary of " + strings.Join(hashes, ","),
		Post:        services.PostPrefix(project) + "post of " + strings.Join(hashes, ","),
		ProjectName: project,
	}, nil
}

func (d *fakeDrafter) Recompose(ctx context.Context, summary, projectName string) (*orchestrator.Draft, error) {
	d.mu.Lock()
	d.recompose = append(d.recompose, summary)
	n := len(d.recompose)
	gate := d.gates["recompose"]
	err := d.err
	d.mu.Unlock()

	if d.entered != nil {
		d.entered <- "recompose"
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &orchestrator.Draft{
		ID:          uuid.New().String(),
		Summary:     summary,
		Post:        fmt.Sprintf("%sregenerated %d", services.PostPrefix(projectName), n),
		ProjectName: projectName,
	}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []string
}

func (p *fakePublisher) Publish(ctx context.Context, text string) (*services.PostResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, text)
	if p.err != nil {
		return nil, p.err
	}
	return &services.PostResult{PostID: "1", PostURL: "https://x.com/i/status/1", Platform: services.PlatformTwitter}, nil
}

func threeCommits() []models.Commit {
	base := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	return []models.Commit{
		{Hash: "aaaaaaa", Message: "first", Repo: "octo/widgets", Date: base.Add(3 * time.Hour)},
		{Hash: "bbbbbbb", Message: "second", Repo: "octo/widgets", Date: base.Add(2 * time.Hour)},
		{Hash: "ccccccc", Message: "third", Repo: "octo/gadgets", Date: base.Add(1 * time.Hour)},
	}
}

type harness struct {
	store     *session.Store
	fetcher   *fakeFetcher
	drafter   *fakeDrafter
	publisher *fakePublisher
	commands  *Commands
}

func newHarness() *harness {
	h := &harness{
		store:     session.NewStore(),
		fetcher:   &fakeFetcher{commits: threeCommits()},
		drafter:   &fakeDrafter{gates: map[string]chan struct{}{}},
		publisher: &fakePublisher{},
	}
	h.commands = NewCommands(h.store, h.fetcher, h.drafter, h.publisher, Config{
		Repos:     []string{"octo/widgets", "octo/gadgets"},
		ListCount: 5,
	}, zerolog.Nop())
	return h
}

func strPtr(s string) *string { return &s }
