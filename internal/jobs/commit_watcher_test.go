package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikelady/commitcast/internal/models"
	"github.com/mikelady/commitcast/internal/orchestrator"
	"github.com/mikelady/commitcast/internal/services"
	"github.com/mikelady/commitcast/internal/session"
)

// =============================================================================
// Mock implementations for testing
// =============================================================================

// mockHeadFetcher keeps a newest-first history per repository
type mockHeadFetcher struct {
	mu          sync.Mutex
	history     map[string][]string
	err         error
	calls       int
	counts      []int
	detailCalls []string
}

// setHead pushes hash as the new head of repo
func (m *mockHeadFetcher) setHead(repo, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[repo] = append([]string{hash}, m.history[repo]...)
}

func (m *mockHeadFetcher) FetchHeads(ctx context.Context, repos []string, count int) ([]models.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.counts = append(m.counts, count)
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Commit
	for _, repo := range repos {
		for i, hash := range m.history[repo] {
			if i == count {
				break
			}
			out = append(out, models.Commit{Hash: hash, Repo: repo, Message: "change " + hash})
		}
	}
	return out, nil
}

func (m *mockHeadFetcher) AttachFiles(ctx context.Context, commits []models.Commit) []models.Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range commits {
		m.detailCalls = append(m.detailCalls, commits[i].Hash)
		commits[i].Files = []models.FileChange{{Path: "file.go", Status: models.FileModified}}
	}
	return commits
}

type mockDrafter struct {
	mu      sync.Mutex
	err     error
	drafted []models.Commit
}

func (m *mockDrafter) DraftCommits(ctx context.Context, commits []models.Commit) (*orchestrator.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafted = append(m.drafted, commits...)
	if m.err != nil {
		return nil, m.err
	}
	project := models.ProjectName(commits[0].Repo)
	return &orchestrator.Draft{
		ID:          uuid.New().String(),
		Summary:     "summary of " + commits[0].Hash,
		Post:        services.PostPrefix(project) + "post of " + commits[0].Hash,
		ProjectName: project,
	}, nil
}

type sentMessage struct {
	Target string
	Text   string
}

type mockNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (m *mockNotifier) SendMessage(ctx context.Context, target, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Target: target, Text: text})
	return m.err
}

func newTestWatcher(repos ...string) (*CommitWatcher, *session.Store, *mockHeadFetcher, *mockDrafter, *mockNotifier) {
	return newTestWatcherWindow(1, repos...)
}

func newTestWatcherWindow(watchCount int, repos ...string) (*CommitWatcher, *session.Store, *mockHeadFetcher, *mockDrafter, *mockNotifier) {
	store := session.NewStore()
	fetcher := &mockHeadFetcher{history: map[string][]string{}}
	drafter := &mockDrafter{}
	notifier := &mockNotifier{}
	w := NewCommitWatcher(store, fetcher, drafter, notifier, CommitWatcherConfig{
		Repos:      repos,
		ChannelID:  "chan-1",
		Interval:   10 * time.Millisecond,
		WatchCount: watchCount,
	}, zerolog.Nop())
	return w, store, fetcher, drafter, notifier
}

// =============================================================================
// CommitWatcher Tests
// =============================================================================

func TestTickSeedsBeforeDrafting(t *testing.T) {
	w, store, fetcher, drafter, notifier := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")

	first := w.Tick(ctx)

	assert.Equal(t, 1, first.Seeded)
	assert.Equal(t, 0, first.Drafted)
	assert.Empty(t, drafter.drafted, "first observation never drafts")
	assert.Equal(t, 0, store.Len())
	hash, ok := store.Watermark("octo/widgets")
	require.True(t, ok)
	assert.Equal(t, "aaaaaaa", hash)

	fetcher.setHead("octo/widgets", "bbbbbbb")
	second := w.Tick(ctx)

	assert.Equal(t, 1, second.Drafted)
	require.Len(t, drafter.drafted, 1)
	assert.Equal(t, "bbbbbbb", drafter.drafted[0].Hash)

	sess, ok := store.Get(session.ByChannel("chan-1"))
	require.True(t, ok)
	assert.True(t, sess.PendingPost)
	assert.Equal(t, "Widgets Updates\n\npost of bbbbbbb", *sess.GeneratedPost)
	assert.Equal(t, "Widgets", *sess.ProjectName)
	require.Len(t, sess.SelectedCommits, 1)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "chan-1", notifier.sent[0].Target)
	assert.Contains(t, notifier.sent[0].Text, "post of bbbbbbb")

	hash, _ = store.Watermark("octo/widgets")
	assert.Equal(t, "bbbbbbb", hash)
}

func TestTickUnchangedHeadDoesNothing(t *testing.T) {
	w, store, fetcher, drafter, _ := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")

	w.Tick(ctx)
	result := w.Tick(ctx)

	assert.Equal(t, 1, result.Unchanged)
	assert.Empty(t, drafter.drafted)
	assert.Equal(t, 0, store.Len())
}

func TestSeedSuppressesFirstTickDraft(t *testing.T) {
	w, _, fetcher, drafter, _ := newTestWatcher("octo/widgets", "octo/gadgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	fetcher.setHead("octo/gadgets", "1111111")

	require.NoError(t, w.Seed(ctx))
	result := w.Tick(ctx)

	assert.Equal(t, 2, result.Unchanged)
	assert.Empty(t, drafter.drafted)
}

func TestTickFetchFailureIsRecorded(t *testing.T) {
	w, store, fetcher, drafter, _ := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	w.Tick(ctx)

	fetcher.err = errors.New("network down")
	result := w.Tick(ctx)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "network down")

	fetcher.err = nil
	fetcher.setHead("octo/widgets", "bbbbbbb")
	result = w.Tick(ctx)

	assert.Equal(t, 1, result.Drafted, "polling continues after a failed tick")
	assert.Len(t, drafter.drafted, 1)
	assert.Equal(t, 1, store.Len())
}

func TestTickDraftFailureStoresNoSession(t *testing.T) {
	w, store, fetcher, drafter, notifier := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	w.Tick(ctx)

	drafter.err = services.ErrQuotaExceeded
	fetcher.setHead("octo/widgets", "bbbbbbb")
	result := w.Tick(ctx)

	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], services.ErrQuotaExceeded)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, notifier.sent)

	hash, _ := store.Watermark("octo/widgets")
	assert.Equal(t, "bbbbbbb", hash, "watermark advances even when drafting fails")

	drafter.err = nil
	result = w.Tick(ctx)
	assert.Equal(t, 1, result.Unchanged, "the failed commit is not redrafted")
}

func TestTickNotificationFailureKeepsDraft(t *testing.T) {
	w, store, fetcher, _, notifier := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	w.Tick(ctx)

	notifier.err = errors.New("webhook 500")
	fetcher.setHead("octo/widgets", "bbbbbbb")
	result := w.Tick(ctx)

	assert.Equal(t, 1, result.Drafted)
	assert.Empty(t, result.Errors)
	_, ok := store.Get(session.ByChannel("chan-1"))
	assert.True(t, ok)
}

func TestTickTwoChangedReposLastDraftWins(t *testing.T) {
	w, store, fetcher, drafter, notifier := newTestWatcher("octo/widgets", "octo/gadgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	fetcher.setHead("octo/gadgets", "1111111")
	w.Tick(ctx)

	fetcher.setHead("octo/widgets", "bbbbbbb")
	fetcher.setHead("octo/gadgets", "2222222")
	result := w.Tick(ctx)

	assert.Equal(t, 2, result.Drafted)
	assert.Len(t, drafter.drafted, 2)
	assert.Len(t, notifier.sent, 2)
	sess, ok := store.Get(session.ByChannel("chan-1"))
	require.True(t, ok)
	assert.Equal(t, "Gadgets Updates\n\npost of 2222222", *sess.GeneratedPost)
}

func TestTickFetchesDetailOnlyForNewCommits(t *testing.T) {
	w, _, fetcher, drafter, _ := newTestWatcher("octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")

	w.Tick(ctx)
	w.Tick(ctx)
	w.Tick(ctx)
	assert.Empty(t, fetcher.detailCalls, "unchanged heads need no commit detail")

	fetcher.setHead("octo/widgets", "bbbbbbb")
	w.Tick(ctx)

	assert.Equal(t, []string{"bbbbbbb"}, fetcher.detailCalls)
	require.Len(t, drafter.drafted, 1)
	assert.True(t, drafter.drafted[0].HasFiles())
}

func TestTickWatchCountDraftsEveryNewCommit(t *testing.T) {
	w, store, fetcher, drafter, _ := newTestWatcherWindow(3, "octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	w.Tick(ctx)

	fetcher.setHead("octo/widgets", "bbbbbbb")
	fetcher.setHead("octo/widgets", "ccccccc")
	result := w.Tick(ctx)

	assert.Equal(t, 1, result.Drafted, "new commits of one repository share a draft")
	assert.Equal(t, []int{3, 3}, fetcher.counts)
	require.Len(t, drafter.drafted, 2)
	assert.Equal(t, "ccccccc", drafter.drafted[0].Hash)
	assert.Equal(t, "bbbbbbb", drafter.drafted[1].Hash)
	assert.Equal(t, []string{"ccccccc", "bbbbbbb"}, fetcher.detailCalls)

	sess, ok := store.Get(session.ByChannel("chan-1"))
	require.True(t, ok)
	assert.Len(t, sess.SelectedCommits, 2)
	hash, _ := store.Watermark("octo/widgets")
	assert.Equal(t, "ccccccc", hash)
}

func TestTickWatermarkOutsideWindowDraftsWholeWindow(t *testing.T) {
	w, _, fetcher, drafter, _ := newTestWatcherWindow(2, "octo/widgets")
	ctx := context.Background()
	fetcher.setHead("octo/widgets", "aaaaaaa")
	w.Tick(ctx)

	fetcher.setHead("octo/widgets", "bbbbbbb")
	fetcher.setHead("octo/widgets", "ccccccc")
	fetcher.setHead("octo/widgets", "ddddddd")
	w.Tick(ctx)

	require.Len(t, drafter.drafted, 2)
	assert.Equal(t, "ddddddd", drafter.drafted[0].Hash)
	assert.Equal(t, "ccccccc", drafter.drafted[1].Hash)
}

func TestSeedListsOneCommitPerRepo(t *testing.T) {
	w, store, fetcher, _, _ := newTestWatcherWindow(5, "octo/widgets")
	fetcher.setHead("octo/widgets", "aaaaaaa")
	fetcher.setHead("octo/widgets", "bbbbbbb")

	require.NoError(t, w.Seed(context.Background()))

	assert.Equal(t, []int{1}, fetcher.counts)
	assert.Empty(t, fetcher.detailCalls)
	hash, ok := store.Watermark("octo/widgets")
	require.True(t, ok)
	assert.Equal(t, "bbbbbbb", hash)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	w, _, fetcher, _, _ := newTestWatcher("octo/widgets")
	fetcher.setHead("octo/widgets", "aaaaaaa")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewCommitWatcherDefaults(t *testing.T) {
	w := NewCommitWatcher(session.NewStore(), &mockHeadFetcher{}, &mockDrafter{}, nil, CommitWatcherConfig{}, zerolog.Nop())

	assert.Equal(t, 30*time.Second, w.config.Interval)
	assert.Equal(t, 1, w.config.WatchCount)
	assert.Equal(t, 280, w.config.CharLimit)
	assert.Equal(t, 800, w.config.MaxSummaryDisplay)
}
