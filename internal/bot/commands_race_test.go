package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikelady/commitcast/internal/session"
)

// Concurrent commands on one session are not serialized: each reads a copy,
// drafts, then writes. Whichever finishes last owns the session.
func TestConcurrentSelectsLastWriterWins(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.commands.List(ctx, "u1")
	require.NoError(t, err)

	release := make(chan struct{})
	h.drafter.gates["aaaaaaa"] = release
	h.drafter.entered = make(chan string, 4)

	slowDone := make(chan error, 1)
	go func() {
		_, err := h.commands.Select(ctx, "u1", []string{"1"})
		slowDone <- err
	}()
	require.Equal(t, "aaaaaaa", <-h.drafter.entered)

	fast, err := h.commands.Select(ctx, "u1", []string{"3"})
	require.NoError(t, err)
	stored, _ := h.store.Get(session.ByUser("u1"))
	assert.Equal(t, *fast.GeneratedPost, *stored.GeneratedPost, "fast select visible while slow one is drafting")

	close(release)
	require.NoError(t, <-slowDone)

	final, ok := h.store.Get(session.ByUser("u1"))
	require.True(t, ok)
	assert.Equal(t, "Widgets Updates\n\npost of aaaaaaa", *final.GeneratedPost)
	require.Len(t, final.SelectedCommits, 1)
	assert.Equal(t, "aaaaaaa", final.SelectedCommits[0].Hash)
}

func TestRegenerateOverwritesConcurrentWrite(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.store.Put(&session.Session{
		Key:              session.ByChannel("c1"),
		GeneratedSummary: strPtr("auto summary"),
		GeneratedPost:    strPtr("auto post"),
		ProjectName:      strPtr("Widgets"),
		PendingPost:      true,
		DraftID:          "watcher-1",
	}))

	release := make(chan struct{})
	h.drafter.gates["recompose"] = release
	h.drafter.entered = make(chan string, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.commands.Regenerate(ctx, "", "c1")
		done <- err
	}()
	require.Equal(t, "recompose", <-h.drafter.entered)

	// a watcher tick replaces the channel draft mid-regeneration
	require.NoError(t, h.store.Put(&session.Session{
		Key:              session.ByChannel("c1"),
		GeneratedSummary: strPtr("newer summary"),
		GeneratedPost:    strPtr("newer post"),
		ProjectName:      strPtr("Gadgets"),
		PendingPost:      true,
		DraftID:          "watcher-2",
	}))

	close(release)
	require.NoError(t, <-done)

	final, ok := h.store.Get(session.ByChannel("c1"))
	require.True(t, ok)
	assert.Equal(t, "auto summary", *final.GeneratedSummary)
	assert.Equal(t, "Widgets Updates\n\nregenerated 1", *final.GeneratedPost)
	assert.NotEqual(t, "watcher-2", final.DraftID)
}

func TestDiscardDuringSelectIsUndoneBySelect(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.commands.List(ctx, "u1")
	require.NoError(t, err)

	release := make(chan struct{})
	h.drafter.gates["bbbbbbb"] = release
	h.drafter.entered = make(chan string, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.commands.Select(ctx, "u1", []string{"2"})
		done <- err
	}()
	<-h.drafter.entered

	_, err = h.commands.Discard("u1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, h.store.Len())

	close(release)
	require.NoError(t, <-done)

	sess, ok := h.store.Get(session.ByUser("u1"))
	require.True(t, ok, "select writes back after the discard")
	assert.True(t, sess.PendingPost)
}
