package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikelady/commitcast/internal/models"
)

func strPtr(s string) *string { return &s }

func TestKeyConstructors(t *testing.T) {
	assert.Equal(t, "user:42", ByUser("42").String())
	assert.Equal(t, "auto:chan-1", ByChannel("chan-1").String())
	assert.NotEqual(t, ByUser("x"), ByChannel("x"), "user and channel keys never collide")
}

func TestStorePutGetReturnsCopies(t *testing.T) {
	store := NewStore()
	sess := &Session{
		Key:     ByUser("u1"),
		Commits: []models.Commit{{Hash: "abc1234"}},
	}
	require.NoError(t, store.Put(sess))

	sess.Commits[0].Hash = "mutated"

	got, ok := store.Get(ByUser("u1"))
	require.True(t, ok)
	assert.Equal(t, "abc1234", got.Commits[0].Hash)

	got.Commits[0].Hash = "mutated-again"
	again, _ := store.Get(ByUser("u1"))
	assert.Equal(t, "abc1234", again.Commits[0].Hash)
}

func TestStorePutRejectsPendingWithoutPost(t *testing.T) {
	store := NewStore()

	err := store.Put(&Session{Key: ByUser("u1"), PendingPost: true})

	assert.True(t, errors.Is(err, ErrInvalidSession))
	assert.Equal(t, 0, store.Len())
}

func TestStorePutRejectsEmptyKey(t *testing.T) {
	store := NewStore()
	assert.ErrorIs(t, store.Put(&Session{Key: ByUser("")}), ErrInvalidSession)
}

func TestStorePutStampsUpdatedAt(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.Put(&Session{Key: ByUser("u1")}))

	got, _ := store.Get(ByUser("u1"))
	assert.Equal(t, fixed, got.UpdatedAt)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Put(&Session{Key: ByChannel("c1")}))

	assert.True(t, store.Delete(ByChannel("c1")))
	assert.False(t, store.Delete(ByChannel("c1")), "second delete is a no-op")
	_, ok := store.Get(ByChannel("c1"))
	assert.False(t, ok)
}

func TestStoreResolvePrefersUser(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Put(&Session{Key: ByChannel("c1"), GeneratedPost: strPtr("auto"), PendingPost: true}))

	got, ok := store.Resolve("u1", "c1")
	require.True(t, ok)
	assert.Equal(t, ByChannel("c1"), got.Key, "falls back to channel session")

	require.NoError(t, store.Put(&Session{Key: ByUser("u1"), GeneratedPost: strPtr("mine"), PendingPost: true}))

	got, ok = store.Resolve("u1", "c1")
	require.True(t, ok)
	assert.Equal(t, ByUser("u1"), got.Key)
	assert.Equal(t, "mine", *got.GeneratedPost)

	_, ok = store.Resolve("", "")
	assert.False(t, ok)
}

func TestSessionState(t *testing.T) {
	idle := &Session{Key: ByUser("u")}
	assert.Equal(t, StateIdle, idle.State())

	listed := &Session{Key: ByUser("u"), Commits: []models.Commit{{Hash: "a"}}}
	assert.Equal(t, StateListed, listed.State())

	drafted := &Session{Key: ByUser("u"), Commits: []models.Commit{{Hash: "a"}}, GeneratedPost: strPtr("p"), PendingPost: true}
	assert.Equal(t, StateDrafted, drafted.State())

	drafted.ClearDraft()
	assert.Equal(t, StateListed, drafted.State())
	assert.Nil(t, drafted.GeneratedPost)
	assert.Empty(t, drafted.DraftID)
}

func TestWatermarks(t *testing.T) {
	store := NewStore()

	_, ok := store.Watermark("octo/a")
	assert.False(t, ok, "absent watermark means not initialized")

	store.SetWatermark("octo/a", "abc1234")
	hash, ok := store.Watermark("octo/a")
	assert.True(t, ok)
	assert.Equal(t, "abc1234", hash)

	marks := store.Watermarks()
	marks["octo/a"] = "changed"
	hash, _ = store.Watermark("octo/a")
	assert.Equal(t, "abc1234", hash)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ByUser("u")
			_ = store.Put(&Session{Key: key, Commits: []models.Commit{{Hash: "h"}}})
			store.Get(key)
			store.SetWatermark("repo", "h")
			store.Watermark("repo")
			if i%5 == 0 {
				store.Delete(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 1)
}
