// Package session holds the in-memory review state: per-user and per-channel
// draft sessions and the per-repository commit watermarks used by the watcher.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikelady/commitcast/internal/models"
)

// ErrInvalidSession is returned when a session violates its invariants
var ErrInvalidSession = errors.New("invalid session")

// KeyKind distinguishes interactive sessions from watcher-generated ones
type KeyKind string

const (
	KindUser    KeyKind = "user"
	KindChannel KeyKind = "auto"
)

// Key addresses a session. Build it with ByUser or ByChannel.
type Key struct {
	Kind KeyKind
	ID   string
}

// ByUser keys an interactive session
func ByUser(id string) Key {
	return Key{Kind: KindUser, ID: id}
}

// ByChannel keys the auto-generated session of a notification channel
func ByChannel(id string) Key {
	return Key{Kind: KindChannel, ID: id}
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Session is the review state of one key
type Session struct {
	Key              Key
	Commits          []models.Commit
	SelectedCommits  []models.Commit
	GeneratedSummary *string
	GeneratedPost    *string
	ProjectName      *string
	PendingPost      bool
	DraftID          string
	UpdatedAt        time.Time
}

// State names the review stage of a session
type State string

const (
	StateIdle    State = "idle"
	StateListed  State = "listed"
	StateDrafted State = "drafted"
)

// State derives the review stage from the session fields
func (s *Session) State() State {
	switch {
	case s.PendingPost:
		return StateDrafted
	case len(s.Commits) > 0 || len(s.SelectedCommits) > 0:
		return StateListed
	default:
		return StateIdle
	}
}

// Validate checks the session invariants
func (s *Session) Validate() error {
	if s.Key.ID == "" {
		return fmt.Errorf("%w: key id is required", ErrInvalidSession)
	}
	if s.PendingPost && s.GeneratedPost == nil {
		return fmt.Errorf("%w: pending post without generated post", ErrInvalidSession)
	}
	return nil
}

// ClearDraft drops selection and generated text, returning to the listed stage
func (s *Session) ClearDraft() {
	s.SelectedCommits = nil
	s.GeneratedSummary = nil
	s.GeneratedPost = nil
	s.ProjectName = nil
	s.PendingPost = false
	s.DraftID = ""
}

// Clone returns a copy that shares no mutable state with s
func (s *Session) Clone() *Session {
	c := *s
	c.Commits = cloneCommits(s.Commits)
	c.SelectedCommits = cloneCommits(s.SelectedCommits)
	c.GeneratedSummary = cloneString(s.GeneratedSummary)
	c.GeneratedPost = cloneString(s.GeneratedPost)
	c.ProjectName = cloneString(s.ProjectName)
	return &c
}

func cloneCommits(in []models.Commit) []models.Commit {
	if in == nil {
		return nil
	}
	out := make([]models.Commit, len(in))
	copy(out, in)
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store is the in-memory session and watermark store. Every method is atomic
// on its own; callers that read, call out and write back get last-write-wins.
type Store struct {
	mu         sync.RWMutex
	sessions   map[Key]*Session
	watermarks map[string]string
	now        func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sessions:   make(map[Key]*Session),
		watermarks: make(map[string]string),
		now:        time.Now,
	}
}

// Get returns a copy of the session for key
func (s *Store) Get(key Key) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Put validates and stores a copy of sess, replacing any existing session
func (s *Store) Put(sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	stored := sess.Clone()
	stored.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[stored.Key] = stored
	return nil
}

// Delete removes the session for key and reports whether one existed
func (s *Store) Delete(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[key]
	delete(s.sessions, key)
	return ok
}

// Resolve returns the user's session, falling back to the channel's
// auto-session when the user has none.
func (s *Store) Resolve(userID, channelID string) (*Session, bool) {
	if userID != "" {
		if sess, ok := s.Get(ByUser(userID)); ok {
			return sess, true
		}
	}
	if channelID != "" {
		return s.Get(ByChannel(channelID))
	}
	return nil, false
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Watermark returns the last seen short hash for repo
func (s *Store) Watermark(repo string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.watermarks[repo]
	return hash, ok
}

// SetWatermark records hash as the last seen commit of repo
func (s *Store) SetWatermark(repo, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[repo] = hash
}

// Watermarks returns a copy of all watermarks
func (s *Store) Watermarks() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.watermarks))
	for repo, hash := range s.watermarks {
		out[repo] = hash
	}
	return out
}
