// Package models holds the value types shared between source adapters,
// the drafting pipeline and the session store.
package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ShortHashLength is the number of hex characters kept in a short hash
const ShortHashLength = 7

// File change statuses reported by source adapters
const (
	FileAdded     = "added"
	FileModified  = "modified"
	FileRemoved   = "removed"
	FileRenamed   = "renamed"
	FileCopied    = "copied"
	FileChanged   = "changed"
	FileUnchanged = "unchanged"
)

// FileChange describes one file touched by a commit
type FileChange struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Commit is an immutable snapshot of a commit fetched from a source adapter.
// Files is nil when the per-commit detail fetch failed.
type Commit struct {
	Hash     string       `json:"hash"`
	FullHash string       `json:"full_hash"`
	Message  string       `json:"message"`
	Author   string       `json:"author"`
	Date     time.Time    `json:"date"`
	URL      string       `json:"url"`
	Repo     string       `json:"repo"`
	Files    []FileChange `json:"files,omitempty"`
}

// HasFiles reports whether file-level detail was fetched
func (c Commit) HasFiles() bool {
	return c.Files != nil
}

// DisplayDate renders the author date as a short human date
func (c Commit) DisplayDate() string {
	if c.Date.IsZero() {
		return "unknown date"
	}
	return c.Date.Local().Format("Jan 2, 2006")
}

// ShortHash truncates a full commit hash
func ShortHash(full string) string {
	if len(full) <= ShortHashLength {
		return full
	}
	return full[:ShortHashLength]
}

// FirstLine returns the first line of a possibly multi-line commit message
func FirstLine(message string) string {
	message = strings.TrimLeft(message, "\r\n")
	if i := strings.IndexAny(message, "\r\n"); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}

// ProjectName derives a display name from a repository identifier such as
// "owner/name" or "gitlab:group/sub/name". Returns "" when nothing usable remains.
func ProjectName(repo string) string {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), "/")
	if i := strings.Index(repo, ":"); i >= 0 {
		repo = repo[i+1:]
	}
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		repo = repo[i+1:]
	}
	if repo == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(repo)
	return string(unicode.ToUpper(r)) + repo[size:]
}
