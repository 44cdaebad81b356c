package services

import (
	"strings"
)

// DiffStat counts added and removed lines in unified diff text. File headers
// ("--- a/x", "+++ b/x") are skipped only before the first "@@" hunk of each
// file; inside a hunk every "+" or "-" line counts, whatever follows it.
// A "diff " line starts a new file. Lines have no length cap.
func DiffStat(diff string) (additions, deletions int) {
	inHunk := false
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff "):
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk && (strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "--- ")):
			continue
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}
