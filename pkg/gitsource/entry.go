package gitsource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/gitlib"
)

// ErrMalformedEntry is returned for a name-status line that does not carry
// the fields its status code requires.
var ErrMalformedEntry = errors.New("malformed name-status entry")

// Status is the one-letter change code printed by `git diff --name-status`.
type Status byte

// Status codes.
const (
	StatusModified    Status = 'M'
	StatusAdded       Status = 'A'
	StatusDeleted     Status = 'D'
	StatusRenamed     Status = 'R'
	StatusCopied      Status = 'C'
	StatusTypeChanged Status = 'T'
	StatusUnmerged    Status = 'U'
	StatusUnknown     Status = 'X'
	StatusUnmodified  Status = ' '
)

// String returns the status letter.
func (s Status) String() string {
	return string(rune(s))
}

// DiffEntry is one parsed line of name-status output.
// Code is the raw status field ("M", "D", "R087"). To is set only for rename
// and copy entries; Score is their similarity.
type DiffEntry struct {
	Code   string
	Status Status
	Score  int
	From   string
	To     string
}

// TwoPath reports whether the entry carries both a source and a target path.
func (e DiffEntry) TwoPath() bool {
	return e.To != ""
}

// ParseNameStatusLine parses one tab-separated line such as "M\tpath" or
// "R087\told\tnew". Paths are decoded with gitlib.Unquote.
//
// Only codes made of a rename or copy letter followed by a similarity score
// take two paths; a bare "R" is read as a single-path entry.
func ParseNameStatusLine(line string) (DiffEntry, error) {
	fields := strings.Split(line, "\t")

	code := fields[0]
	if code == "" {
		return DiffEntry{}, fmt.Errorf("%w: empty status in %q", ErrMalformedEntry, line)
	}

	entry := DiffEntry{Code: code, Status: Status(code[0])}

	score, scored := similarity(code)
	twoPath := scored && (entry.Status == StatusRenamed || entry.Status == StatusCopied)

	switch {
	case twoPath && len(fields) == 3:
		entry.Score = score
		entry.From = gitlib.Unquote(fields[1])
		entry.To = gitlib.Unquote(fields[2])
	case !twoPath && len(fields) == 2:
		entry.From = gitlib.Unquote(fields[1])
	default:
		return DiffEntry{}, fmt.Errorf("%w: %d fields for status %q in %q", ErrMalformedEntry, len(fields), code, line)
	}

	if entry.From == "" || (twoPath && entry.To == "") {
		return DiffEntry{}, fmt.Errorf("%w: empty path in %q", ErrMalformedEntry, line)
	}

	return entry, nil
}

// similarity extracts the numeric score following the status letter.
func similarity(code string) (int, bool) {
	if len(code) < 2 {
		return 0, false
	}

	score, err := strconv.Atoi(code[1:])
	if err != nil || score < 0 {
		return 0, false
	}

	return score, true
}

// ParseNameStatus parses name-status output, discarding empty lines.
// The first malformed line fails the whole parse.
func ParseNameStatus(lines []string) ([]DiffEntry, error) {
	entries := make([]DiffEntry, 0, len(lines))

	for _, line := range lines {
		if line == "" {
			continue
		}

		entry, err := ParseNameStatusLine(line)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Apply folds diff entries into a change set. Renames deactivate the source
// path and activate the target; copies activate only the target since the
// source is untouched; the exact code "D" deactivates; every other code
// activates.
// Later entries win when two touch the same path.
func Apply(entries []DiffEntry) changes.Map {
	result := make(changes.Map, len(entries))

	for _, entry := range entries {
		switch {
		case entry.TwoPath() && entry.Status == StatusRenamed:
			result[entry.From] = false
			result[entry.To] = true
		case entry.TwoPath():
			result[entry.To] = true
		case entry.Code == StatusDeleted.String():
			result[entry.From] = false
		default:
			result[entry.From] = true
		}
	}

	return result
}
