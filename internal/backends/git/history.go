package git

import (
	"context"
	"strings"

	"busrisk/internal/errors"
)

const (
	entrySeparator  = "\x00"
	headerSeparator = "\x1f"
)

// logFormat puts a NUL before every commit and separates hash from author
// with a unit separator, so neither can be confused with diff text
const logFormat = "--format=" + "%x00%H%x1f%an"

// HistoryEntry is one historical change of a file
type HistoryEntry struct {
	Commit string `json:"commit" yaml:"commit"`
	Author string `json:"author" yaml:"author"`
	Diff   string `json:"diff" yaml:"diff"`
}

// FileHistory returns the changes to path, oldest first. path is relative
// to the repository root, as ListFiles reports it. Renames are
// followed and whitespace-only changes are ignored.
func (g *GitAdapter) FileHistory(ctx context.Context, path string) ([]HistoryEntry, error) {
	if path == "" {
		return nil, errors.New(errors.InternalError, "File path is required", nil)
	}

	g.logger.Debug("Getting file history", "file", path)

	output, err := g.executeGitCommandRaw(ctx,
		"--no-pager",
		"log",
		"--follow", // Follow history through renames
		"-w",       // Ignore all whitespace
		"--patience",
		"-p",
		"--no-color",
		"--no-ext-diff",
		logFormat,
		"--",
		g.resolve(path),
	)
	if err != nil {
		return nil, err
	}

	return ParseLog(output), nil
}

// ParseLog splits git log output produced with logFormat into entries,
// reversing git's newest-first order. Entries without an author or without
// a diff (pure renames, mode changes) are dropped.
func ParseLog(output string) []HistoryEntry {
	raw := strings.Split(output, entrySeparator)
	entries := make([]HistoryEntry, 0, len(raw))

	for i := len(raw) - 1; i >= 0; i-- {
		entry, ok := parseEntry(raw[i])
		if ok {
			entries = append(entries, entry)
		}
	}

	return entries
}

func parseEntry(raw string) (HistoryEntry, bool) {
	if strings.TrimSpace(raw) == "" {
		return HistoryEntry{}, false
	}

	header, diff, _ := strings.Cut(raw, "\n")
	commit, author, found := strings.Cut(header, headerSeparator)
	if !found {
		return HistoryEntry{}, false
	}

	author = strings.TrimSpace(author)
	diff = strings.TrimLeft(diff, "\n")
	if author == "" || strings.TrimSpace(diff) == "" {
		return HistoryEntry{}, false
	}

	return HistoryEntry{
		Commit: strings.TrimSpace(commit),
		Author: author,
		Diff:   diff,
	}, true
}
