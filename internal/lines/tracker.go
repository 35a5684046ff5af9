// Package lines tracks the current text of every line of one file while its
// history is replayed.
package lines

import (
	"sort"

	"busrisk/internal/errors"
)

// Line is the current state of one tracked line
type Line struct {
	Number int
	Text   string
}

// Tracker maintains the line-number to text mapping for a single file.
// It is not safe for concurrent use; every replay owns its own Tracker.
type Tracker struct {
	// lines is kept sorted by Number; numbers may have gaps
	lines []Line
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add inserts text at line n, shifting every line numbered n or higher down by one
func (t *Tracker) Add(n int, text string) error {
	if n < 1 {
		return invalidLine("add", n)
	}

	idx := t.search(n)
	for i := idx; i < len(t.lines); i++ {
		t.lines[i].Number++
	}

	t.lines = append(t.lines, Line{})
	copy(t.lines[idx+1:], t.lines[idx:])
	t.lines[idx] = Line{Number: n, Text: text}
	return nil
}

// Remove deletes line n if present and shifts every later line up by one.
// Removing an absent or out-of-range line is tolerated.
func (t *Tracker) Remove(n int) {
	if n < 1 {
		return
	}

	idx := t.search(n)
	if idx < len(t.lines) && t.lines[idx].Number == n {
		t.lines = append(t.lines[:idx], t.lines[idx+1:]...)
	}
	for i := idx; i < len(t.lines); i++ {
		t.lines[i].Number--
	}
}

// Change replaces the text of line n, inserting it when absent
func (t *Tracker) Change(n int, text string) error {
	if n < 1 {
		return invalidLine("change", n)
	}

	idx := t.search(n)
	if idx < len(t.lines) && t.lines[idx].Number == n {
		t.lines[idx].Text = text
		return nil
	}

	t.lines = append(t.lines, Line{})
	copy(t.lines[idx+1:], t.lines[idx:])
	t.lines[idx] = Line{Number: n, Text: text}
	return nil
}

// Snapshot returns the current texts in ascending line order
func (t *Tracker) Snapshot() []string {
	texts := make([]string, len(t.lines))
	for i, l := range t.lines {
		texts[i] = l.Text
	}
	return texts
}

// Lines returns a copy of the tracked lines in ascending order
func (t *Tracker) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of tracked lines
func (t *Tracker) Len() int {
	return len(t.lines)
}

// search returns the index of the first line numbered n or higher
func (t *Tracker) search(n int) int {
	return sort.Search(len(t.lines), func(i int) bool {
		return t.lines[i].Number >= n
	})
}

func invalidLine(op string, n int) error {
	return errors.Newf(errors.InvalidLineNumber, "%s at line %d: line numbers start at 1", op, n).WithDetails(map[string]interface{}{
		"op":   op,
		"line": n,
	})
}
