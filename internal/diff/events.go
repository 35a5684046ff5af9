// Package diff turns unified diff text into ordered line-level events.
package diff

import "fmt"

// EventKind identifies what happened to a line
type EventKind int

const (
	// Add inserts a new line
	Add EventKind = iota
	// Change replaces a line's text in place
	Change
	// Remove deletes a line
	Remove
)

// String returns the lowercase name of the kind
func (k EventKind) String() string {
	switch k {
	case Add:
		return "add"
	case Change:
		return "change"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single line-level edit. LineNumber refers to the file as it
// stands after all previous events of the same diff were applied.
type Event struct {
	Kind       EventKind
	LineNumber int
	// Text is the new line text; nil for Remove
	Text *string
}

// LineText returns the event text or "" when absent
func (e Event) LineText() string {
	if e.Text == nil {
		return ""
	}
	return *e.Text
}

// String renders the event for logs and test failures
func (e Event) String() string {
	if e.Text == nil {
		return fmt.Sprintf("%s(%d)", e.Kind, e.LineNumber)
	}
	return fmt.Sprintf("%s(%d, %q)", e.Kind, e.LineNumber, *e.Text)
}

// NewAdd creates an Add event
func NewAdd(line int, text string) Event {
	return Event{Kind: Add, LineNumber: line, Text: &text}
}

// NewChange creates a Change event
func NewChange(line int, text string) Event {
	return Event{Kind: Change, LineNumber: line, Text: &text}
}

// NewRemove creates a Remove event
func NewRemove(line int) Event {
	return Event{Kind: Remove, LineNumber: line}
}
