package diff

import (
	stderrors "errors"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"busrisk/internal/errors"
)

// Parser turns the diff of one historical change into line events
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes diffText with go-diff and walks every hunk, emitting Add,
// Change and Remove events in application order. diffText is either a git
// patch with file headers or bare hunks. An empty diff yields no events.
func (p *Parser) Parse(diffText string) ([]Event, error) {
	if diffText == "" {
		return []Event{}, nil
	}

	hunks, err := readHunks(diffText)
	if err != nil {
		return nil, errors.New(errors.ParseError, "undecodable diff", err).WithDetails(map[string]interface{}{
			"firstLine": firstLine(diffText),
		})
	}

	events := make([]Event, 0)
	for i, hunk := range hunks {
		start := newFileStart(hunk)
		if start < 1 {
			return nil, errors.Newf(errors.ParseError, "new-file offset %d out of range", start).WithDetails(map[string]interface{}{
				"hunk":     i,
				"newStart": hunk.NewStartLine,
				"newLines": hunk.NewLines,
			})
		}
		events = walkHunk(events, hunk.Body, start)
	}

	return events, nil
}

// Parse is a convenience function to parse a diff with a fresh Parser
func Parse(diffText string) ([]Event, error) {
	return NewParser().Parse(diffText)
}

// readHunks returns the hunks of diffText in order
func readHunks(diffText string) ([]*godiff.Hunk, error) {
	if !strings.HasPrefix(diffText, "@@") {
		fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
		if err != nil {
			return nil, err
		}
		var hunks []*godiff.Hunk
		for _, fd := range fileDiffs {
			hunks = append(hunks, fd.Hunks...)
		}
		return hunks, nil
	}

	hunks, err := godiff.NewHunksReader(strings.NewReader(diffText)).ReadAllHunks()
	if err != nil {
		// a line outside any hunk ends bare hunks, as it ends a file in a patch
		var pe *godiff.ParseError
		if stderrors.As(err, &pe) {
			var bad *godiff.ErrBadHunkLine
			if stderrors.As(pe.Err, &bad) {
				return hunks, nil
			}
		}
		return nil, err
	}
	return hunks, nil
}

// newFileStart returns the first new-file line the hunk body refers to
func newFileStart(hunk *godiff.Hunk) int {
	start := int(hunk.NewStartLine)
	// An empty new range names the line before the hunk
	if hunk.NewLines == 0 {
		start++
	}
	return start
}

// walkHunk emits events for one hunk body starting at new-file line counter.
// Consecutive old/new lines form a replace group; context lines flush the
// group and advance the counter.
func walkHunk(events []Event, hunkBody []byte, counter int) []Event {
	var oldLines, newLines []string

	flush := func() {
		events = appendGroup(events, &counter, oldLines, newLines)
		oldLines, newLines = nil, nil
	}

	body := strings.TrimSuffix(string(hunkBody), "\n")
	if body == "" {
		return events
	}
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "-"):
			oldLines = append(oldLines, line[1:])
		case strings.HasPrefix(line, "+"):
			newLines = append(newLines, line[1:])
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file" is not a line
		default:
			flush()
			counter++
		}
	}
	flush()

	return events
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}

// appendGroup pairs old and new lines of a replace group. Paired lines are
// changes, surplus old lines are removals at the same slot and surplus new
// lines are additions.
func appendGroup(events []Event, counter *int, oldLines, newLines []string) []Event {
	for i := 0; i < max(len(oldLines), len(newLines)); i++ {
		switch {
		case i < len(oldLines) && i < len(newLines):
			events = append(events, NewChange(*counter, newLines[i]))
			*counter++
		case i < len(oldLines):
			events = append(events, NewRemove(*counter))
		default:
			events = append(events, NewAdd(*counter, newLines[i]))
			*counter++
		}
	}
	return events
}
