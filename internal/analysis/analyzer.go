// Package analysis replays file histories through the line tracker and the
// knowledge ledger and condenses the result per line.
package analysis

import (
	"sort"

	"busrisk/internal/backends/git"
	"busrisk/internal/diff"
	"busrisk/internal/knowledge"
	"busrisk/internal/lines"
	"busrisk/internal/risk"
)

// Condensation is what one author group knows about one line
type Condensation struct {
	Authors   knowledge.AuthorSet `json:"authors" yaml:"authors"`
	Knowledge float64             `json:"knowledge" yaml:"knowledge"`
	// Orphaned equals Knowledge when every member has departed
	Orphaned float64 `json:"orphaned" yaml:"orphaned"`
	// Risk is the knowledge weighted by the group's joint departure probability
	Risk float64 `json:"risk" yaml:"risk"`
}

// LineResult is the final state of one line
type LineResult struct {
	Number        int            `json:"number" yaml:"number"`
	Text          string         `json:"text" yaml:"text"`
	Condensations []Condensation `json:"condensations" yaml:"condensations"`
}

// FileResult is the outcome of replaying one file
type FileResult struct {
	Path    string       `json:"path" yaml:"path"`
	Commits int          `json:"commits" yaml:"commits"`
	Events  int          `json:"events" yaml:"events"`
	Lines   []LineResult `json:"lines" yaml:"lines"`
}

// Analyzer replays histories against a shared risk oracle. It holds no
// per-file state, so one Analyzer serves every worker of a run.
type Analyzer struct {
	oracle           *risk.Oracle
	creationConstant float64
	parser           *diff.Parser
}

// NewAnalyzer creates an Analyzer. creationConstant must lie in [0,1].
func NewAnalyzer(oracle *risk.Oracle, creationConstant float64) (*Analyzer, error) {
	if _, err := knowledge.NewLedger(oracle, creationConstant); err != nil {
		return nil, err
	}
	return &Analyzer{
		oracle:           oracle,
		creationConstant: creationConstant,
		parser:           diff.NewParser(),
	}, nil
}

// Replay applies history, oldest first, to a fresh tracker and ledger and
// condenses every final line. Any failure aborts this file only.
func (a *Analyzer) Replay(path string, history []git.HistoryEntry) (*FileResult, error) {
	tracker := lines.NewTracker()
	ledger, err := knowledge.NewLedger(a.oracle, a.creationConstant)
	if err != nil {
		return nil, err
	}

	result := &FileResult{Path: path, Commits: len(history)}
	for _, entry := range history {
		events, err := a.parser.Parse(entry.Diff)
		if err != nil {
			return nil, &FileError{Path: path, Commit: entry.Commit, Err: err}
		}
		for _, ev := range events {
			if err := apply(tracker, ledger, entry.Author, ev); err != nil {
				return nil, &FileError{Path: path, Commit: entry.Commit, Err: err}
			}
		}
		result.Events += len(events)
	}

	result.Lines = a.condense(tracker, ledger)
	return result, nil
}

// apply feeds one event to the tracker and then to the ledger at the same
// line number
func apply(tracker *lines.Tracker, ledger *knowledge.Ledger, author string, ev diff.Event) error {
	switch ev.Kind {
	case diff.Add:
		if err := tracker.Add(ev.LineNumber, ev.LineText()); err != nil {
			return err
		}
		return ledger.RecordAdd(author, ev.LineNumber)
	case diff.Change:
		if err := tracker.Change(ev.LineNumber, ev.LineText()); err != nil {
			return err
		}
		return ledger.RecordChange(author, ev.LineNumber)
	default:
		tracker.Remove(ev.LineNumber)
		ledger.RecordRemove(ev.LineNumber)
		return nil
	}
}

func (a *Analyzer) condense(tracker *lines.Tracker, ledger *knowledge.Ledger) []LineResult {
	texts := tracker.Snapshot()
	out := make([]LineResult, len(texts))

	for i, text := range texts {
		n := i + 1
		holdings := ledger.QueryLine(n)
		conds := make([]Condensation, 0, len(holdings))
		for _, h := range holdings {
			c := Condensation{
				Authors:   h.Authors,
				Knowledge: h.Amount,
				Risk:      a.oracle.JointProbability(h.Authors) * h.Amount,
			}
			if a.oracle.AllDeparted(h.Authors) {
				c.Orphaned = h.Amount
			}
			conds = append(conds, c)
		}
		SortCondensations(conds)
		out[i] = LineResult{Number: n, Text: text, Condensations: conds}
	}

	return out
}

// SortCondensations orders by group size, member names, knowledge, orphaned
// knowledge and risk
func SortCondensations(conds []Condensation) {
	sort.SliceStable(conds, func(i, j int) bool {
		a, b := conds[i], conds[j]
		if c := knowledge.Compare(a.Authors, b.Authors); c != 0 {
			return c < 0
		}
		if a.Knowledge != b.Knowledge {
			return a.Knowledge < b.Knowledge
		}
		if a.Orphaned != b.Orphaned {
			return a.Orphaned < b.Orphaned
		}
		return a.Risk < b.Risk
	})
}
