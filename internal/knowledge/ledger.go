// Package knowledge keeps the per-line knowledge ledger of one file: how much
// each author group knows about every line while its history is replayed.
package knowledge

import (
	"math"
	"sort"

	"busrisk/internal/errors"
)

// Unit is the knowledge of one fully attributed line
const Unit = 1000.0

// RiskModel is the part of the risk oracle the ledger depends on
type RiskModel interface {
	IsDeparted(author string) bool
	AllDeparted(authors []string) bool
	BelowThreshold(authors []string) bool
}

// Holding is an account's knowledge at one line
type Holding struct {
	Authors AuthorSet
	Amount  float64
}

type lineEntry struct {
	number int
	// amounts is keyed by AuthorSet.Key
	amounts map[string]float64
}

// Ledger records knowledge per (line, account). It is owned by a single
// replay and is not safe for concurrent use.
type Ledger struct {
	risk     RiskModel
	created  float64
	acquired float64

	accounts map[string]AuthorSet
	// lines is kept sorted by number, mirroring the line tracker
	lines []lineEntry
}

// NewLedger creates an empty ledger. creationConstant is the share of a
// changed line's unit that counts as newly created by the editor; the rest
// is acquired from the line's existing owners.
func NewLedger(risk RiskModel, creationConstant float64) (*Ledger, error) {
	if math.IsNaN(creationConstant) || creationConstant < 0 || creationConstant > 1 {
		return nil, errors.Newf(errors.ConfigInvalid, "knowledge creation constant %v outside [0,1]", creationConstant)
	}
	return &Ledger{
		risk:     risk,
		created:  creationConstant * Unit,
		acquired: (1 - creationConstant) * Unit,
		accounts: map[string]AuthorSet{Safe.Key(): Safe},
	}, nil
}

// RecordAdd shifts every entry at line n or later down by one and credits a
// full unit to the author at line n
func (l *Ledger) RecordAdd(author string, n int) error {
	if n < 1 {
		return invalidLine("add", n)
	}

	idx := l.search(n)
	for i := idx; i < len(l.lines); i++ {
		l.lines[i].number++
	}
	l.lines = append(l.lines, lineEntry{})
	copy(l.lines[idx+1:], l.lines[idx:])
	l.lines[idx] = lineEntry{number: n, amounts: make(map[string]float64)}

	l.credit(&l.lines[idx], l.account(NewAuthorSet(author)), Unit)
	return l.check(n)
}

// RecordRemove drops every entry at line n and shifts later entries up by one.
// The knowledge is lost, nothing is credited elsewhere.
func (l *Ledger) RecordRemove(n int) {
	if n < 1 {
		return
	}

	idx := l.search(n)
	if idx < len(l.lines) && l.lines[idx].number == n {
		l.lines = append(l.lines[:idx], l.lines[idx+1:]...)
	}
	for i := idx; i < len(l.lines); i++ {
		l.lines[i].number--
	}
}

// RecordChange credits the author with newly created knowledge at line n and,
// unless the author has departed, teaches them part of every other group's
// knowledge of the line.
func (l *Ledger) RecordChange(author string, n int) error {
	if n < 1 {
		return invalidLine("change", n)
	}

	entry := l.entry(n)
	if !l.risk.IsDeparted(author) {
		l.redistribute(entry, author)
	}
	l.credit(entry, l.account(NewAuthorSet(author)), l.created)

	return l.check(n)
}

func (l *Ledger) redistribute(entry *lineEntry, author string) {
	// summed and moved in key order so float results are reproducible
	keys := sortedKeys(entry.amounts)

	total := 0.0
	for _, key := range keys {
		total += entry.amounts[key]
	}
	acquiredPct := 0.0
	if total > 0 {
		// a line holding less than kAcquired gives up everything, never more
		acquiredPct = math.Min(l.acquired/total, 1)
	}

	for _, key := range keys {
		source := l.accounts[key]
		if source.IsSafe() || source.Contains(author) {
			continue
		}

		amt := entry.amounts[key] * acquiredPct

		target := source.With(author)
		if l.risk.AllDeparted(source) {
			target = NewAuthorSet(author)
		}
		if l.risk.BelowThreshold(target) {
			target = Safe
		}

		entry.amounts[key] = math.Max(entry.amounts[key]-amt, 0)
		l.credit(entry, l.account(target), amt)
	}
}

// QueryLine returns the accounts holding knowledge of line n, ordered by
// canonical key. Zero amounts are omitted.
func (l *Ledger) QueryLine(n int) []Holding {
	idx := l.search(n)
	if idx >= len(l.lines) || l.lines[idx].number != n {
		return []Holding{}
	}

	amounts := l.lines[idx].amounts
	out := make([]Holding, 0, len(amounts))
	for _, key := range sortedKeys(amounts) {
		if amounts[key] == 0 {
			continue
		}
		out = append(out, Holding{Authors: l.accounts[key], Amount: amounts[key]})
	}
	return out
}

// Total returns the summed knowledge at line n
func (l *Ledger) Total(n int) float64 {
	total := 0.0
	for _, h := range l.QueryLine(n) {
		total += h.Amount
	}
	return total
}

// Accounts returns the number of distinct accounts created so far, the safe
// account included
func (l *Ledger) Accounts() int {
	return len(l.accounts)
}

// account returns the interned set for set's key, creating it if absent
func (l *Ledger) account(set AuthorSet) string {
	key := set.Key()
	if _, ok := l.accounts[key]; !ok {
		l.accounts[key] = set
	}
	return key
}

func (l *Ledger) credit(entry *lineEntry, key string, amt float64) {
	entry.amounts[key] += amt
}

// entry returns the entry for line n, inserting an empty one if absent
func (l *Ledger) entry(n int) *lineEntry {
	idx := l.search(n)
	if idx < len(l.lines) && l.lines[idx].number == n {
		return &l.lines[idx]
	}
	l.lines = append(l.lines, lineEntry{})
	copy(l.lines[idx+1:], l.lines[idx:])
	l.lines[idx] = lineEntry{number: n, amounts: make(map[string]float64)}
	return &l.lines[idx]
}

func (l *Ledger) search(n int) int {
	return sort.Search(len(l.lines), func(i int) bool {
		return l.lines[i].number >= n
	})
}

// check verifies that every amount at line n is a non-negative number
func (l *Ledger) check(n int) error {
	idx := l.search(n)
	if idx >= len(l.lines) || l.lines[idx].number != n {
		return nil
	}
	amounts := l.lines[idx].amounts
	for _, key := range sortedKeys(amounts) {
		if amt := amounts[key]; math.IsNaN(amt) || amt < 0 {
			return errors.Newf(errors.LedgerInvariantViolation, "knowledge %v at line %d", amt, n).WithDetails(map[string]interface{}{
				"line":    n,
				"authors": l.accounts[key].String(),
				"amount":  amt,
			})
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func invalidLine(op string, n int) error {
	return errors.Newf(errors.InvalidLineNumber, "%s at line %d: line numbers start at 1", op, n)
}
