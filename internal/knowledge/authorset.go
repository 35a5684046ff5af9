package knowledge

import (
	"sort"
	"strings"
)

// keySeparator joins member names into a canonical key. Git author names
// never contain a newline.
const keySeparator = "\n"

// SafeName is the display name used for the safe account
const SafeName = "Bus-safe authors"

// AuthorSet is a sorted, deduplicated list of author names. Two sets hold the
// same knowledge account iff their keys are equal.
type AuthorSet []string

// Safe is the distinguished account that absorbs knowledge once its owners'
// joint departure risk is negligible. Its single member is the anonymous
// author, whose risk the oracle reports as the threshold itself.
var Safe = AuthorSet{""}

// NewAuthorSet canonicalizes names into an AuthorSet
func NewAuthorSet(names ...string) AuthorSet {
	set := make(AuthorSet, len(names))
	copy(set, names)
	sort.Strings(set)

	out := set[:0]
	for i, name := range set {
		if i > 0 && name == set[i-1] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Key returns the canonical lookup key of the set
func (s AuthorSet) Key() string {
	return strings.Join(s, keySeparator)
}

// IsSafe reports whether s is the safe account
func (s AuthorSet) IsSafe() bool {
	return len(s) == 1 && s[0] == ""
}

// Contains reports whether name is a member of s
func (s AuthorSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// With returns the canonical union of s and name
func (s AuthorSet) With(name string) AuthorSet {
	if s.Contains(name) {
		return s
	}
	return NewAuthorSet(append(append([]string{}, s...), name)...)
}

// String renders the set for reports
func (s AuthorSet) String() string {
	if s.IsSafe() {
		return SafeName
	}
	return strings.Join(s, ", ")
}

// Compare orders sets by size, then pairwise by member name
func Compare(a, b AuthorSet) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
