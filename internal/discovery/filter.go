// Package discovery selects the files of a project worth analysing.
package discovery

import (
	"log/slog"
	"regexp"

	"busrisk/internal/errors"
	"busrisk/internal/paths"
	"busrisk/internal/slogutil"
)

// Filter keeps paths matching an interesting pattern and no
// not-interesting pattern
type Filter struct {
	interesting    []*regexp.Regexp
	notInteresting []*regexp.Regexp
	logger         *slog.Logger
}

// Options configures a Filter
type Options struct {
	Interesting    []string
	NotInteresting []string
	CaseSensitive  bool
}

// NewFilter compiles the patterns. Matching is case-insensitive unless
// CaseSensitive is set.
func NewFilter(opts Options, logger *slog.Logger) (*Filter, error) {
	f := &Filter{logger: slogutil.OrDiscard(logger)}

	var err error
	if f.interesting, err = compile("interesting", opts.Interesting, opts.CaseSensitive); err != nil {
		return nil, err
	}
	if f.notInteresting, err = compile("not-interesting", opts.NotInteresting, opts.CaseSensitive); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(kind string, patterns []string, caseSensitive bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr := p
		if !caseSensitive {
			expr = "(?i)" + p
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.New(errors.ConfigInvalid, "invalid "+kind+" pattern", err).WithDetails(map[string]interface{}{
				"pattern": p,
			})
		}
		out = append(out, re)
	}
	return out, nil
}

// Match reports whether path should be analysed
func (f *Filter) Match(path string) bool {
	normalized := paths.NormalizePath(path)
	return matchAny(f.interesting, normalized) && !matchAny(f.notInteresting, normalized)
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Select returns the matching paths in their original order. It fails with
// NO_INTERESTING_FILES when nothing matches.
func (f *Filter) Select(files []string) ([]string, error) {
	selected := make([]string, 0, len(files))
	for _, file := range files {
		if f.Match(file) {
			selected = append(selected, file)
		}
	}

	f.logger.Debug("Selected files",
		"candidates", len(files),
		"selected", len(selected),
	)

	if len(selected) == 0 {
		return nil, errors.Newf(errors.NoInterestingFiles, "none of %d tracked files matched the interesting patterns", len(files))
	}
	return selected, nil
}
