package discovery

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"busrisk/internal/config"
	"busrisk/internal/errors"
)

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		path string
		want bool
	}{
		{
			name: "default source extension",
			opts: Options{Interesting: config.DefaultInteresting},
			path: "src/main.go",
			want: true,
		},
		{
			name: "default ignores docs",
			opts: Options{Interesting: config.DefaultInteresting},
			path: "README.md",
			want: false,
		},
		{
			name: "case-insensitive by default",
			opts: Options{Interesting: config.DefaultInteresting},
			path: "lib/Parser.JAVA",
			want: true,
		},
		{
			name: "case-sensitive when asked",
			opts: Options{Interesting: config.DefaultInteresting, CaseSensitive: true},
			path: "lib/Parser.JAVA",
			want: false,
		},
		{
			name: "not-interesting wins",
			opts: Options{Interesting: []string{`\.go$`}, NotInteresting: []string{`^vendor/`}},
			path: "vendor/x/y.go",
			want: false,
		},
		{
			name: "backslashes normalized",
			opts: Options{Interesting: []string{`\.go$`}, NotInteresting: []string{`^vendor/`}},
			path: `vendor\x\y.go`,
			want: false,
		},
		{
			name: "no interesting patterns",
			opts: Options{},
			path: "main.go",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.opts, nil)
			if err != nil {
				t.Fatalf("NewFilter() error = %v", err)
			}
			if got := f.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilter_Select(t *testing.T) {
	f, err := NewFilter(Options{
		Interesting:    []string{`\.go$`, `\.py$`},
		NotInteresting: []string{`_test\.go$`},
	}, nil)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	got, err := f.Select([]string{"b.go", "a_test.go", "notes.txt", "tools/gen.py", "a.go"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	want := []string{"b.go", "tools/gen.py", "a.go"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_SelectNothing(t *testing.T) {
	f, err := NewFilter(Options{Interesting: []string{`\.rs$`}}, nil)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}

	for _, files := range [][]string{nil, {"main.go"}} {
		_, err := f.Select(files)
		if !errors.Is(err, errors.NoInterestingFiles) {
			t.Errorf("Select(%v) error = %v, want NO_INTERESTING_FILES", files, err)
		}
	}
}

func TestNewFilter_InvalidPattern(t *testing.T) {
	for _, opts := range []Options{
		{Interesting: []string{`(`}},
		{Interesting: []string{`\.go$`}, NotInteresting: []string{`[a-`}},
	} {
		if _, err := NewFilter(opts, nil); !errors.Is(err, errors.ConfigInvalid) {
			t.Errorf("NewFilter(%+v) error = %v, want CONFIG_INVALID", opts, err)
		}
	}
}
