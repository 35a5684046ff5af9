package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	stamp()
	origVersion, origCommit := Version, Commit
	defer func() {
		Version, Commit = origVersion, origCommit
	}()

	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"unknown commit", "1.0.0", "unknown", "1.0.0"},
		{"short commit", "1.0.0", "abc", "1.0.0"},
		{"exactly 7 chars", "2.0.0", "1234567", "2.0.0"},
		{"full hash", "1.0.0", "abc1234567890", "1.0.0 (abc1234)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = tt.version, tt.commit
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	stamp()
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	defer func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	}()

	Version, Commit, BuildDate = "1.2.3", "abcdef123456", "2024-01-15"
	got := Full()

	for _, part := range []string{"busrisk version 1.2.3", "Commit: abcdef123456", "Built: 2024-01-15", "Go: go"} {
		if !strings.Contains(got, part) {
			t.Errorf("Full() = %q, want to contain %q", got, part)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	if len(strings.Split(Version, ".")) < 3 {
		t.Errorf("Version %q doesn't appear to be semver", Version)
	}
	if !strings.HasPrefix(UserAgent(), "busrisk/") {
		t.Errorf("UserAgent() = %q", UserAgent())
	}
}
