package testutil

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
)

var (
	// updateGolden rewrites golden files instead of comparing.
	// Use: go test ./... -run Golden -update
	updateGolden = flag.Bool("update", false, "update golden files")

	// fixtureFilter limits golden tests to some fixtures.
	// Use: go test ./... -run Golden -fixture=safe-collapse
	fixtureFilter = flag.String("fixture", "", "filter fixtures (comma-separated names)")
)

// ShouldUpdate returns true if golden files should be updated.
func ShouldUpdate() bool {
	return *updateGolden
}

// ShouldTestFixture reports whether the -fixture flag selects name
func ShouldTestFixture(name string) bool {
	if *fixtureFilter == "" {
		return true
	}
	for _, f := range strings.Split(*fixtureFilter, ",") {
		if strings.TrimSpace(f) == name {
			return true
		}
	}
	return false
}

// CompareGolden compares got against the golden file, failing with a diff on mismatch.
// The data is normalized first. With -update the golden file is rewritten instead.
func CompareGolden(t *testing.T, fixture *FixtureContext, name string, got any) {
	t.Helper()

	normalized := MarshalNormalized(t, got)
	goldenPath := fixture.ExpectedPath(name)

	if *updateGolden {
		UpdateGolden(t, fixture, name, normalized)
		t.Logf("Updated golden: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("Golden file missing: %s\n\nGot:\n%s\n\nRun with -update to create:\n  go test ./... -run %s -update",
				goldenPath, string(normalized), t.Name())
		}
		t.Fatalf("Failed to read golden file: %v", err)
	}

	if !bytes.Equal(normalized, expected) {
		diff := unifiedDiff(string(expected), string(normalized), goldenPath)
		t.Fatalf("Golden mismatch for %s:\n%s\n\nRun with -update to refresh:\n  go test ./... -run %s -update",
			name, diff, t.Name())
	}
}

// UpdateGolden writes normalized data to the golden file.
func UpdateGolden(t *testing.T, fixture *FixtureContext, name string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(fixture.ExpectedDir, 0o755); err != nil {
		t.Fatalf("Failed to create expected directory: %v", err)
	}
	if err := os.WriteFile(fixture.ExpectedPath(name), data, 0o644); err != nil {
		t.Fatalf("Failed to write golden file: %v", err)
	}
}

// unifiedDiff renders differing lines with a little leading context
func unifiedDiff(expected, got, path string) string {
	var buf bytes.Buffer

	expectedLines := strings.Split(expected, "\n")
	gotLines := strings.Split(got, "\n")

	fmt.Fprintf(&buf, "--- %s (expected)\n", path)
	fmt.Fprintf(&buf, "+++ %s (got)\n", path)

	var hunk []string
	hunkStart := -1
	flush := func() {
		if len(hunk) > 0 {
			fmt.Fprintf(&buf, "@@ line %d @@\n", hunkStart+1)
			for _, line := range hunk {
				buf.WriteString(line)
				buf.WriteString("\n")
			}
		}
		hunk, hunkStart = nil, -1
	}

	for i := 0; i < max(len(expectedLines), len(gotLines)); i++ {
		var exp, g string
		if i < len(expectedLines) {
			exp = expectedLines[i]
		}
		if i < len(gotLines) {
			g = gotLines[i]
		}

		if exp == g {
			if hunkStart >= 0 {
				hunk = append(hunk, " "+exp)
				if len(hunk) > 6 {
					flush()
				}
			}
			continue
		}

		if hunkStart < 0 {
			hunkStart = i
			for j := max(0, i-3); j < i; j++ {
				hunk = append(hunk, " "+expectedLines[j])
			}
		}
		if i < len(expectedLines) {
			hunk = append(hunk, "-"+exp)
		}
		if i < len(gotLines) {
			hunk = append(hunk, "+"+g)
		}
	}
	flush()

	return buf.String()
}
