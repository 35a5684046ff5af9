// Package testutil loads replay fixtures and compares results against
// golden files.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"busrisk/internal/backends/git"
	"busrisk/internal/risk"
)

// HistoryFixture is one file's recorded history together with the risk
// inputs it is replayed under
type HistoryFixture struct {
	Path             string   `yaml:"path"`
	DefaultRisk      float64  `yaml:"defaultRisk"`
	Threshold        *float64 `yaml:"threshold,omitempty"`
	CreationConstant float64  `yaml:"creationConstant"`
	// Departed and Overrides use the plain-text input file formats
	Departed  string             `yaml:"departed"`
	Overrides string             `yaml:"overrides"`
	History   []git.HistoryEntry `yaml:"history"`
}

// FixtureContext holds information about a loaded fixture.
type FixtureContext struct {
	// Name is the fixture directory name
	Name string

	// Root is the absolute path to the fixture directory
	Root string

	// ExpectedDir is the path to the expected/ directory
	ExpectedDir string

	History *HistoryFixture
}

// LoadFixture loads testdata/fixtures/<name>/history.yaml, failing the
// test on error.
func LoadFixture(t *testing.T, name string) *FixtureContext {
	t.Helper()

	fixtureDir := filepath.Join(getFixturesRoot(t), name)
	data, err := os.ReadFile(filepath.Join(fixtureDir, "history.yaml"))
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", name, err)
	}

	var h HistoryFixture
	if err := yaml.Unmarshal(data, &h); err != nil {
		t.Fatalf("Failed to parse fixture %s: %v", name, err)
	}

	return &FixtureContext{
		Name:        name,
		Root:        fixtureDir,
		ExpectedDir: filepath.Join(fixtureDir, "expected"),
		History:     &h,
	}
}

// Oracle builds the risk oracle the fixture's history is replayed under
func (f *FixtureContext) Oracle(t *testing.T) *risk.Oracle {
	t.Helper()

	o, err := risk.Build(risk.Config{
		DefaultRisk: f.History.DefaultRisk,
		Threshold:   f.History.Threshold,
	}, risk.Sources{
		Departed:  strings.NewReader(f.History.Departed),
		Overrides: strings.NewReader(f.History.Overrides),
	})
	if err != nil {
		t.Fatalf("Failed to build oracle for fixture %s: %v", f.Name, err)
	}
	return o
}

// ExpectedPath returns the path to a golden file within the fixture.
// The name should not include the .json extension.
func (f *FixtureContext) ExpectedPath(name string) string {
	return filepath.Join(f.ExpectedDir, name+".json")
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// internal/testutil -> project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}

// AvailableFixtures lists fixture directories holding a history.yaml
func AvailableFixtures(t *testing.T) []string {
	t.Helper()

	root := getFixturesRoot(t)
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), "history.yaml")); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names
}

// ForEachFixture runs fn as a subtest for every fixture selected by the
// -fixture flag.
func ForEachFixture(t *testing.T, fn func(t *testing.T, fixture *FixtureContext)) {
	t.Helper()

	names := AvailableFixtures(t)
	if len(names) == 0 {
		t.Skip("No fixtures available")
	}

	for _, name := range names {
		if !ShouldTestFixture(name) {
			continue
		}
		t.Run(name, func(t *testing.T) {
			fn(t, LoadFixture(t, name))
		})
	}
}
