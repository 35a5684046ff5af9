package paths

import (
	"os"
	"path/filepath"
	"testing"

	"busrisk/internal/errors"
)

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src", "pkg"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"nested", filepath.Join(root, "src", "pkg", "a.go"), "src/pkg/a.go"},
		{"root", root, "."},
		{"outside", filepath.Join(filepath.Dir(root), "other"), "../other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizePath(tt.path, root)
			if err != nil {
				t.Fatalf("CanonicalizePath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanonicalizePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"self", root, true},
		{"child", filepath.Join(root, "out"), true},
		{"parent", filepath.Dir(root), false},
		{"sibling prefix", root + "-other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithin(tt.path, root); got != tt.want {
				t.Errorf("IsWithin(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestJoinRepoPath(t *testing.T) {
	got := JoinRepoPath("/repo", `src\pkg/a.go`)
	want := filepath.Join("/repo", "src", "pkg", "a.go")
	if got != want {
		t.Errorf("JoinRepoPath() = %q, want %q", got, want)
	}
}

func TestFileDocumentPath(t *testing.T) {
	got := FileDocumentPath("out", 12, ".json.gz")
	want := filepath.Join("out", "files", "12.json.gz")
	if got != want {
		t.Errorf("FileDocumentPath() = %q, want %q", got, want)
	}
}

func TestPrepareOutputDir(t *testing.T) {
	base := t.TempDir()
	project := filepath.Join(base, "project")
	out := filepath.Join(base, "output")
	if err := os.MkdirAll(project, 0755); err != nil {
		t.Fatal(err)
	}

	// Stale content from an earlier run must go
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(out, "stale.json")
	if err := os.WriteFile(stale, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := PrepareOutputDir(out, project); err != nil {
		t.Fatalf("PrepareOutputDir() error = %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file still present: %v", err)
	}
	if info, err := os.Stat(FilesDir(out)); err != nil || !info.IsDir() {
		t.Errorf("files dir missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, GitignoreName))
	if err != nil {
		t.Fatalf("reading .gitignore: %v", err)
	}
	if string(data) != "*\n" {
		t.Errorf(".gitignore = %q, want %q", data, "*\n")
	}
}

func TestPrepareOutputDir_RefusesProjectRoot(t *testing.T) {
	project := t.TempDir()
	marker := filepath.Join(project, "main.go")
	if err := os.WriteFile(marker, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, out := range []string{project, filepath.Dir(project)} {
		err := PrepareOutputDir(out, project)
		if !errors.Is(err, errors.ConfigInvalid) {
			t.Errorf("PrepareOutputDir(%q) error = %v, want CONFIG_INVALID", out, err)
		}
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("project file removed: %v", err)
	}
}
