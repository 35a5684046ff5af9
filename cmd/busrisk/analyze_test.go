package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"busrisk/internal/config"
	"busrisk/internal/paths"
	"busrisk/internal/report"
)

func TestApplyAnalyzeFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keep config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
					t.Errorf("config changed (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "risk flags",
			args: []string{"--default-bus-risk", "0.2", "--risk-threshold", "0.01", "--departed-file", "gone.txt", "--bus-risk-file", "risks.txt"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Risk.DefaultRisk != 0.2 || cfg.Risk.Threshold == nil || *cfg.Risk.Threshold != 0.01 {
					t.Errorf("risk = %+v", cfg.Risk)
				}
				if cfg.Risk.DepartedFile != "gone.txt" || cfg.Risk.RiskFile != "risks.txt" {
					t.Errorf("risk files = %+v", cfg.Risk)
				}
			},
		},
		{
			name: "patterns replace defaults",
			args: []string{"-I", `\.go$`, "-I", `\.py$`, "-N", `^vendor/`, "--case-sensitive"},
			check: func(t *testing.T, cfg *config.Config) {
				if diff := cmp.Diff([]string{`\.go$`, `\.py$`}, cfg.Analysis.Interesting); diff != "" {
					t.Errorf("interesting mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{`^vendor/`}, cfg.Analysis.NotInteresting); diff != "" {
					t.Errorf("not-interesting mismatch (-want +got):\n%s", diff)
				}
				if !cfg.Analysis.CaseSensitive {
					t.Error("case-sensitive not applied")
				}
			},
		},
		{
			name: "run flags",
			args: []string{"--workers", "8", "--git-exe", "/usr/bin/git", "--git-timeout-ms", "5000", "-o", "out", "--compress", "--format", "yaml", "--knowledge-creation-constant", "0.3"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Analysis.Workers != 8 || cfg.Git.Executable != "/usr/bin/git" || cfg.Git.TimeoutMs != 5000 {
					t.Errorf("run settings = %+v %+v", cfg.Analysis, cfg.Git)
				}
				if cfg.Output.Dir != "out" || !cfg.Output.Compress || cfg.Output.Format != "yaml" {
					t.Errorf("output = %+v", cfg.Output)
				}
				if cfg.Knowledge.CreationConstant != 0.3 {
					t.Errorf("creation constant = %v", cfg.Knowledge.CreationConstant)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
			var opts analyzeOptions
			addAnalyzeFlags(fs, &opts)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			cfg := config.DefaultConfig()
			applyAnalyzeFlags(fs, &opts, cfg)
			tt.check(t, cfg)
		})
	}
}

// setupProject creates a repository with two Go files and a README:
// alice writes everything, bob rewrites one line of a.go.
func setupProject(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	run := func(author string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME="+author, "GIT_AUTHOR_EMAIL="+author+"@example.com",
			"GIT_COMMITTER_NAME="+author, "GIT_COMMITTER_EMAIL="+author+"@example.com",
			"GIT_CONFIG_NOSYSTEM=1", "HOME="+dir,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
		}
	}
	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	run("setup", "init", "-q")
	write("a.go", "package a\n\nfunc A() {}\n")
	write("sub/b.go", "package sub\n")
	write("README.md", "# project\n")
	run("alice", "add", ".")
	run("alice", "commit", "-q", "-m", "first")
	write("a.go", "package a\n\nfunc A() int { return 1 }\n")
	run("bob", "commit", "-q", "-am", "second")

	return dir
}

func TestAnalyzeAndSummary(t *testing.T) {
	project := setupProject(t)
	out := filepath.Join(t.TempDir(), "output")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"analyze", "-q", "--output", out, project})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "2 selected, 2 analyzed, 0 failed") {
		t.Errorf("analyze output:\n%s", stdout.String())
	}

	for _, name := range []string{paths.SummaryDBName, paths.ManifestName, paths.LogName, paths.GitignoreName, "summary.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	manifest, err := report.ReadManifest(paths.ManifestPath(out))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	wantFiles := report.FileCounts{Tracked: 3, Selected: 2, Analyzed: 2}
	if diff := cmp.Diff(wantFiles, manifest.Files); diff != "" {
		t.Errorf("manifest files mismatch (-want +got):\n%s", diff)
	}
	if manifest.HeadCommit == "" {
		t.Error("manifest lacks head commit")
	}

	var summary report.ProjectSummary
	if err := report.ReadDocument(filepath.Join(out, "summary.json"), &summary); err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if summary.RunID != manifest.RunID || summary.Totals.Files != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Totals.Stats.TotKnowledge <= 0 {
		t.Errorf("no knowledge recorded: %+v", summary.Totals)
	}

	stdout.Reset()
	rootCmd.SetArgs([]string{"summary", "--format", "json", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	var resp summaryResponseCLI
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("summary output is not JSON: %v\n%s", err, stdout.String())
	}
	if resp.RunID != manifest.RunID || resp.Totals.Files != 2 || len(resp.RiskiestFiles) != 2 {
		t.Errorf("summary response = %+v", resp)
	}
}

func TestSummary_MissingOutput(t *testing.T) {
	if _, err := loadSummary(t.TempDir(), 10); err == nil {
		t.Error("loadSummary() on an empty directory should fail")
	}
}
