package main

import (
	"fmt"
	"strings"
	"testing"

	"busrisk/internal/errors"
	"busrisk/internal/report"
	"busrisk/internal/storage"
)

func TestFormatResponse_JSON(t *testing.T) {
	resp := map[string]interface{}{
		"key": "value",
		"num": 42,
	}

	result, err := FormatResponse(resp, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"key": "value"`) || !strings.Contains(result, `"num": 42`) {
		t.Errorf("JSON output missing fields: %s", result)
	}
}

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{"key": "value"}, "xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("error = %v, want unsupported format", err)
	}
}

func TestFormatSummaryHuman(t *testing.T) {
	resp := &summaryResponseCLI{
		RunID:      "run-1",
		Project:    "/src/project",
		HeadCommit: "0123456789abcdef",
		Totals:     storage.Totals{Files: 2, Stats: storage.Stats{TotKnowledge: 2000, TotRisk: 500, TotOrphaned: 0}},
		RiskiestFiles: []storage.FileRisk{
			{Path: "src/a.go", Stats: storage.Stats{TotRisk: 400}},
		},
		RiskiestGroups: []storage.GroupRisk{
			{Authors: "alice, bob", Size: 2, Stats: storage.Stats{TotRisk: 300}},
		},
	}

	got, err := FormatResponse(resp, FormatHuman)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Project: /src/project",
		"at 0123456789ab",
		"Files:   2 (0 failed)",
		"(25.0%)",
		"src/a.go",
		"alice, bob",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatAnalyzeHuman_Failures(t *testing.T) {
	resp := &analyzeResponseCLI{
		RunID:    "run-1",
		Selected: 2,
		Analyzed: 1,
		Failures: []report.Failure{{Path: "bad.go", Code: string(errors.ParseError), Message: "undecodable hunk header"}},
	}

	got := formatAnalyzeHuman(resp)
	if !strings.Contains(got, "1 analyzed, 1 failed") {
		t.Errorf("missing counts:\n%s", got)
	}
	if !strings.Contains(got, "bad.go [PARSE_ERROR] undecodable hunk header") {
		t.Errorf("missing failure line:\n%s", got)
	}
	if !strings.Contains(got, "At risk:            0.0 (0.0%)") {
		t.Errorf("empty totals should not divide by zero:\n%s", got)
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantParts []string
	}{
		{
			name:      "plain error",
			err:       fmt.Errorf("boom"),
			wantParts: []string{"Error: boom"},
		},
		{
			name: "git failure with stderr",
			err: errors.New(errors.GitUnavailable, "git log failed", nil).WithDetails(map[string]interface{}{
				"stderr": "fatal: not a git repository\n",
			}),
			wantParts: []string{"GIT_UNAVAILABLE", "git: fatal: not a git repository", "Try: git status"},
		},
		{
			name:      "wrapped timeout",
			err:       fmt.Errorf("analyze: %w", errors.New(errors.Timeout, "git log timed out", nil)),
			wantParts: []string{"TIMEOUT", "--git-timeout-ms"},
		},
		{
			name:      "config fix",
			err:       errors.New(errors.ConfigInvalid, "invalid configuration", nil),
			wantParts: []string{"Edit: .busrisk/config.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatError(tt.err)
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("formatError() = %q, want it to contain %q", got, part)
				}
			}
		})
	}
}
