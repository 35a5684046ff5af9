package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"busrisk/internal/errors"
	"busrisk/internal/storage"
	"busrisk/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *analyzeResponseCLI:
		return formatAnalyzeHuman(v), nil
	case *summaryResponseCLI:
		return formatSummaryHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func formatAnalyzeHuman(resp *analyzeResponseCLI) string {
	var b strings.Builder

	fmt.Fprintf(&b, "busrisk v%s\n", version.Info())
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	fmt.Fprintf(&b, "Run:      %s\n", resp.RunID)
	fmt.Fprintf(&b, "Output:   %s\n", resp.OutputDir)
	fmt.Fprintf(&b, "Files:    %d tracked, %d selected, %d analyzed, %d failed\n",
		resp.Tracked, resp.Selected, resp.Analyzed, len(resp.Failures))
	fmt.Fprintf(&b, "Duration: %dms\n\n", resp.DurationMs)

	writeStats(&b, "Totals", resp.Totals.Stats)

	if len(resp.TopFiles) > 0 {
		b.WriteString("\nRiskiest files:\n")
		writeFiles(&b, resp.TopFiles)
	}

	if len(resp.Failures) > 0 {
		b.WriteString("\nFailed files:\n")
		for _, f := range resp.Failures {
			fmt.Fprintf(&b, "  %s [%s] %s\n", f.Path, f.Code, f.Message)
		}
	}

	return b.String()
}

func formatSummaryHuman(resp *summaryResponseCLI) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", resp.Project)
	fmt.Fprintf(&b, "Run:     %s", resp.RunID)
	if resp.HeadCommit != "" {
		fmt.Fprintf(&b, " at %s", shortCommit(resp.HeadCommit))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Files:   %d (%d failed)\n\n", resp.Totals.Files, resp.Failures)

	writeStats(&b, "Totals", resp.Totals.Stats)

	if len(resp.RiskiestFiles) > 0 {
		b.WriteString("\nRiskiest files:\n")
		writeFiles(&b, resp.RiskiestFiles)
	}

	if len(resp.RiskiestGroups) > 0 {
		b.WriteString("\nRiskiest author groups:\n")
		for i, g := range resp.RiskiestGroups {
			fmt.Fprintf(&b, "  %2d. %-40s risk %10.1f  knowledge %10.1f  orphaned %10.1f\n",
				i+1, g.Authors, g.Stats.TotRisk, g.Stats.TotKnowledge, g.Stats.TotOrphaned)
		}
	}

	return b.String()
}

func writeStats(b *strings.Builder, title string, s storage.Stats) {
	fmt.Fprintf(b, "%s:\n", title)
	fmt.Fprintf(b, "  Knowledge: %12.1f\n", s.TotKnowledge)
	fmt.Fprintf(b, "  At risk:   %12.1f (%s)\n", s.TotRisk, percent(s.TotRisk, s.TotKnowledge))
	fmt.Fprintf(b, "  Orphaned:  %12.1f (%s)\n", s.TotOrphaned, percent(s.TotOrphaned, s.TotKnowledge))
}

func writeFiles(b *strings.Builder, files []storage.FileRisk) {
	for i, f := range files {
		fmt.Fprintf(b, "  %2d. %-40s risk %10.1f  orphaned %10.1f\n",
			i+1, f.Path, f.Stats.TotRisk, f.Stats.TotOrphaned)
	}
}

func percent(part, whole float64) string {
	if whole == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", part/whole*100)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

// formatError renders a command failure with its code and suggested fixes
func formatError(err error) string {
	var be *errors.BusriskError
	if !stderrors.As(err, &be) {
		return fmt.Sprintf("Error: %v\n", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %v\n", err)
	if details, ok := be.Details.(map[string]interface{}); ok {
		if stderr, ok := details["stderr"].(string); ok && stderr != "" {
			fmt.Fprintf(&b, "  git: %s\n", strings.TrimSpace(stderr))
		}
	}
	for _, fix := range be.SuggestedFixes {
		switch fix.Type {
		case errors.RunCommand:
			fmt.Fprintf(&b, "  Try: %s\n", fix.Command)
		case errors.EditFile:
			fmt.Fprintf(&b, "  Edit: %s\n", fix.Path)
		}
		if fix.Description != "" {
			fmt.Fprintf(&b, "       %s\n", fix.Description)
		}
	}
	return b.String()
}
