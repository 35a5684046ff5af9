package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"busrisk/internal/errors"
	"busrisk/internal/paths"
	"busrisk/internal/report"
	"busrisk/internal/slogutil"
	"busrisk/internal/storage"
)

var (
	summaryFormat string
	summaryTop    int
)

var summaryCmd = &cobra.Command{
	Use:   "summary <output-dir>",
	Short: "Show totals and top risks of a finished analysis",
	Long: `Read summary.db from an analyze output directory and print the project
totals with the riskiest files and author groups.

Examples:
  busrisk summary output
  busrisk summary --top 20 --format json output`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&summaryFormat, "format", string(FormatHuman), "Output format (human, json)")
	summaryCmd.Flags().IntVar(&summaryTop, "top", report.DefaultTopN, "Number of riskiest files and author groups")
	rootCmd.AddCommand(summaryCmd)
}

// summaryResponseCLI is the summary command output
type summaryResponseCLI struct {
	RunID          string              `json:"runId"`
	Project        string              `json:"project"`
	HeadCommit     string              `json:"headCommit,omitempty"`
	StartedAt      time.Time           `json:"startedAt"`
	FinishedAt     *time.Time          `json:"finishedAt,omitempty"`
	Failures       int                 `json:"failures"`
	Totals         storage.Totals      `json:"totals"`
	RiskiestFiles  []storage.FileRisk  `json:"riskiestFiles"`
	RiskiestGroups []storage.GroupRisk `json:"riskiestAuthorGroups"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	format := OutputFormat(summaryFormat)
	if format != FormatHuman && format != FormatJSON {
		return errors.Newf(errors.ConfigInvalid, "unsupported format: %s", summaryFormat)
	}

	resp, err := loadSummary(args[0], summaryTop)
	if err != nil {
		return err
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// loadSummary reads the latest run stored in outDir
func loadSummary(outDir string, top int) (*summaryResponseCLI, error) {
	dbPath := paths.SummaryDBPath(outDir)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Newf(errors.ConfigInvalid, "no analysis found in %s", outDir).WithDetails(map[string]interface{}{
			"path": dbPath,
		})
	}

	db, err := storage.Open(dbPath, slogutil.NewDiscardLogger())
	if err != nil {
		return nil, err
	}
	defer db.Close()
	repo := storage.NewSummaryRepository(db)

	run, err := repo.LatestRun()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.Newf(errors.ConfigInvalid, "summary store in %s holds no run", outDir)
	}

	totals, err := repo.Totals(run.ID)
	if err != nil {
		return nil, err
	}
	files, err := repo.RiskiestFiles(run.ID, top)
	if err != nil {
		return nil, err
	}
	groups, err := repo.RiskiestAuthorGroups(run.ID, top)
	if err != nil {
		return nil, err
	}

	return &summaryResponseCLI{
		RunID:          run.ID,
		Project:        run.Project,
		HeadCommit:     run.HeadCommit,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		Failures:       run.Failures,
		Totals:         *totals,
		RiskiestFiles:  files,
		RiskiestGroups: groups,
	}, nil
}
