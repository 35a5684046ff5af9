package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"busrisk/internal/analysis"
	"busrisk/internal/backends/git"
	"busrisk/internal/config"
	"busrisk/internal/discovery"
	"busrisk/internal/errors"
	"busrisk/internal/paths"
	"busrisk/internal/report"
	"busrisk/internal/risk"
	"busrisk/internal/slogutil"
	"busrisk/internal/storage"
)

// analyzeOptions holds the analyze flags. They override config values only
// when given on the command line.
type analyzeOptions struct {
	departedFile     string
	riskFile         string
	teamFile         string
	defaultRisk      float64
	threshold        float64
	creationConstant float64
	workers          int
	interesting      []string
	notInteresting   []string
	caseSensitive    bool
	gitExe           string
	gitTimeoutMs     int
	output           string
	compress         bool
	format           string
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-root>",
	Short: "Analyze the knowledge risk of a project",
	Long: `Replay the history of every interesting file under project-root and write
the results to the output directory:

  summary.db      SQLite summary store
  summary.json    project tree, riskiest files and author groups
  files/<id>.json per-file and per-line statistics
  run.toml        run manifest
  run.log         debug log of the run

An existing output directory is replaced.

Examples:
  busrisk analyze .
  busrisk analyze --departed-file departed.txt --bus-risk-file risks.txt .
  busrisk analyze -I '\.go$' -N '_test\.go$' --workers 8 -v ~/src/project`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	addAnalyzeFlags(analyzeCmd.Flags(), &analyzeOpts)
	rootCmd.AddCommand(analyzeCmd)
}

func addAnalyzeFlags(fs *pflag.FlagSet, o *analyzeOptions) {
	d := config.DefaultConfig()

	fs.StringVar(&o.departedFile, "departed-file", "", "File listing departed authors, one per line")
	fs.StringVar(&o.riskFile, "bus-risk-file", "", "File of author=probability risk overrides")
	fs.StringVar(&o.teamFile, "team-file", "", "TOML file with departed authors and a risks table")
	fs.Float64Var(&o.defaultRisk, "default-bus-risk", d.Risk.DefaultRisk, "Departure risk of authors without an override")
	fs.Float64Var(&o.threshold, "risk-threshold", 0, "Joint risk at or below which knowledge is safe (default: default-bus-risk cubed)")
	fs.Float64Var(&o.creationConstant, "knowledge-creation-constant", d.Knowledge.CreationConstant, "Share of a changed line's knowledge created anew")
	fs.IntVar(&o.workers, "workers", d.Analysis.Workers, "Files replayed concurrently")
	fs.StringArrayVarP(&o.interesting, "interesting", "I", nil, "Regex of files to analyze (repeatable, replaces the defaults)")
	fs.StringArrayVarP(&o.notInteresting, "not-interesting", "N", nil, "Regex of files to skip (repeatable)")
	fs.BoolVar(&o.caseSensitive, "case-sensitive", false, "Match file patterns case-sensitively")
	fs.StringVar(&o.gitExe, "git-exe", d.Git.Executable, "Git executable")
	fs.IntVar(&o.gitTimeoutMs, "git-timeout-ms", d.Git.TimeoutMs, "Timeout of a single git command in milliseconds")
	fs.StringVarP(&o.output, "output", "o", d.Output.Dir, "Output directory (replaced on every run)")
	fs.BoolVar(&o.compress, "compress", false, "Gzip rendered documents")
	fs.StringVar(&o.format, "format", d.Output.Format, "Document format (json, yaml)")
}

// applyAnalyzeFlags copies every flag given on the command line into cfg
func applyAnalyzeFlags(fs *pflag.FlagSet, o *analyzeOptions, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("departed-file", func() { cfg.Risk.DepartedFile = o.departedFile })
	set("bus-risk-file", func() { cfg.Risk.RiskFile = o.riskFile })
	set("team-file", func() { cfg.Risk.TeamFile = o.teamFile })
	set("default-bus-risk", func() { cfg.Risk.DefaultRisk = o.defaultRisk })
	set("risk-threshold", func() {
		threshold := o.threshold
		cfg.Risk.Threshold = &threshold
	})
	set("knowledge-creation-constant", func() { cfg.Knowledge.CreationConstant = o.creationConstant })
	set("workers", func() { cfg.Analysis.Workers = o.workers })
	set("interesting", func() { cfg.Analysis.Interesting = o.interesting })
	set("not-interesting", func() { cfg.Analysis.NotInteresting = o.notInteresting })
	set("case-sensitive", func() { cfg.Analysis.CaseSensitive = o.caseSensitive })
	set("git-exe", func() { cfg.Git.Executable = o.gitExe })
	set("git-timeout-ms", func() { cfg.Git.TimeoutMs = o.gitTimeoutMs })
	set("output", func() { cfg.Output.Dir = o.output })
	set("compress", func() { cfg.Output.Compress = o.compress })
	set("format", func() { cfg.Output.Format = o.format })
}

// analyzeResponseCLI is what analyze prints when it finishes
type analyzeResponseCLI struct {
	RunID      string             `json:"runId"`
	OutputDir  string             `json:"outputDir"`
	Tracked    int                `json:"tracked"`
	Selected   int                `json:"selected"`
	Analyzed   int                `json:"analyzed"`
	Failures   []report.Failure   `json:"failures"`
	Totals     storage.Totals     `json:"totals"`
	TopFiles   []storage.FileRisk `json:"topFiles"`
	DurationMs int64              `json:"durationMs"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	projectRoot, err := filepath.Abs(args[0])
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot resolve project root", err)
	}
	if info, err := os.Stat(projectRoot); err != nil || !info.IsDir() {
		return errors.Newf(errors.ConfigInvalid, "project root %s is not a directory", projectRoot)
	}

	cfg, err := config.LoadConfig(projectRoot)
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd.Flags(), &analyzeOpts, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	loggers := slogutil.NewLoggerFactory(cfg, cliLevel(), cmd.ErrOrStderr())
	defer loggers.Close()
	console := loggers.ConsoleLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Risk inputs are checked before any git work
	oracle, err := risk.Load(risk.Config{
		DefaultRisk: cfg.Risk.DefaultRisk,
		Threshold:   cfg.Risk.Threshold,
	}, cfg.Risk.DepartedFile, cfg.Risk.RiskFile, cfg.Risk.TeamFile)
	if err != nil {
		return err
	}
	analyzer, err := analysis.NewAnalyzer(oracle, cfg.Knowledge.CreationConstant)
	if err != nil {
		return err
	}

	adapter, err := git.NewGitAdapter(ctx, cfg, console)
	if err != nil {
		return err
	}
	tracked, err := adapter.ListFiles(ctx)
	if err != nil {
		return err
	}
	filter, err := discovery.NewFilter(discovery.Options{
		Interesting:    cfg.Analysis.Interesting,
		NotInteresting: cfg.Analysis.NotInteresting,
		CaseSensitive:  cfg.Analysis.CaseSensitive,
	}, console)
	if err != nil {
		return err
	}
	selected, err := filter.Select(tracked)
	if err != nil {
		return err
	}

	outDir := cfg.Output.Dir
	if err := paths.PrepareOutputDir(outDir, projectRoot); err != nil {
		return err
	}
	logger := loggers.RunLogger(paths.LogPath(outDir))

	manifest := report.NewManifest(projectRoot)
	if manifest.HeadCommit, err = adapter.HeadCommit(ctx); err != nil {
		logger.Warn("Cannot resolve HEAD", "error", err.Error())
	}
	manifest.Parameters = report.Parameters{
		DefaultRisk:      oracle.DefaultRisk(),
		RiskThreshold:    oracle.Threshold(),
		CreationConstant: cfg.Knowledge.CreationConstant,
		Workers:          cfg.Analysis.Workers,
		Interesting:      cfg.Analysis.Interesting,
		NotInteresting:   cfg.Analysis.NotInteresting,
		CaseSensitive:    cfg.Analysis.CaseSensitive,
		Departed:         oracle.Departed(),
	}
	manifest.Files = report.FileCounts{Tracked: len(tracked), Selected: len(selected)}

	db, err := storage.Open(paths.SummaryDBPath(outDir), logger)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := storage.NewSummaryRepository(db)

	if err := repo.CreateRun(&storage.Run{
		ID:               manifest.RunID,
		Project:          projectRoot,
		HeadCommit:       manifest.HeadCommit,
		DefaultRisk:      oracle.DefaultRisk(),
		Threshold:        oracle.Threshold(),
		CreationConstant: cfg.Knowledge.CreationConstant,
		StartedAt:        manifest.StartedAt,
	}); err != nil {
		return err
	}

	logger.Info("Starting analysis",
		"project", projectRoot,
		"tracked", len(tracked),
		"selected", len(selected),
		"workers", cfg.Analysis.Workers,
	)

	result, err := runAndStore(ctx, analyzer, adapter, repo, manifest.RunID, cfg.Analysis.Workers, logger, selected)
	if err != nil {
		return err
	}

	manifest.Finish(result)
	if err := repo.FinishRun(manifest.RunID, manifest.FinishedAt, len(result.Failures)); err != nil {
		return err
	}

	renderer, err := report.NewRenderer(outDir, report.Options{
		Format:   report.Format(cfg.Output.Format),
		Compress: cfg.Output.Compress,
	}, logger)
	if err != nil {
		return err
	}
	summary, err := renderer.Render(repo, manifest.RunID, projectRoot)
	if err != nil {
		return err
	}
	if err := report.WriteManifest(paths.ManifestPath(outDir), manifest); err != nil {
		return err
	}

	resp := &analyzeResponseCLI{
		RunID:      manifest.RunID,
		OutputDir:  outDir,
		Tracked:    len(tracked),
		Selected:   len(selected),
		Analyzed:   len(result.Files),
		Failures:   manifest.Failures,
		Totals:     summary.Totals,
		TopFiles:   summary.RiskiestFiles,
		DurationMs: time.Since(start).Milliseconds(),
	}
	out, err := FormatResponse(resp, FormatHuman)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	logger.Info("Analysis completed",
		"analyzed", len(result.Files),
		"failed", len(result.Failures),
		"duration", time.Since(start).Milliseconds(),
	)
	return nil
}

// runAndStore replays files and saves each result as soon as it is ready.
// Saves are serialized; the first storage error fails the run.
func runAndStore(ctx context.Context, analyzer *analysis.Analyzer, source analysis.HistorySource,
	repo *storage.SummaryRepository, runID string, workers int, logger *slog.Logger, files []string) (*analysis.RunResult, error) {
	var mu sync.Mutex
	var saveErr error

	runner := analysis.NewRunner(analyzer, source, workers, logger)
	runner.OnFile = func(res *analysis.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		if saveErr != nil {
			return
		}
		if _, err := repo.SaveFile(runID, res); err != nil {
			logger.Error("Failed to store file", "file", res.Path, "error", err.Error())
			saveErr = err
		}
	}

	result, err := runner.Run(ctx, files)
	if err != nil {
		return nil, err
	}
	if saveErr != nil {
		return nil, saveErr
	}
	return result, nil
}
