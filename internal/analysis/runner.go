package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"busrisk/internal/backends/git"
	"busrisk/internal/errors"
	"busrisk/internal/slogutil"
)

// HistorySource supplies a file's history, oldest first
type HistorySource interface {
	FileHistory(ctx context.Context, path string) ([]git.HistoryEntry, error)
}

// FileError records why one file could not be analysed
type FileError struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty" toml:"commit,omitempty"`
	Err    error  `json:"-" yaml:"-" toml:"-"`
}

func (e *FileError) Error() string {
	if e.Commit != "" {
		return fmt.Sprintf("%s at %s: %v", e.Path, e.Commit, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Code returns the error code of the underlying failure
func (e *FileError) Code() errors.ErrorCode {
	if code := errors.CodeOf(e.Err); code != "" {
		return code
	}
	return errors.InternalError
}

// RunResult holds the outcome of a run. Files keeps the order of the input
// paths, skipping failures.
type RunResult struct {
	Files    []*FileResult
	Failures []*FileError
}

// Runner replays many files concurrently, each on its own tracker and ledger
type Runner struct {
	analyzer *Analyzer
	source   HistorySource
	workers  int
	logger   *slog.Logger

	// OnFile, when set, is called after each successful replay. It runs on
	// worker goroutines and must be safe for concurrent use.
	OnFile func(*FileResult)
}

// NewRunner creates a Runner with at most workers concurrent replays
func NewRunner(analyzer *Analyzer, source HistorySource, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		analyzer: analyzer,
		source:   source,
		workers:  workers,
		logger:   slogutil.OrDiscard(logger),
	}
}

// Run analyses files. A failing file is logged and recorded in the result
// without affecting the others. Cancelling ctx stops scheduling new files;
// Run then returns the partial result together with ctx's error.
func (r *Runner) Run(ctx context.Context, files []string) (*RunResult, error) {
	results := make([]*FileResult, len(files))
	failures := make([]*FileError, len(files))

	var g errgroup.Group
	g.SetLimit(r.workers)

	start := time.Now()
	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.analyzeFile(ctx, path)
			if err != nil {
				failures[i] = err
				r.logger.Warn("File analysis failed", "file", path, "error", err.Error())
				return nil
			}
			results[i] = res
			if r.OnFile != nil {
				r.OnFile(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &RunResult{}
	for i := range files {
		switch {
		case results[i] != nil:
			out.Files = append(out.Files, results[i])
		case failures[i] != nil:
			out.Failures = append(out.Failures, failures[i])
		}
	}

	r.logger.Info("Analysis finished",
		"files", len(out.Files),
		"failures", len(out.Failures),
		"workers", r.workers,
		"duration", time.Since(start),
	)

	return out, ctx.Err()
}

func (r *Runner) analyzeFile(ctx context.Context, path string) (*FileResult, *FileError) {
	r.logger.Debug("Parsing history", "file", path)

	history, err := r.source.FileHistory(ctx, path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	res, err := r.analyzer.Replay(path, history)
	if err != nil {
		if fe, ok := err.(*FileError); ok {
			return nil, fe
		}
		return nil, &FileError{Path: path, Err: err}
	}

	r.logger.Debug("Replayed history",
		"file", path,
		"commits", res.Commits,
		"events", res.Events,
		"lines", len(res.Lines),
	)
	return res, nil
}
