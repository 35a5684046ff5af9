package git

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"busrisk/internal/config"
	"busrisk/internal/errors"
	"busrisk/internal/paths"
	"busrisk/internal/slogutil"
)

const (
	// BackendID is the unique identifier for the Git backend
	BackendID = "git"

	// DefaultQueryTimeout applies when the config names no positive timeout
	DefaultQueryTimeout = 30 * time.Second
)

// GitAdapter runs git in a project directory
type GitAdapter struct {
	projectRoot  string
	repoRoot     string
	executable   string
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewGitAdapter creates a new Git adapter for cfg.RepoRoot and verifies that
// it lies inside a git work tree
func NewGitAdapter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*GitAdapter, error) {
	logger = slogutil.OrDiscard(logger)

	timeout := DefaultQueryTimeout
	if cfg.Git.TimeoutMs > 0 {
		timeout = time.Duration(cfg.Git.TimeoutMs) * time.Millisecond
	}
	executable := cfg.Git.Executable
	if executable == "" {
		executable = "git"
	}

	adapter := &GitAdapter{
		projectRoot:  cfg.RepoRoot,
		executable:   executable,
		queryTimeout: timeout,
		logger:       logger,
	}

	if !adapter.IsAvailable(ctx) {
		return nil, errors.New(errors.GitUnavailable, "Git is not available in this directory", nil).WithDetails(map[string]interface{}{
			"projectRoot": cfg.RepoRoot,
			"executable":  executable,
		})
	}

	repoRoot, err := adapter.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}
	adapter.repoRoot = repoRoot

	logger.Info("Git adapter initialized",
		"projectRoot", cfg.RepoRoot,
		"repoRoot", repoRoot,
		"executable", executable,
		"timeout", timeout.String(),
	)

	return adapter, nil
}

// ID returns the backend identifier
func (g *GitAdapter) ID() string {
	return BackendID
}

// IsAvailable checks that git runs and the project root is inside a work tree
func (g *GitAdapter) IsAvailable(ctx context.Context) bool {
	out, err := g.executeGitCommand(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// RepoRoot returns the top-level directory of the repository
func (g *GitAdapter) RepoRoot(ctx context.Context) (string, error) {
	return g.executeGitCommand(ctx, "rev-parse", "--show-toplevel")
}

// HeadCommit returns the current HEAD commit hash
func (g *GitAdapter) HeadCommit(ctx context.Context) (string, error) {
	return g.executeGitCommand(ctx, "rev-parse", "HEAD")
}

// ListFiles returns the paths tracked at HEAD under the project root,
// relative to the repository root
func (g *GitAdapter) ListFiles(ctx context.Context) ([]string, error) {
	root, err := filepath.Abs(g.projectRoot)
	if err != nil {
		return nil, errors.New(errors.InternalError, "Cannot resolve project root", err)
	}
	return g.executeGitCommandLines(ctx, "ls-tree", "--full-tree", "--name-only", "-r", "HEAD", "--", root)
}

// resolve turns a repository-relative path into an absolute one
func (g *GitAdapter) resolve(path string) string {
	if filepath.IsAbs(path) || g.repoRoot == "" {
		return path
	}
	return paths.JoinRepoPath(g.repoRoot, path)
}

// executeGitCommand runs a git command with timeout and returns the trimmed output
func (g *GitAdapter) executeGitCommand(ctx context.Context, args ...string) (string, error) {
	output, err := g.executeGitCommandRaw(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// executeGitCommandRaw runs a git command with timeout and returns its
// output untouched
func (g *GitAdapter) executeGitCommandRaw(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.executable, args...)
	cmd.Dir = g.projectRoot

	g.logger.Debug("Executing git command",
		"args", strings.Join(args, " "),
		"timeout", g.queryTimeout.String(),
	)

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.New(errors.Timeout, "Git command timed out", err).WithDetails(map[string]interface{}{
				"args":    args,
				"timeout": g.queryTimeout.String(),
			})
		}

		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return "", errors.New(errors.GitUnavailable, "Git command failed", err).WithDetails(map[string]interface{}{
				"args":   args,
				"stderr": strings.TrimSpace(string(exitErr.Stderr)),
			})
		}

		return "", errors.New(errors.GitUnavailable, "Failed to execute git command", err).WithDetails(map[string]interface{}{
			"executable": g.executable,
		})
	}

	g.logger.Debug("Git command finished",
		"args", strings.Join(args, " "),
		"bytes", len(output),
		"duration", time.Since(start),
	)

	return string(output), nil
}

// executeGitCommandLines runs a git command and returns its non-blank lines
func (g *GitAdapter) executeGitCommandLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := g.executeGitCommand(ctx, args...)
	if err != nil {
		return nil, err
	}

	if output == "" {
		return []string{}, nil
	}

	lines := strings.Split(output, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result, nil
}
