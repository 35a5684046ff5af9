package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"busrisk/internal/errors"
)

// Output directory layout
const (
	SummaryDBName = "summary.db"
	FilesDirName  = "files"
	ManifestName  = "run.toml"
	LogName       = "run.log"
	GitignoreName = ".gitignore"
)

// SummaryDBPath returns the summary database path inside outDir
func SummaryDBPath(outDir string) string {
	return filepath.Join(outDir, SummaryDBName)
}

// ManifestPath returns the run manifest path inside outDir
func ManifestPath(outDir string) string {
	return filepath.Join(outDir, ManifestName)
}

// LogPath returns the run log path inside outDir
func LogPath(outDir string) string {
	return filepath.Join(outDir, LogName)
}

// FilesDir returns the directory holding per-file documents
func FilesDir(outDir string) string {
	return filepath.Join(outDir, FilesDirName)
}

// FileDocumentPath returns the path of the document for one file id,
// e.g. files/12.json
func FileDocumentPath(outDir string, fileID int64, ext string) string {
	return filepath.Join(FilesDir(outDir), strconv.FormatInt(fileID, 10)+ext)
}

// PrepareOutputDir replaces outDir with an empty layout. It refuses to
// remove a directory that contains projectRoot.
func PrepareOutputDir(outDir, projectRoot string) error {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot resolve output directory", err)
	}
	if projectRoot != "" {
		absProject, err := filepath.Abs(projectRoot)
		if err != nil {
			return errors.New(errors.ConfigInvalid, "cannot resolve project root", err)
		}
		if IsWithin(absProject, absOut) {
			return errors.Newf(errors.ConfigInvalid, "output directory %s contains the project root", outDir).
				WithDetails(map[string]interface{}{"output": absOut, "project": absProject})
		}
	}

	if err := os.RemoveAll(absOut); err != nil {
		return fmt.Errorf("failed to remove output directory: %w", err)
	}
	if err := os.MkdirAll(FilesDir(absOut), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// Keep analysis output out of the analysed repository
	if err := os.WriteFile(filepath.Join(absOut, GitignoreName), []byte("*\n"), 0644); err != nil {
		return fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return nil
}
