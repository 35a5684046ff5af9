package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"busrisk/internal/errors"
	"busrisk/internal/paths"
	"busrisk/internal/slogutil"
	"busrisk/internal/storage"
)

// SummaryReader is the part of the summary store a report is built from
type SummaryReader interface {
	Totals(runID string) (*storage.Totals, error)
	ProjectFiles(runID string) ([]storage.FileRisk, error)
	RiskiestFiles(runID string, limit int) ([]storage.FileRisk, error)
	RiskiestAuthorGroups(runID string, limit int) ([]storage.GroupRisk, error)
	FileAuthorGroupStats(fileID int64) (map[string]storage.Stats, error)
	FileSummary(fileID int64) (*storage.FileSummary, error)
}

// Options configures a Renderer
type Options struct {
	Format   Format
	Compress bool
	// TopN bounds the riskiest lists; zero means DefaultTopN
	TopN int
}

// Renderer writes summary and per-file documents into an output directory
type Renderer struct {
	outDir string
	opts   Options
	logger *slog.Logger
}

// NewRenderer creates a renderer writing below outDir
func NewRenderer(outDir string, opts Options, logger *slog.Logger) (*Renderer, error) {
	switch opts.Format {
	case "":
		opts.Format = FormatJSON
	case FormatJSON, FormatYAML:
	default:
		return nil, errors.Newf(errors.ConfigInvalid, "unknown output format %q", opts.Format)
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Renderer{outDir: outDir, opts: opts, logger: slogutil.OrDiscard(logger)}, nil
}

// Extension returns the file suffix of rendered documents, e.g. ".json.gz"
func (r *Renderer) Extension() string {
	ext := "." + string(r.opts.Format)
	if r.opts.Compress {
		ext += ".gz"
	}
	return ext
}

// SummaryPath returns where the project summary is written
func (r *Renderer) SummaryPath() string {
	return filepath.Join(r.outDir, "summary"+r.Extension())
}

// FilePath returns where the document of one file is written
func (r *Renderer) FilePath(fileID int64) string {
	return paths.FileDocumentPath(r.outDir, fileID, r.Extension())
}

// Render writes the project summary and one document per file
func (r *Renderer) Render(src SummaryReader, runID, project string) (*ProjectSummary, error) {
	summary, files, err := r.BuildSummary(src, runID, project)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(paths.FilesDir(r.outDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	for _, f := range files {
		fs, err := src.FileSummary(f.FileID)
		if err != nil {
			return nil, err
		}
		if fs == nil {
			return nil, errors.Newf(errors.InternalError, "file %d vanished from the summary store", f.FileID)
		}
		if err := r.writeDocument(r.FilePath(f.FileID), fs); err != nil {
			return nil, err
		}
	}
	if err := r.writeDocument(r.SummaryPath(), summary); err != nil {
		return nil, err
	}

	r.logger.Info("Rendered report",
		"files", len(files),
		"summary", r.SummaryPath(),
	)
	return summary, nil
}

// BuildSummary assembles the project summary without writing it. It also
// returns the files of the run ordered by path.
func (r *Renderer) BuildSummary(src SummaryReader, runID, project string) (*ProjectSummary, []storage.FileRisk, error) {
	totals, err := src.Totals(runID)
	if err != nil {
		return nil, nil, err
	}
	files, err := src.ProjectFiles(runID)
	if err != nil {
		return nil, nil, err
	}

	tree := newTreeBuilder()
	for _, f := range files {
		authorRisks, err := src.FileAuthorGroupStats(f.FileID)
		if err != nil {
			return nil, nil, err
		}
		tree.add(&FileNode{
			Name:        filepath.Base(f.Path),
			Path:        f.Path,
			FileID:      f.FileID,
			Commits:     f.Commits,
			Stats:       f.Stats,
			AuthorRisks: authorRisks,
		})
	}

	riskiestFiles, err := src.RiskiestFiles(runID, r.opts.TopN)
	if err != nil {
		return nil, nil, err
	}
	riskiestGroups, err := src.RiskiestAuthorGroups(runID, r.opts.TopN)
	if err != nil {
		return nil, nil, err
	}

	summary := &ProjectSummary{
		RunID:                runID,
		Project:              project,
		Totals:               *totals,
		Tree:                 tree.build(),
		RiskiestFiles:        nonNil(riskiestFiles),
		RiskiestAuthorGroups: nonNil(riskiestGroups),
	}
	summary.Tree.Name = filepath.Base(project)
	return summary, files, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeDocument encodes v in the renderer's format, gzipped when asked
func (r *Renderer) writeDocument(path string, v interface{}) error {
	data, err := encode(r.opts.Format, v)
	if err != nil {
		return errors.New(errors.InternalError, "failed to encode "+filepath.Base(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var zw *gzip.Writer
	if r.opts.Compress {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to finish %s: %w", path, err)
		}
	}
	return f.Close()
}

func encode(format Format, v interface{}) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	// line texts are source code, keep <, > and & readable
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadDocument decodes a rendered document, choosing the codec from the
// file name (.json, .yaml, optionally followed by .gz)
func ReadDocument(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := path
	var rd io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return errors.New(errors.ParseError, "corrupt gzip document", err)
		}
		defer zr.Close()
		rd = zr
		name = strings.TrimSuffix(name, ".gz")
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch filepath.Ext(name) {
	case ".json":
		err = json.Unmarshal(data, v)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		return errors.Newf(errors.ConfigInvalid, "unknown document type %q", filepath.Base(path))
	}
	if err != nil {
		return errors.New(errors.ParseError, "undecodable document "+filepath.Base(path), err)
	}
	return nil
}
