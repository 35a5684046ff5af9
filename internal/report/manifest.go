package report

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"busrisk/internal/analysis"
	"busrisk/internal/errors"
	"busrisk/internal/version"
)

// Manifest describes one analyze run. It is written as run.toml next to
// the rendered documents.
type Manifest struct {
	RunID      string     `toml:"run_id"`
	Tool       string     `toml:"tool"`
	Project    string     `toml:"project"`
	HeadCommit string     `toml:"head_commit,omitempty"`
	StartedAt  time.Time  `toml:"started_at"`
	FinishedAt time.Time  `toml:"finished_at"`
	Parameters Parameters `toml:"parameters"`
	Files      FileCounts `toml:"files"`
	Failures   []Failure  `toml:"failures,omitempty"`
}

// Parameters are the knobs a run was made with
type Parameters struct {
	DefaultRisk      float64  `toml:"default_risk"`
	RiskThreshold    float64  `toml:"risk_threshold"`
	CreationConstant float64  `toml:"creation_constant"`
	Workers          int      `toml:"workers"`
	Interesting      []string `toml:"interesting"`
	NotInteresting   []string `toml:"not_interesting"`
	CaseSensitive    bool     `toml:"case_sensitive"`
	Departed         []string `toml:"departed,omitempty"`
}

// FileCounts track files through discovery and analysis
type FileCounts struct {
	Tracked  int `toml:"tracked"`
	Selected int `toml:"selected"`
	Analyzed int `toml:"analyzed"`
	Failed   int `toml:"failed"`
}

// Failure is a file that could not be analysed
type Failure struct {
	Path    string `toml:"path"`
	Commit  string `toml:"commit,omitempty"`
	Code    string `toml:"code"`
	Message string `toml:"message"`
}

// NewManifest starts a manifest for a run beginning now
func NewManifest(project string) *Manifest {
	return &Manifest{
		RunID:     uuid.New().String(),
		Tool:      version.UserAgent(),
		Project:   project,
		StartedAt: time.Now().UTC(),
	}
}

// Finish records the run outcome
func (m *Manifest) Finish(result *analysis.RunResult) {
	m.FinishedAt = time.Now().UTC()
	if result == nil {
		return
	}
	m.Files.Analyzed = len(result.Files)
	m.Files.Failed = len(result.Failures)
	m.Failures = FailuresFrom(result.Failures)
}

// FailuresFrom converts per-file errors into manifest entries
func FailuresFrom(fes []*analysis.FileError) []Failure {
	out := make([]Failure, 0, len(fes))
	for _, fe := range fes {
		out = append(out, Failure{
			Path:    fe.Path,
			Commit:  fe.Commit,
			Code:    string(fe.Code()),
			Message: fe.Err.Error(),
		})
	}
	return out
}

// WriteManifest writes m to path
func WriteManifest(path string, m *Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return f.Close()
}

// ReadManifest reads a manifest written by WriteManifest
func ReadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errors.New(errors.ParseError, "failed to parse manifest", err)
	}
	return &m, nil
}
