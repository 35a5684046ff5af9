// Package report renders a run's summary store as JSON or YAML documents and
// records the run manifest.
package report

import "busrisk/internal/storage"

// ProjectSummary is the top-level document of a run
type ProjectSummary struct {
	RunID                string              `json:"runId" yaml:"runId"`
	Project              string              `json:"project" yaml:"project"`
	Totals               storage.Totals      `json:"totals" yaml:"totals"`
	Tree                 *DirNode            `json:"tree" yaml:"tree"`
	RiskiestFiles        []storage.FileRisk  `json:"riskiestFiles" yaml:"riskiestFiles"`
	RiskiestAuthorGroups []storage.GroupRisk `json:"riskiestAuthorGroups" yaml:"riskiestAuthorGroups"`
}

// DirNode is a directory with the summed statistics of everything below it
type DirNode struct {
	Name        string                   `json:"name" yaml:"name"`
	Path        string                   `json:"path" yaml:"path"`
	Stats       storage.Stats            `json:"stats" yaml:"stats"`
	AuthorRisks map[string]storage.Stats `json:"authorRisks" yaml:"authorRisks"`
	Dirs        []*DirNode               `json:"dirs" yaml:"dirs"`
	Files       []*FileNode              `json:"files" yaml:"files"`
}

// FileNode is one analysed file in the tree. FileID names its document
// under files/.
type FileNode struct {
	Name        string                   `json:"name" yaml:"name"`
	Path        string                   `json:"path" yaml:"path"`
	FileID      int64                    `json:"fileId" yaml:"fileId"`
	Commits     int                      `json:"commits" yaml:"commits"`
	Stats       storage.Stats            `json:"stats" yaml:"stats"`
	AuthorRisks map[string]storage.Stats `json:"authorRisks" yaml:"authorRisks"`
}

// Format is a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultTopN is how many riskiest files and author groups a summary lists
const DefaultTopN = 10
