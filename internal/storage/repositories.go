package storage

import (
	"database/sql"
	"fmt"
	"time"

	"busrisk/internal/analysis"
	"busrisk/internal/knowledge"
)

// Stats are summed allocations
type Stats struct {
	TotKnowledge float64 `json:"totKnowledge" yaml:"totKnowledge"`
	TotRisk      float64 `json:"totRisk" yaml:"totRisk"`
	TotOrphaned  float64 `json:"totOrphaned" yaml:"totOrphaned"`
}

// Run is one analyze invocation
type Run struct {
	ID               string
	Project          string
	HeadCommit       string
	DefaultRisk      float64
	Threshold        float64
	CreationConstant float64
	StartedAt        time.Time
	FinishedAt       *time.Time
	Failures         int
}

// Totals are project-wide figures of a run
type Totals struct {
	Files int   `json:"files" yaml:"files"`
	Stats Stats `json:"stats" yaml:"stats"`
}

// FileRisk is a file with its summed allocations
type FileRisk struct {
	FileID  int64  `json:"fileId" yaml:"fileId"`
	Path    string `json:"path" yaml:"path"`
	Commits int    `json:"commits" yaml:"commits"`
	Stats   Stats  `json:"stats" yaml:"stats"`
}

// GroupRisk is an author group with its summed allocations
type GroupRisk struct {
	Authors string `json:"authors" yaml:"authors"`
	Size    int    `json:"size" yaml:"size"`
	Stats   Stats  `json:"stats" yaml:"stats"`
}

// LineStats are the allocations of one line
type LineStats struct {
	Number      int              `json:"number" yaml:"number"`
	Text        string           `json:"text" yaml:"text"`
	Stats       Stats            `json:"stats" yaml:"stats"`
	AuthorRisks map[string]Stats `json:"authorRisks" yaml:"authorRisks"`
}

// FileSummary is everything stored about one file
type FileSummary struct {
	FileID      int64            `json:"fileId" yaml:"fileId"`
	Path        string           `json:"name" yaml:"name"`
	Stats       Stats            `json:"stats" yaml:"stats"`
	AuthorRisks map[string]Stats `json:"authorRisks" yaml:"authorRisks"`
	Lines       []LineStats      `json:"lines" yaml:"lines"`
}

const sumColumns = `COALESCE(SUM(a.knowledge), 0), COALESCE(SUM(a.risk), 0), COALESCE(SUM(a.orphaned), 0)`

// SummaryRepository stores condensed analysis results and answers the
// aggregate queries reports are built from
type SummaryRepository struct {
	db *DB
}

// NewSummaryRepository creates a new summary repository
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// CreateRun inserts a new run
func (r *SummaryRepository) CreateRun(run *Run) error {
	_, err := r.db.Exec(`
		INSERT INTO runs (
			run_id, project, head_commit, default_risk, risk_threshold,
			creation_constant, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Project,
		run.HeadCommit,
		run.DefaultRisk,
		run.Threshold,
		run.CreationConstant,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the end of a run
func (r *SummaryRepository) FinishRun(runID string, finishedAt time.Time, failures int) error {
	_, err := r.db.Exec(`UPDATE runs SET finished_at = ?, failures = ? WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), failures, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun returns a run by id, or nil if there is none
func (r *SummaryRepository) GetRun(runID string) (*Run, error) {
	return r.scanRun(r.db.QueryRow(`
		SELECT run_id, project, COALESCE(head_commit, ''), default_risk, risk_threshold,
			creation_constant, started_at, finished_at, failures
		FROM runs WHERE run_id = ?
	`, runID))
}

// LatestRun returns the most recently started run, or nil if there is none
func (r *SummaryRepository) LatestRun() (*Run, error) {
	return r.scanRun(r.db.QueryRow(`
		SELECT run_id, project, COALESCE(head_commit, ''), default_risk, risk_threshold,
			creation_constant, started_at, finished_at, failures
		FROM runs ORDER BY started_at DESC LIMIT 1
	`))
}

func (r *SummaryRepository) scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&run.ID, &run.Project, &run.HeadCommit, &run.DefaultRisk, &run.Threshold,
		&run.CreationConstant, &startedAt, &finishedAt, &run.Failures)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad finished_at %q: %w", finishedAt.String, err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// SaveFile stores one file's lines and allocations in a single transaction
// and returns the new file id
func (r *SummaryRepository) SaveFile(runID string, res *analysis.FileResult) (int64, error) {
	var fileID int64

	err := r.db.WithTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`INSERT INTO files (run_id, path, commits) VALUES (?, ?, ?)`,
			runID, res.Path, res.Commits)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", res.Path, err)
		}
		if fileID, err = result.LastInsertId(); err != nil {
			return err
		}

		lineStmt, err := tx.Prepare(`INSERT INTO lines (file_id, line_num, text) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer lineStmt.Close()

		allocStmt, err := tx.Prepare(`
			INSERT INTO allocations (line_id, group_id, knowledge, risk, orphaned)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer allocStmt.Close()

		groups := make(map[string]int64)
		for _, line := range res.Lines {
			lr, err := lineStmt.Exec(fileID, line.Number, line.Text)
			if err != nil {
				return fmt.Errorf("failed to insert line %d of %s: %w", line.Number, res.Path, err)
			}
			lineID, err := lr.LastInsertId()
			if err != nil {
				return err
			}

			for _, c := range line.Condensations {
				groupID, ok := groups[c.Authors.Key()]
				if !ok {
					if groupID, err = findOrCreateGroup(tx, c.Authors); err != nil {
						return err
					}
					groups[c.Authors.Key()] = groupID
				}
				if _, err := allocStmt.Exec(lineID, groupID, c.Knowledge, c.Risk, c.Orphaned); err != nil {
					return fmt.Errorf("failed to insert allocation: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return fileID, nil
}

func findOrCreateGroup(tx *sql.Tx, authors knowledge.AuthorSet) (int64, error) {
	safe, size := 0, len(authors)
	if authors.IsSafe() {
		safe, size = 1, 0
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO author_groups (authors, label, size, safe) VALUES (?, ?, ?, ?)`,
		authors.Key(), authors.String(), size, safe); err != nil {
		return 0, fmt.Errorf("failed to insert author group: %w", err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT group_id FROM author_groups WHERE authors = ?`, authors.Key()).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read author group: %w", err)
	}
	return id, nil
}

// Totals returns the file count and summed allocations of a run
func (r *SummaryRepository) Totals(runID string) (*Totals, error) {
	var t Totals
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM files WHERE run_id = ?`, runID).Scan(&t.Files); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	err := r.db.QueryRow(`
		SELECT `+sumColumns+`
		FROM allocations a
		JOIN lines l ON l.line_id = a.line_id
		JOIN files f ON f.file_id = l.file_id
		WHERE f.run_id = ?
	`, runID).Scan(&t.Stats.TotKnowledge, &t.Stats.TotRisk, &t.Stats.TotOrphaned)
	if err != nil {
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}
	return &t, nil
}

// RiskiestFiles returns the files with the highest summed risk
func (r *SummaryRepository) RiskiestFiles(runID string, limit int) ([]FileRisk, error) {
	return r.queryFiles(runID, "ORDER BY 5 DESC, f.path ASC LIMIT ?", limit)
}

// ProjectFiles returns every file of a run, ordered by path
func (r *SummaryRepository) ProjectFiles(runID string) ([]FileRisk, error) {
	return r.queryFiles(runID, "ORDER BY f.path ASC")
}

func (r *SummaryRepository) queryFiles(runID, order string, args ...interface{}) ([]FileRisk, error) {
	rows, err := r.db.Query(`
		SELECT f.file_id, f.path, f.commits, `+sumColumns+`
		FROM files f
		LEFT JOIN lines l ON l.file_id = f.file_id
		LEFT JOIN allocations a ON a.line_id = l.line_id
		WHERE f.run_id = ?
		GROUP BY f.file_id
		`+order, append([]interface{}{runID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []FileRisk
	for rows.Next() {
		var f FileRisk
		if err := rows.Scan(&f.FileID, &f.Path, &f.Commits, &f.Stats.TotKnowledge, &f.Stats.TotRisk, &f.Stats.TotOrphaned); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// RiskiestAuthorGroups returns the author groups with the highest summed risk
func (r *SummaryRepository) RiskiestAuthorGroups(runID string, limit int) ([]GroupRisk, error) {
	rows, err := r.db.Query(`
		SELECT g.label, g.size, `+sumColumns+`
		FROM allocations a
		JOIN author_groups g ON g.group_id = a.group_id
		JOIN lines l ON l.line_id = a.line_id
		JOIN files f ON f.file_id = l.file_id
		WHERE f.run_id = ?
		GROUP BY g.group_id
		ORDER BY 4 DESC, g.authors ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query author groups: %w", err)
	}
	defer rows.Close()

	var groups []GroupRisk
	for rows.Next() {
		var g GroupRisk
		if err := rows.Scan(&g.Authors, &g.Size, &g.Stats.TotKnowledge, &g.Stats.TotRisk, &g.Stats.TotOrphaned); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AuthorGroupStats returns the summed allocations per author group over a run
func (r *SummaryRepository) AuthorGroupStats(runID string) (map[string]Stats, error) {
	return r.groupStats(`
		JOIN files f ON f.file_id = l.file_id
		WHERE f.run_id = ?
	`, runID)
}

// FileAuthorGroupStats returns the summed allocations per author group of a file
func (r *SummaryRepository) FileAuthorGroupStats(fileID int64) (map[string]Stats, error) {
	return r.groupStats(`WHERE l.file_id = ?`, fileID)
}

func (r *SummaryRepository) groupStats(filter string, arg interface{}) (map[string]Stats, error) {
	rows, err := r.db.Query(`
		SELECT g.label, `+sumColumns+`
		FROM allocations a
		JOIN author_groups g ON g.group_id = a.group_id
		JOIN lines l ON l.line_id = a.line_id
		`+filter+`
		GROUP BY g.group_id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query author group stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Stats)
	for rows.Next() {
		var label string
		var s Stats
		if err := rows.Scan(&label, &s.TotKnowledge, &s.TotRisk, &s.TotOrphaned); err != nil {
			return nil, err
		}
		out[label] = s
	}
	return out, rows.Err()
}

// FileLines returns a file's line texts in order
func (r *SummaryRepository) FileLines(fileID int64) ([]string, error) {
	rows, err := r.db.Query(`SELECT text FROM lines WHERE file_id = ? ORDER BY line_num`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		lines = append(lines, text)
	}
	return lines, rows.Err()
}

// FileSummary returns per-file, per-line and per-author-group statistics,
// or nil if the file does not exist
func (r *SummaryRepository) FileSummary(fileID int64) (*FileSummary, error) {
	fs := &FileSummary{FileID: fileID}

	err := r.db.QueryRow(`SELECT path FROM files WHERE file_id = ?`, fileID).Scan(&fs.Path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if fs.AuthorRisks, err = r.FileAuthorGroupStats(fileID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT l.line_num, l.text, COALESCE(g.label, ''), COALESCE(a.knowledge, 0), COALESCE(a.risk, 0), COALESCE(a.orphaned, 0)
		FROM lines l
		LEFT JOIN allocations a ON a.line_id = l.line_id
		LEFT JOIN author_groups g ON g.group_id = a.group_id
		WHERE l.file_id = ?
		ORDER BY l.line_num, g.authors
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line allocations: %w", err)
	}
	defer rows.Close()

	fs.Lines = []LineStats{}
	for rows.Next() {
		var num int
		var text, label string
		var s Stats
		if err := rows.Scan(&num, &text, &label, &s.TotKnowledge, &s.TotRisk, &s.TotOrphaned); err != nil {
			return nil, err
		}

		if len(fs.Lines) == 0 || fs.Lines[len(fs.Lines)-1].Number != num {
			fs.Lines = append(fs.Lines, LineStats{Number: num, Text: text, AuthorRisks: map[string]Stats{}})
		}
		line := &fs.Lines[len(fs.Lines)-1]
		if label != "" {
			line.AuthorRisks[label] = s
			line.Stats.add(s)
			fs.Stats.add(s)
		}
	}
	return fs, rows.Err()
}

func (s *Stats) add(o Stats) {
	s.TotKnowledge += o.TotKnowledge
	s.TotRisk += o.TotRisk
	s.TotOrphaned += o.TotOrphaned
}
