package storage

import (
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		for _, create := range []func(*sql.Tx) error{
			createRunsTable,
			createFilesTable,
			createLinesTable,
			createAuthorGroupsTable,
			createAllocationsTable,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	// A summary database is rebuilt on every run, so older layouts are
	// recreated rather than migrated
	db.logger.Info("Recreating database schema",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)
	return db.initializeSchema()
}

// getSchemaVersion gets the current schema version, 0 for a new database
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createRunsTable creates the runs table, one row per analyze invocation
func createRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			head_commit TEXT,
			default_risk REAL NOT NULL,
			risk_threshold REAL NOT NULL,
			creation_constant REAL NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			failures INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

func createFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			file_id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			path TEXT NOT NULL,
			commits INTEGER NOT NULL,
			UNIQUE(run_id, path)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}
	return nil
}

func createLinesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS lines (
			line_id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER NOT NULL REFERENCES files(file_id),
			line_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			UNIQUE(file_id, line_num)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lines table: %w", err)
	}
	return nil
}

// createAuthorGroupsTable creates author_groups; authors holds the canonical
// key of the set and label its display name
func createAuthorGroupsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS author_groups (
			group_id INTEGER PRIMARY KEY AUTOINCREMENT,
			authors TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL,
			size INTEGER NOT NULL,
			safe INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create author_groups table: %w", err)
	}
	return nil
}

func createAllocationsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS allocations (
			allocation_id INTEGER PRIMARY KEY AUTOINCREMENT,
			line_id INTEGER NOT NULL REFERENCES lines(line_id),
			group_id INTEGER NOT NULL REFERENCES author_groups(group_id),
			knowledge REAL NOT NULL CHECK(knowledge >= 0),
			risk REAL NOT NULL,
			orphaned REAL NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create allocations table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_allocations_line ON allocations(line_id)",
		"CREATE INDEX IF NOT EXISTS idx_allocations_group ON allocations(group_id)",
		"CREATE INDEX IF NOT EXISTS idx_lines_file ON lines(file_id)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
