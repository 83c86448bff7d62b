package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// step is one embedded schema revision. The filename carries the version
// (NNNN_name.sql); steps apply in version order, each in its own
// transaction, and every applied step leaves a row in schema_version.
type step struct {
	version int
	name    string
	stmts   string
}

func loadSteps() ([]step, error) {
	entries, err := fs.ReadDir(schemaFS, "sql")
	if err != nil {
		return nil, err
	}
	steps := make([]step, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := schemaFS.ReadFile("sql/" + entry.Name())
		if err != nil {
			return nil, err
		}
		var v int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("migration filename %s lacks a version prefix: %w", entry.Name(), err)
		}
		steps = append(steps, step{version: v, name: entry.Name(), stmts: string(data)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// Migrate brings the agenda schema up to date. The log table references
// agenda(id), so enforcement of foreign keys on the connection is checked
// up front rather than discovered later as orphaned rows.
func Migrate(db *sql.DB) error {
	if err := assertForeignKeys(db); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version(
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL DEFAULT (unixepoch('now','subsec')*1000)
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	steps, err := loadSteps()
	if err != nil {
		return err
	}
	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := apply(db, s); err != nil {
			return err
		}
	}
	return nil
}

// Version reports the highest applied schema version. Valid after Migrate.
func Version(db *sql.DB) (int, error) {
	return currentVersion(db)
}

func currentVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

// apply runs one step transactionally: its statements and its
// schema_version row commit together or not at all.
func apply(db *sql.DB, s step) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", s.name, err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(s.stmts); err != nil {
		return fmt.Errorf("migration %s: %w", s.name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_version(version, name) VALUES (?, ?)`, s.version, s.name); err != nil {
		return fmt.Errorf("migration %s: record version: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: commit: %w", s.name, err)
	}
	return nil
}

func assertForeignKeys(db *sql.DB) error {
	var on int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		return fmt.Errorf("check foreign_keys pragma: %w", err)
	}
	if on != 1 {
		return errors.New("foreign key enforcement is off; open the store with the foreign_keys pragma")
	}
	return nil
}
