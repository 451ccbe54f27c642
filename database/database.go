package database

import (
	"database/sql"
	"fmt"
	"time"

	"imagededup/types"

	_ "github.com/mattn/go-sqlite3"
)

// RunInfo describes one invocation of the tool
type RunInfo struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Threshold  int
	Mode       string
	Images     int
	Groups     int
}

// InitDatabase opens the report database and creates its tables
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		threshold INTEGER,
		mode TEXT,
		images INTEGER DEFAULT 0,
		"groups" INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		destination TEXT,
		error TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create report tables: %w", err)
	}

	return db, nil
}

// StoreRun records the start of a run
func StoreRun(db *sql.DB, run RunInfo) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, root, started_at, threshold, mode)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.StartedAt.Format(time.RFC3339), run.Threshold, run.Mode)
	if err != nil {
		return fmt.Errorf("cannot store run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the end of a run and its totals
func FinishRun(db *sql.DB, run RunInfo) error {
	res, err := db.Exec(`
		UPDATE runs SET finished_at = ?, images = ?, "groups" = ? WHERE id = ?`,
		run.FinishedAt.Format(time.RFC3339), run.Images, run.Groups, run.ID)
	if err != nil {
		return fmt.Errorf("cannot finish run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cannot finish run %s: no such run", run.ID)
	}
	return nil
}

// StoreActions writes all action records of a run in one transaction
func StoreActions(db *sql.DB, runID string, records []types.ActionRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO actions (run_id, path, kind, destination, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("cannot prepare action insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		var errText sql.NullString
		if record.Err != nil {
			errText = sql.NullString{String: record.Err.Error(), Valid: true}
		}
		at := record.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(runID, record.Path, string(record.Kind), record.Destination, errText, at.Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return fmt.Errorf("cannot insert action for %s: %w", record.Path, err)
		}
	}

	return tx.Commit()
}

// RunStats contains the stored totals of one run
type RunStats struct {
	Images  int
	Groups  int
	Actions int
	ByKind  map[types.ActionKind]int
}

// GetRunStats retrieves statistics about a stored run
func GetRunStats(db *sql.DB, runID string) (*RunStats, error) {
	stats := RunStats{ByKind: make(map[types.ActionKind]int)}

	err := db.QueryRow(`SELECT images, "groups" FROM runs WHERE id = ?`, runID).Scan(&stats.Images, &stats.Groups)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	rows, err := db.Query("SELECT kind, COUNT(*) FROM actions WHERE run_id = ? GROUP BY kind", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.ByKind[types.ActionKind(kind)] = count
		stats.Actions += count
	}
	return &stats, rows.Err()
}

// Report writes a whole run into the database at dbPath
func Report(dbPath string, run RunInfo, records []types.ActionRecord) error {
	db, err := InitDatabase(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := StoreRun(db, run); err != nil {
		return err
	}
	if err := StoreActions(db, run.ID, records); err != nil {
		return err
	}
	return FinishRun(db, run)
}
