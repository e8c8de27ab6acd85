package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Actions recorded in the history
const (
	ActionDelete     = "DELETE"
	ActionError      = "ERROR"
	ActionRmdir      = "RMDIR"
	ActionRmdirError = "RMDIR_ERROR"
	ActionMatch      = "MATCH" // dry run: would have been deleted
)

// HistoryDB manages the SQLite database of sweep outcomes
type HistoryDB struct {
	db *sql.DB
}

// Event is one outcome to record
type Event struct {
	Timestamp  time.Time // zero means now
	Action     string
	Job        string
	Path       string
	ObjectType string // "file" or "directory"
	Size       int64
	ModTime    time.Time // zero for directories
	Error      string
}

// Record is one stored row
type Record struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	Job          string    `json:"job"`
	Path         string    `json:"path"`
	FileName     string    `json:"file_name"`
	ObjectType   string    `json:"object_type"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"mod_time,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewHistoryDB opens (creating if needed) the database and its schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto parses DATETIME columns back into time.Time
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exec instead of Ping so the file is created right away
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return hdb, nil
}

func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		job TEXT NOT NULL,
		path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		object_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time DATETIME,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_job ON deletions(job);
	CREATE INDEX IF NOT EXISTS idx_path ON deletions(path);
	CREATE INDEX IF NOT EXISTS idx_size ON deletions(size);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

const insertEvent = `
	INSERT INTO deletions (
		timestamp, action, job, path, file_name, object_type, size, mod_time, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

// eventArgs normalizes times to UTC so stored strings sort chronologically
func eventArgs(e Event) []interface{} {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var modTime interface{}
	if !e.ModTime.IsZero() {
		modTime = e.ModTime.UTC()
	}
	var errMsg interface{}
	if e.Error != "" {
		errMsg = e.Error
	}
	return []interface{}{
		ts.UTC(), e.Action, e.Job, e.Path, filepath.Base(e.Path),
		e.ObjectType, e.Size, modTime, errMsg,
	}
}

// Record inserts a single event
func (d *HistoryDB) Record(e Event) error {
	_, err := d.db.Exec(insertEvent, eventArgs(e)...)
	return err
}

// RecordBatch inserts events in one transaction
func (d *HistoryDB) RecordBatch(events []Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(insertEvent)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err = stmt.Exec(eventArgs(e)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
