package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, timestamp, action, job, path, file_name, object_type, size,
	       mod_time, error_message
	FROM deletions
	`

// GetRecent returns the N most recent events
func (d *HistoryDB) GetRecent(limit int) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetByDateRange returns events within a time range
func (d *HistoryDB) GetByDateRange(start, end time.Time) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	WHERE timestamp BETWEEN ? AND ?
	ORDER BY timestamp DESC, id DESC
	`, start.UTC(), end.UTC())
}

// GetByAction returns events filtered by action type
func (d *HistoryDB) GetByAction(action string) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`, action)
}

// GetByJob returns the N most recent events of one job
func (d *HistoryDB) GetByJob(job string, limit int) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	WHERE job = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, job, limit)
}

// GetByPath returns events whose path matches a LIKE pattern
func (d *HistoryDB) GetByPath(pathPattern string) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetLargest returns the N largest deleted files
func (d *HistoryDB) GetLargest(limit int) ([]Record, error) {
	return d.queryRecords(selectColumns+`
	WHERE action = 'DELETE'
	ORDER BY size DESC
	LIMIT ?
	`, limit)
}

// GetTotalSpaceFreed returns bytes freed by deletions in a time range
func (d *HistoryDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM deletions
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetCountByAction returns count of events grouped by action
func (d *HistoryDB) GetCountByAction() (map[string]int, error) {
	return d.countBy(`
	SELECT action, COUNT(*)
	FROM deletions
	GROUP BY action
	`)
}

// GetCountByJob returns count of deletions grouped by job
func (d *HistoryDB) GetCountByJob() (map[string]int, error) {
	return d.countBy(`
	SELECT job, COUNT(*)
	FROM deletions
	WHERE action = 'DELETE'
	GROUP BY job
	`)
}

// Stats holds aggregated statistics
type Stats struct {
	TotalDeletions  int            `json:"total_deletions"`
	TotalErrors     int            `json:"total_errors"`
	DirsRemoved     int            `json:"dirs_removed"`
	DryRunMatches   int            `json:"dry_run_matches"`
	TotalSpaceFreed int64          `json:"total_space_freed"`
	ByAction        map[string]int `json:"by_action"`
	ByJob           map[string]int `json:"by_job"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
}

// GetStats returns statistics for the last N days
func (d *HistoryDB) GetStats(days int) (*Stats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &Stats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action IN ('ERROR', 'RMDIR_ERROR') THEN 1 END),
			COUNT(CASE WHEN action = 'RMDIR' THEN 1 END),
			COUNT(CASE WHEN action = 'MATCH' THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since.UTC()).Scan(&stats.TotalDeletions, &stats.TotalErrors, &stats.DirsRemoved, &stats.DryRunMatches)
	if err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetCountByAction()
	if err != nil {
		return nil, err
	}

	stats.ByJob, err = d.GetCountByJob()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// PurgeBefore removes events recorded before t
func (d *HistoryDB) PurgeBefore(t time.Time) (int64, error) {
	result, err := d.db.Exec(`DELETE FROM deletions WHERE timestamp < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *HistoryDB) countBy(query string, args ...interface{}) (map[string]int, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// queryRecords executes a select over selectColumns and scans the rows
func (d *HistoryDB) queryRecords(query string, args ...interface{}) ([]Record, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var modTime sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.Job, &r.Path, &r.FileName,
			&r.ObjectType, &r.Size, &modTime, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		if modTime.Valid {
			r.ModTime = modTime.Time
		}
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
