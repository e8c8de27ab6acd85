package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"agesweep/internal/config"
	"agesweep/internal/database"
	"agesweep/internal/exitcodes"
	"agesweep/internal/logging"
)

func main() {
	dbPath := flag.String("db", "/var/lib/agesweep/history.db", "Path to history database")
	recent := flag.IntP("recent", "r", 0, "Show N most recent events")
	stats := flag.BoolP("stats", "s", false, "Show statistics")
	job := flag.StringP("job", "j", "", "Show the most recent events of a job (limit from --recent, default 50)")
	action := flag.StringP("action", "a", "", "Filter by action (DELETE, ERROR, RMDIR, RMDIR_ERROR, MATCH)")
	pathPattern := flag.StringP("path", "p", "", "Filter by path pattern (SQL LIKE syntax)")
	largest := flag.Int("largest", 0, "Show N largest deletions")
	days := flag.Int("days", 30, "Number of days for statistics")
	purgeDays := flag.Int("purge-days", 0, "Delete history older than N days, then vacuum")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	logger, closer, err := logging.Setup(config.LoggingCfg{Level: "warn", Format: "text"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(exitcodes.RuntimeError)
	}
	defer closer.Close()

	db, err := database.NewHistoryDB(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(exitcodes.RuntimeError)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	q := query{db: db, json: *jsonOutput}

	var runErr error
	switch {
	case *purgeDays > 0:
		runErr = q.purge(*purgeDays)
	case *stats:
		runErr = q.stats(*days)
	case *job != "":
		limit := *recent
		if limit <= 0 {
			limit = 50
		}
		runErr = q.records(fmt.Sprintf("Most recent events of job %s:", *job), func() ([]database.Record, error) {
			return db.GetByJob(*job, limit)
		})
	case *recent > 0:
		runErr = q.records("", func() ([]database.Record, error) { return db.GetRecent(*recent) })
	case *action != "":
		runErr = q.records("Records with action: "+*action, func() ([]database.Record, error) { return db.GetByAction(*action) })
	case *pathPattern != "":
		runErr = q.records("Records matching path pattern: "+*pathPattern, func() ([]database.Record, error) { return db.GetByPath(*pathPattern) })
	case *largest > 0:
		runErr = q.records(fmt.Sprintf("Largest %d deletions:", *largest), func() ([]database.Record, error) { return db.GetLargest(*largest) })
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  agesweep-query --recent 10           # Show 10 most recent events")
		fmt.Println("  agesweep-query --stats --days 7      # Show statistics for the last week")
		fmt.Println("  agesweep-query --job exports        # Show recent events of one job")
		fmt.Println("  agesweep-query --action ERROR        # Show only failures")
		fmt.Println("  agesweep-query --path '/var/log/%'   # Show events under /var/log")
		fmt.Println("  agesweep-query --largest 10          # Show 10 largest deletions")
		fmt.Println("  agesweep-query --purge-days 90       # Drop history older than 90 days")
		os.Exit(exitcodes.InvalidConfig)
	}

	if runErr != nil {
		logger.Error("query failed", "error", runErr)
		os.Exit(exitcodes.RuntimeError)
	}
}

type query struct {
	db   *database.HistoryDB
	json bool
}

func (q query) records(title string, fetch func() ([]database.Record, error)) error {
	records, err := fetch()
	if err != nil {
		return err
	}
	if q.json {
		return printJSON(records)
	}
	if title != "" {
		fmt.Printf("%s\n\n", title)
	}
	printRecords(records)
	return nil
}

func (q query) stats(days int) error {
	stats, err := q.db.GetStats(days)
	if err != nil {
		return err
	}
	if q.json {
		return printJSON(stats)
	}

	fmt.Printf("Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Files Deleted:    %d\n", stats.TotalDeletions)
	fmt.Printf("Dirs Removed:     %d\n", stats.DirsRemoved)
	fmt.Printf("Errors:           %d\n", stats.TotalErrors)
	fmt.Printf("Dry-run Matches:  %d\n", stats.DryRunMatches)
	fmt.Printf("Space Freed:      %s\n\n", formatBytes(stats.TotalSpaceFreed))

	printCounts("By Action (all time):", stats.ByAction)
	printCounts("Deletions by Job (all time):", stats.ByJob)
	return nil
}

func (q query) purge(days int) error {
	before := time.Now().AddDate(0, 0, -days)
	n, err := q.db.PurgeBefore(before)
	if err != nil {
		return err
	}
	if err := q.db.Vacuum(); err != nil {
		return err
	}
	if q.json {
		return printJSON(map[string]int64{"purged": n})
	}
	fmt.Printf("Purged %d records older than %s\n", n, before.Format("2006-01-02"))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title)
	for _, k := range keys {
		fmt.Printf("  %-15s %d\n", k, counts[k])
	}
	fmt.Println()
}

func printRecords(records []database.Record) {
	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tJob\tSize\tPath\tError")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t---\t----\t----\t-----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Action, r.Job,
			formatBytes(r.Size), r.Path, r.ErrorMessage)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
