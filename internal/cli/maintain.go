package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/gitctx"
	"github.com/dshills/amber/internal/output"
	"github.com/dshills/amber/internal/scan"
	"github.com/dshills/amber/internal/stale"
)

// Maintenance flags
var (
	flagMaxAgeDays    int
	flagDryRun        bool
	flagMaintFormat   string
	flagMaintOut      string
	flagDeleteIDs     []string
	flagDeletePattern string
	flagDeleteReason  string
	flagSessionDays   int
	flagRetentionDays int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Classify stale cache records and soft-mark them",
	Long: "Cleanup compares the index against a fresh repository scan and against\n" +
		"version history, classifies records as outdated, unused, or historical\n" +
		"(first match wins), and sets soft cleanup markers. Records are never\n" +
		"physically removed; see amber compact.",
	Run: func(cmd *cobra.Command, args []string) {
		runCleanup()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active (non-cleaned) cache records",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Soft-delete cache records by id prefix or path pattern",
	Run: func(cmd *cobra.Command, args []string) {
		runDelete()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage session history",
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Purge sessions older than the retention window",
	Run: func(cmd *cobra.Command, args []string) {
		runSessionsClean()
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Physically remove soft-marked records past the retention window",
	Run: func(cmd *cobra.Command, args []string) {
		runCompact()
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&flagMaxAgeDays, "max-age", 0, "Staleness horizon in days")
	cleanupCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report candidates without marking them")
	cleanupCmd.Flags().StringVar(&flagMaintFormat, "format", "", "Output format (text, json, markdown)")
	cleanupCmd.Flags().StringVar(&flagMaintOut, "out", "", "Output file path (default: stdout)")

	statsCmd.Flags().StringVar(&flagMaintFormat, "format", "", "Output format (text, json)")
	listCmd.Flags().StringVar(&flagMaintFormat, "format", "", "Output format (text, json)")

	deleteCmd.Flags().StringSliceVar(&flagDeleteIDs, "ids", nil, "Hash prefixes to delete (comma-separated)")
	deleteCmd.Flags().StringVar(&flagDeletePattern, "pattern", "", "Path substring to delete")
	deleteCmd.Flags().StringVar(&flagDeleteReason, "reason", "manual delete", "Reason recorded on deleted records")

	sessionsCleanCmd.Flags().IntVar(&flagSessionDays, "days", 30, "Purge sessions older than this many days")
	sessionsCmd.AddCommand(sessionsCleanCmd)

	compactCmd.Flags().IntVar(&flagRetentionDays, "retention", 0, "Remove soft-marked records older than this many days")
}

func maintOverrides() map[string]string {
	m := make(map[string]string)
	if flagMaintFormat != "" {
		m["format"] = flagMaintFormat
	}
	if flagMaxAgeDays > 0 {
		m["cache.maxAgeDays"] = fmt.Sprintf("%d", flagMaxAgeDays)
	}
	if flagRetentionDays > 0 {
		m["cache.retentionDays"] = fmt.Sprintf("%d", flagRetentionDays)
	}
	return m
}

func runCleanup() {
	cfg, err := config.Load(flagDir, maintOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	idx, err := mgr.Snapshot()
	if err != nil {
		fail(err)
		return
	}

	detector := stale.NewDetector(cfg.MaxAge())

	// Fresh tree snapshot; an unscannable tree degrades to an empty set so
	// the age rules still run.
	var current map[string]bool
	scanner := scan.New(flagDir, inspector(flagDir), log)
	entries, serr := scanner.Scan(scan.Options{MaxDepth: cfg.Scan.MaxDepth})
	if serr != nil {
		log.Warn("scan failed, treating tree as empty", zap.Error(serr))
	} else {
		current = scan.Hashes(entries)
	}

	// History feeds the historical rule; unavailable history skips it.
	var commits []gitctx.Commit
	if insp := inspector(flagDir); insp != nil {
		commits, err = insp.HistoryBefore(detector.Cutoff())
		if err != nil {
			log.Debug("history walk unavailable", zap.Error(err))
			commits = nil
		}
	}

	candidates := detector.Detect(idx, current, commits)
	report, err := stale.NewMarker(mgr, log).Mark(candidates, detector.MaxAge(), flagDryRun)
	if err != nil {
		fail(err)
		return
	}

	if err := output.To(flagMaintOut, func(w io.Writer) error {
		return output.WriteCleanup(w, cfg.Format, report)
	}); err != nil {
		fail(err)
	}
}

func runStats() {
	cfg, err := config.Load(flagDir, maintOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	report, err := mgr.Report()
	if err != nil {
		fail(err)
		return
	}
	if err := output.WriteStats(os.Stdout, cfg.Format, &report); err != nil {
		fail(err)
	}
}

func runList() {
	cfg, err := config.Load(flagDir, maintOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	entries, err := mgr.List()
	if err != nil {
		fail(err)
		return
	}
	if err := output.WriteList(os.Stdout, cfg.Format, entries); err != nil {
		fail(err)
	}
}

func runDelete() {
	if len(flagDeleteIDs) == 0 && flagDeletePattern == "" {
		fmt.Fprintln(os.Stderr, "Error: delete requires --ids or --pattern")
		exitCode = ExitUsageError
		return
	}
	cfg, err := config.Load(flagDir, nil)
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	marked := 0
	if len(flagDeleteIDs) > 0 {
		n, derr := mgr.DeleteByIDs(flagDeleteIDs, flagDeleteReason)
		if derr != nil {
			fail(derr)
			return
		}
		marked += n
	}
	if flagDeletePattern != "" {
		n, derr := mgr.DeleteByPattern(flagDeletePattern, flagDeleteReason)
		if derr != nil {
			fail(derr)
			return
		}
		marked += n
	}
	fmt.Fprintf(os.Stdout, "Soft-deleted %d records.\n", marked)
}

func runSessionsClean() {
	cfg, err := config.Load(flagDir, nil)
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	removed, err := mgr.CleanSessions(flagSessionDays)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(os.Stdout, "Purged %d sessions older than %d days.\n", removed, flagSessionDays)
}

func runCompact() {
	cfg, err := config.Load(flagDir, maintOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	retention := cfg.Retention()
	removed, err := mgr.Compact(retention)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(os.Stdout, "Removed %d records soft-marked more than %d days ago.\n",
		removed, int(retention/(24*time.Hour)))
}
