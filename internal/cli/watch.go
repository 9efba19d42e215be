package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/scan"
	"github.com/dshills/amber/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the scan snapshot fresh by rescanning on file changes",
	Long: "Watch scans the repository once, writes the snapshot to .amber/scan.json,\n" +
		"then rescans after every debounced change so amber build --from-snapshot\n" +
		"can skip the scan. Stop with Ctrl-C.",
	Run: func(cmd *cobra.Command, args []string) {
		runWatch()
	},
}

func runWatch() {
	cfg, err := config.Load(flagDir, nil)
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	scanner := scan.New(flagDir, inspector(flagDir), log)
	w, err := watch.New(watch.Config{
		Root:         flagDir,
		SnapshotPath: config.SnapshotPath(flagDir),
		Scanner:      scanner,
		Options:      scan.Options{MaxFiles: cfg.Scan.MaxFiles, MaxDepth: cfg.Scan.MaxDepth},
		Log:          log,
	})
	if err != nil {
		fail(err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", flagDir)
	if err := w.Run(ctx); err != nil {
		fail(err)
	}
}
