package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/amber/internal/blobhash"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/scan"
)

var flagTrackSession string

var trackCmd = &cobra.Command{
	Use:   "track <paths...>",
	Short: "Record that the given files were sent to the model",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runTrack(args)
	},
}

func init() {
	trackCmd.Flags().StringVar(&flagTrackSession, "session", "", "Session id (generated if empty)")
}

func runTrack(paths []string) {
	cfg, err := config.Load(flagDir, nil)
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	entries := make([]scan.FileEntry, 0, len(paths))
	for _, p := range paths {
		cls := classify.Classify(p)
		if cls.Kind == classify.KindBinary {
			fmt.Fprintf(os.Stderr, "Skipping binary file: %s\n", p)
			continue
		}
		data, rerr := os.ReadFile(filepath.Join(flagDir, filepath.FromSlash(p)))
		if rerr != nil {
			fail(fmt.Errorf("reading %s: %w", p, rerr))
			return
		}
		entries = append(entries, scan.FileEntry{
			Path: filepath.ToSlash(p),
			Hash: blobhash.Sum(data),
			Kind: cls.Kind,
			Size: int64(len(data)),
		})
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to track.")
		return
	}

	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()

	res, err := mgr.RecordSent(entries, flagTrackSession)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(os.Stdout, "Session %s: %d units tracked, %d new, %d cache hits\n",
		res.SessionID, len(res.Units), res.NewUnits, res.CacheHits)
}
