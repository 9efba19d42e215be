package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/amber/internal/bundle"
	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/github"
	"github.com/dshills/amber/internal/output"
	"github.com/dshills/amber/internal/scan"
)

// Build flags
var (
	flagMaxFiles     int
	flagFormat       string
	flagOut          string
	flagTrack        bool
	flagSession      string
	flagRemote       string
	flagFromSnapshot bool
	flagNoRedact     bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble a deduplicated context bundle from the repository",
	Long: "Build scans the repository (git tracked listing when available,\n" +
		"filesystem walk otherwise), ranks files by importance, and assembles a\n" +
		"context bundle: inlined text, base64 media attachments, and cache hints.\n" +
		"With --track the sent units are recorded in the cache index.",
	Run: func(cmd *cobra.Command, args []string) {
		runBuild()
	},
}

func init() {
	buildCmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "Maximum number of files in the bundle")
	buildCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json)")
	buildCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	buildCmd.Flags().BoolVar(&flagTrack, "track", false, "Record sent units in the cache index")
	buildCmd.Flags().StringVar(&flagSession, "session", "", "Session id for tracking (generated if empty)")
	buildCmd.Flags().StringVar(&flagRemote, "remote", "", "Build from a remote GitHub repository (owner/repo[@ref])")
	buildCmd.Flags().BoolVar(&flagFromSnapshot, "from-snapshot", false, "Reuse the scan snapshot kept fresh by amber watch")
	buildCmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagMaxFiles > 0 {
		m["scan.maxFiles"] = strconv.Itoa(flagMaxFiles)
	}
	return m
}

func runBuild() {
	cfg, err := config.Load(flagDir, buildOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

	if flagNoRedact {
		cfg.Redact.Secrets = false
		fmt.Fprintln(os.Stderr, "WARNING: secret redaction is disabled")
	}

	ctx, cancel := cmdContext(cfg)
	defer cancel()

	entries, loader, err := collect(ctx, cfg, log)
	if err != nil {
		fail(err)
		return
	}

	builder := bundle.NewBuilder(loader, bundle.Options{
		MaxLines:      cfg.Bundle.MaxLines,
		TTLSeconds:    cfg.Bundle.TTLSeconds,
		RedactSecrets: cfg.Redact.Secrets,
		RedactPaths:   cfg.Redact.Paths,
	}, log)
	built, err := builder.Build(ctx, entries)
	if err != nil {
		fail(err)
		return
	}

	if err := output.To(flagOut, func(w io.Writer) error {
		return output.WriteBundle(w, cfg.Format, built)
	}); err != nil {
		fail(err)
		return
	}

	if !flagTrack {
		return
	}
	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()
	res, err := mgr.RecordSent(built.Units(), flagSession)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(os.Stderr, "Tracked %d units (%d cache hits) in session %s\n",
		len(res.Units), res.CacheHits, res.SessionID)
}

// collect produces the ranked entry list and the loader that can read each
// entry's bytes: the GitHub tree for --remote, the watch snapshot for
// --from-snapshot, the local scanner otherwise.
func collect(ctx context.Context, cfg config.Config, log *zap.Logger) ([]scan.FileEntry, bundle.Loader, error) {
	if flagRemote != "" {
		target, err := github.ParseTarget(flagRemote)
		if err != nil {
			return nil, nil, err
		}
		client, err := github.NewClient(contentPolicy(cfg), log)
		if err != nil {
			return nil, nil, err
		}
		tree, err := client.ListTree(ctx, target.Owner, target.Repo, target.Ref)
		if err != nil {
			return nil, nil, err
		}
		entries := scan.FromTracked(tree)
		scan.Rank(entries)
		entries = scan.Truncate(entries, cfg.Scan.MaxFiles)
		return entries, github.Loader{Client: client, Owner: target.Owner, Repo: target.Repo, Ref: target.Ref}, nil
	}

	if flagFromSnapshot {
		snap, err := scan.LoadSnapshot(config.SnapshotPath(flagDir))
		if err == nil {
			return scan.Truncate(snap.Files, cfg.Scan.MaxFiles), bundle.DirLoader{Root: flagDir}, nil
		}
		log.Warn("scan snapshot unavailable, scanning instead", zap.Error(err))
	}

	scanner := scan.New(flagDir, inspector(flagDir), log)
	entries, err := scanner.Scan(scan.Options{MaxFiles: cfg.Scan.MaxFiles, MaxDepth: cfg.Scan.MaxDepth})
	if err != nil {
		return nil, nil, err
	}
	return entries, bundle.DirLoader{Root: flagDir}, nil
}
