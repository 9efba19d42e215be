package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/fetch"
	"github.com/dshills/amber/internal/gitctx"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

// Global flags
var (
	flagDir     string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "amber",
	Short: "Content-addressable context cache for LLM code review",
	Long: "Amber assembles a bounded, deduplicated snapshot of repository content,\n" +
		"tracks which bytes a model has already seen, and reclaims stale cache\n" +
		"records. Content identity is the git blob hash, so tracked files never\n" +
		"need re-hashing.",
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "Repository root to operate on")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print amber version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "amber version %s\n", version)
	},
}

// fail reports err and sets the exit code: auth failures map to the auth
// exit code, everything else is a runtime error.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if fetch.IsAuth(err) {
		exitCode = ExitAuthError
		return
	}
	exitCode = ExitRuntimeError
}

// newLogger builds the command logger. Verbose mode switches to the
// development config at debug level; otherwise only warnings surface so
// report output stays clean.
func newLogger() *zap.Logger {
	var zc zap.Config
	if flagVerbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	log, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// cmdContext derives the command-level deadline from config. Remote calls
// additionally carry per-attempt timeouts from the fetch policy.
func cmdContext(cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.Fetch.TimeoutSeconds > 0 {
		return context.WithTimeout(context.Background(), time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second)
	}
	return context.WithCancel(context.Background())
}

// openManager opens the configured index store and wraps it in a manager.
// The returned func releases the store lock and must be deferred.
func openManager(cfg config.Config, log *zap.Logger) (*cache.Manager, func(), error) {
	path := config.IndexPath(flagDir, cfg.Store)
	var (
		store cache.Store
		err   error
	)
	switch cfg.Store {
	case config.StoreBolt:
		store, err = cache.NewBoltStore(path)
	default:
		store, err = cache.NewFileStore(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening index store: %w", err)
	}
	closer := func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn("closing index store", zap.Error(cerr))
		}
	}
	return cache.NewManager(store, log), closer, nil
}

// inspector returns a git inspector for the target directory, or nil when
// the directory is not under version control so callers fall back to the
// filesystem walk.
func inspector(dir string) gitctx.Inspector {
	g := gitctx.New(dir)
	if _, err := g.Meta(); err != nil {
		return nil
	}
	return g
}

// contentPolicy builds the content-fetch retry policy from config.
func contentPolicy(cfg config.Config) fetch.Policy {
	p := fetch.ContentPolicy()
	p.Attempts = cfg.Fetch.Attempts
	p.AttemptTimeout = time.Duration(cfg.Fetch.AttemptTimeoutSeconds) * time.Second
	return p
}

// modelPolicy builds the model-call retry policy from config.
func modelPolicy(cfg config.Config) fetch.Policy {
	p := fetch.ModelPolicy()
	p.Attempts = cfg.Fetch.Attempts
	p.AttemptTimeout = time.Duration(cfg.Fetch.AttemptTimeoutSeconds) * time.Second
	return p
}
