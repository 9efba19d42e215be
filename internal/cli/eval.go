package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/amber/internal/bundle"
	"github.com/dshills/amber/internal/config"
	"github.com/dshills/amber/internal/providers"
)

// Eval flags
var (
	flagEvalNoTrack  bool
	flagEvalSession  string
	flagEvalMaxToken int
)

var evalCmd = &cobra.Command{
	Use:   "eval <prompt...>",
	Short: "Send the repository context and a prompt to the configured model",
	Long: "Eval builds the context bundle, sends it with the prompt to the\n" +
		"configured provider, prints the reply, and records the sent units in\n" +
		"the cache index so repeated content counts as cache hits.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runEval(strings.Join(args, " "))
	},
}

func init() {
	evalCmd.Flags().IntVar(&flagMaxFiles, "max-files", 0, "Maximum number of files in the bundle")
	evalCmd.Flags().StringVar(&flagEvalSession, "session", "", "Session id for tracking (generated if empty)")
	evalCmd.Flags().BoolVar(&flagEvalNoTrack, "no-track", false, "Do not record sent units in the cache index")
	evalCmd.Flags().IntVar(&flagEvalMaxToken, "max-tokens", 4096, "Maximum response tokens")
}

func runEval(prompt string) {
	cfg, err := config.Load(flagDir, buildOverrides())
	if err != nil {
		fail(err)
		return
	}
	log := newLogger()
	defer log.Sync()

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

	ev, err := providers.New(cfg.Model.Provider, cfg.Model.Name, modelPolicy(cfg))
	if err != nil {
		fail(err)
		return
	}

	req := providers.EvalRequest{
		System:      built.SystemContext,
		Prompt:      prompt,
		CacheSystem: len(built.CacheHints.Hashes) > 0,
		MaxTokens:   flagEvalMaxToken,
	}
	for _, m := range built.MediaUnits {
		req.Attachments = append(req.Attachments, providers.Attachment{
			MediaType: m.MediaType,
			Data:      m.Data,
		})
	}

	resp, err := ev.Evaluate(ctx, req)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintln(os.Stdout, resp.Content)
	fmt.Fprintf(os.Stderr, "Tokens: %d in (%d cached), %d out\n",
		resp.InputTokens, resp.CachedTokens, resp.OutputTokens)

	if flagEvalNoTrack {
		return
	}
	mgr, release, err := openManager(cfg, log)
	if err != nil {
		fail(err)
		return
	}
	defer release()
	res, err := mgr.RecordSent(built.Units(), flagEvalSession)
	if err != nil {
		fail(err)
		return
	}
	fmt.Fprintf(os.Stderr, "Tracked %d units (%d cache hits) in session %s\n",
		len(res.Units), res.CacheHits, res.SessionID)
}
