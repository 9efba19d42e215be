package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/amber/internal/stale"
)

// markdownCleanup renders the cleanup report in an issue-comment-friendly
// shape: summary table up front, per-reason detail behind fold markers.
func markdownCleanup(w io.Writer, r *stale.Report) error {
	fmt.Fprintf(w, "## Cache Cleanup Report\n\n")
	if r.DryRun {
		fmt.Fprintf(w, "_Dry run — no records were marked._\n\n")
	}

	fmt.Fprintf(w, "| Reason | Count |\n")
	fmt.Fprintf(w, "|------------|-------|\n")
	fmt.Fprintf(w, "| Outdated   | %d |\n", r.CountsByReason[stale.ReasonOutdated])
	fmt.Fprintf(w, "| Unused     | %d |\n", r.CountsByReason[stale.ReasonUnused])
	fmt.Fprintf(w, "| Historical | %d |\n", r.CountsByReason[stale.ReasonHistorical])
	fmt.Fprintf(w, "| **Total**  | **%d** |\n\n", len(r.Candidates))

	if len(r.Candidates) == 0 {
		fmt.Fprintln(w, "Nothing stale. :white_check_mark:")
		return nil
	}

	grouped := make(map[stale.Reason][]stale.Candidate)
	for _, c := range r.Candidates {
		grouped[c.Reason] = append(grouped[c.Reason], c)
	}
	for _, reason := range reasonOrder {
		cands := grouped[reason]
		if len(cands) == 0 {
			continue
		}

		fmt.Fprintf(w, "<details>\n<summary>%s (%d)</summary>\n\n",
			strings.ToUpper(string(reason)), len(cands))
		fmt.Fprintf(w, "| Hash | Path | Category | Age | Sent | Size |\n")
		fmt.Fprintf(w, "|------|------|----------|-----|------|------|\n")
		for _, c := range cands {
			fmt.Fprintf(w, "| `%.12s` | %s | %s | %dd | %d | %s |\n",
				c.Hash, c.Path, c.Category, c.AgeDays, c.SentCount, humanBytes(c.SizeBytes))
		}
		fmt.Fprintf(w, "\n</details>\n\n")
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(w, "**Recommendations:**\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "- %s\n", rec)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "*%d records, %s — max age %d days*\n",
		len(r.Candidates), humanBytes(r.BytesMarked), r.MaxAgeDays)

	return nil
}
