package stale

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/classify"
)

// historicalShare is the fraction of classifications above which the
// report suggests pruning stale branches upstream.
const historicalShare = 0.25

// Report is the cleanup outcome handed to the output writers.
type Report struct {
	GeneratedAt     time.Time             `json:"generatedAt"`
	MaxAgeDays      int                   `json:"maxAgeDays"`
	DryRun          bool                  `json:"dryRun"`
	Candidates      []Candidate           `json:"candidates"`
	CountsByReason  map[Reason]int        `json:"countsByReason"`
	CountsByKind    map[classify.Kind]int `json:"countsByKind"`
	BytesMarked     int64                 `json:"bytesMarked"`
	MarkedCount     int                   `json:"markedCount"`
	Recommendations []string              `json:"recommendations,omitempty"`
}

// Marker applies soft cleanup marks through the cache manager and builds
// the report.
type Marker struct {
	cache *cache.Manager
	log   *zap.Logger
}

// NewMarker returns a Marker writing through mgr.
func NewMarker(mgr *cache.Manager, log *zap.Logger) *Marker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Marker{cache: mgr, log: log}
}

// Mark builds the report for candidates and, unless dryRun, sets the soft
// cleanup marker on each.
func (m *Marker) Mark(candidates []Candidate, maxAge time.Duration, dryRun bool) (*Report, error) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Reason != candidates[j].Reason {
			return candidates[i].Reason < candidates[j].Reason
		}
		return candidates[i].Path < candidates[j].Path
	})

	rep := &Report{
		GeneratedAt:    time.Now(),
		MaxAgeDays:     int(maxAge.Hours() / 24),
		DryRun:         dryRun,
		Candidates:     candidates,
		CountsByReason: make(map[Reason]int),
		CountsByKind:   make(map[classify.Kind]int),
	}
	for _, c := range candidates {
		rep.CountsByReason[c.Reason]++
		rep.CountsByKind[c.Category]++
		rep.BytesMarked += c.SizeBytes
	}
	rep.Recommendations = recommend(rep)

	if dryRun || len(candidates) == 0 {
		return rep, nil
	}

	marks := make([]cache.Mark, len(candidates))
	for i, c := range candidates {
		marks[i] = cache.Mark{Hash: c.Hash, Reason: string(c.Reason)}
	}
	n, err := m.cache.MarkCleaned(marks)
	if err != nil {
		return nil, fmt.Errorf("marking records: %w", err)
	}
	rep.MarkedCount = n
	m.log.Info("marked stale records",
		zap.Int("marked", n),
		zap.Int("candidates", len(candidates)))
	return rep, nil
}

// recommend derives operator guidance from the classification mix.
func recommend(rep *Report) []string {
	total := len(rep.Candidates)
	if total == 0 {
		return nil
	}
	var recs []string
	if hist := rep.CountsByReason[ReasonHistorical]; float64(hist) >= historicalShare*float64(total) {
		recs = append(recs, fmt.Sprintf(
			"%d of %d stale records trace to old commits; consider pruning stale branches upstream",
			hist, total))
	}
	if unused := rep.CountsByReason[ReasonUnused]; unused > total/2 {
		recs = append(recs, fmt.Sprintf(
			"%d records are tracked but unreferenced for over %d days; a shorter max-age would keep the index smaller",
			unused, 2*rep.MaxAgeDays))
	}
	if rep.BytesMarked > 1<<20 {
		recs = append(recs, fmt.Sprintf(
			"%.1f MiB of marked content remains in the index; run compact to reclaim it after the retention window",
			float64(rep.BytesMarked)/(1<<20)))
	}
	return recs
}
