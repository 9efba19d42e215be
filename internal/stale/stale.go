package stale

import (
	"time"

	"github.com/dshills/amber/internal/cache"
	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/gitctx"
)

// DefaultMaxAge is the staleness horizon when none is configured.
const DefaultMaxAge = 30 * 24 * time.Hour

// Reason says why a record was classified stale.
type Reason string

const (
	// ReasonOutdated: hash absent from the current tree and past maxAge.
	ReasonOutdated Reason = "outdated"
	// ReasonUnused: not sent within twice maxAge.
	ReasonUnused Reason = "unused"
	// ReasonHistorical: content only seen in commits older than the cutoff.
	ReasonHistorical Reason = "historical"
)

// Candidate is one stale record with the evidence that classified it.
type Candidate struct {
	Hash      string        `json:"hash"`
	Path      string        `json:"path"`
	Category  classify.Kind `json:"category"`
	Reason    Reason        `json:"reason"`
	AgeDays   int           `json:"ageDays"`
	LastSent  time.Time     `json:"lastSent"`
	SentCount int           `json:"sentCount"`
	SizeBytes int64         `json:"sizeBytes"`
	Commit    string        `json:"commit,omitempty"`
}

// Detector classifies records against a maxAge horizon.
type Detector struct {
	maxAge time.Duration
	now    func() time.Time
}

// NewDetector returns a Detector. A non-positive maxAge falls back to
// DefaultMaxAge.
func NewDetector(maxAge time.Duration) *Detector {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Detector{maxAge: maxAge, now: time.Now}
}

// MaxAge returns the detector's horizon.
func (d *Detector) MaxAge() time.Duration { return d.maxAge }

// Cutoff returns the history cutoff: commits older than this feed the
// historical rule.
func (d *Detector) Cutoff() time.Time { return d.now().Add(-d.maxAge) }

// Detect classifies every active record, first match wins. current holds
// the hashes of the fresh tracked snapshot; commits is repository history
// older than Cutoff (may be empty when history is unavailable). Records
// already carrying a soft marker are skipped.
func (d *Detector) Detect(idx *cache.Index, current map[string]bool, commits []gitctx.Commit) []Candidate {
	now := d.now()
	var out []Candidate
	classified := make(map[string]bool)

	for hash, rec := range idx.Files {
		if !rec.Active() {
			continue
		}
		ref := rec.LastSent
		if rec.FirstSent.After(ref) {
			ref = rec.FirstSent
		}
		var reason Reason
		switch {
		case !current[hash] && now.Sub(ref) > d.maxAge:
			reason = ReasonOutdated
		case now.Sub(rec.LastSent) > 2*d.maxAge:
			reason = ReasonUnused
		default:
			continue
		}
		classified[hash] = true
		out = append(out, Candidate{
			Hash:      hash,
			Path:      rec.Path,
			Category:  rec.Category,
			Reason:    reason,
			AgeDays:   int(now.Sub(ref).Hours() / 24),
			LastSent:  rec.LastSent,
			SentCount: rec.SentCount,
			SizeBytes: rec.SizeBytes,
		})
	}

	// Separate pass: content whose blobs only show up in old history.
	for _, c := range commits {
		for _, f := range c.Files {
			if classified[f.Hash] {
				continue
			}
			rec, ok := idx.Files[f.Hash]
			if !ok || !rec.Active() {
				continue
			}
			classified[f.Hash] = true
			out = append(out, Candidate{
				Hash:      f.Hash,
				Path:      rec.Path,
				Category:  rec.Category,
				Reason:    ReasonHistorical,
				AgeDays:   int(now.Sub(rec.LastSent).Hours() / 24),
				LastSent:  rec.LastSent,
				SentCount: rec.SentCount,
				SizeBytes: rec.SizeBytes,
				Commit:    c.SHA,
			})
		}
	}

	return out
}
