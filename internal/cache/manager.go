package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/amber/internal/classify"
	"github.com/dshills/amber/internal/scan"
)

// Manager drives all index mutations: load the whole index, mutate in
// memory, write the whole index back. A failed write is logged and does
// not fail the operation — the in-memory result stands.
type Manager struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewManager returns a Manager over the given store.
func NewManager(store Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, log: log, now: time.Now}
}

// SentUnit is the per-unit outcome of a RecordSent call.
type SentUnit struct {
	Hash        string `json:"hash"`
	Path        string `json:"path"`
	WasCacheHit bool   `json:"wasCacheHit"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// SentResult summarizes one RecordSent call.
type SentResult struct {
	SessionID string     `json:"sessionId"`
	Units     []SentUnit `json:"units"`
	CacheHits int        `json:"cacheHits"`
	NewUnits  int        `json:"newUnits"`
}

// RecordSent tracks that the given files were sent. Entries are reduced to
// unique hashes first (stable, first occurrence wins), so identical bytes
// at many paths count once per call. A unit is a cache hit when its record
// already has sentCount ≥ 1 at the moment of the call. A session is created
// under a fresh uuid when sessionID is empty.
func (m *Manager) RecordSent(files []scan.FileEntry, sessionID string) (SentResult, error) {
	idx, err := m.load()
	if err != nil {
		return SentResult{}, err
	}
	now := m.now()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, ok := idx.Sessions[sessionID]
	if !ok {
		sess = &Session{StartTime: now}
		idx.Sessions[sessionID] = sess
	}

	res := SentResult{SessionID: sessionID}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Hash] {
			continue
		}
		seen[f.Hash] = true

		rec, ok := idx.Files[f.Hash]
		if !ok {
			rec = &Record{
				Path:      f.Path,
				Category:  f.Kind,
				FirstSent: now,
				SizeBytes: f.Size,
			}
			idx.Files[f.Hash] = rec
		}
		hit := rec.SentCount >= 1
		rec.LastSent = now
		rec.SentCount++

		sess.Files = append(sess.Files, SessionFile{Hash: f.Hash, Path: f.Path, SentAt: now, WasCacheHit: hit})
		sess.Stats.FilesSent++
		sess.Stats.BytesSent += f.Size
		idx.Stats.TotalFilesSent++
		idx.Stats.TotalBytesSent += f.Size
		if hit {
			sess.Stats.CacheHits++
			idx.Stats.CacheSavingsBytes += f.Size
			res.CacheHits++
		} else {
			res.NewUnits++
		}
		res.Units = append(res.Units, SentUnit{Hash: f.Hash, Path: f.Path, WasCacheHit: hit, SizeBytes: f.Size})
	}

	m.save(idx)
	return res, nil
}

// Mark is one soft cleanup marker to apply.
type Mark struct {
	Hash   string
	Reason string
}

// MarkCleaned sets cleanedAt/cleanReason on each hash. Records stay in the
// index; list excludes them. Returns the number of records marked.
func (m *Manager) MarkCleaned(marks []Mark) (int, error) {
	idx, err := m.load()
	if err != nil {
		return 0, err
	}
	now := m.now()

	marked := 0
	for _, mk := range marks {
		rec, ok := idx.Files[mk.Hash]
		if !ok {
			continue
		}
		t := now
		rec.CleanedAt = &t
		rec.CleanReason = mk.Reason
		marked++
	}
	idx.LastCleanupAt = &now

	m.save(idx)
	return marked, nil
}

// DeleteByIDs sets deletedAt/deleteReason on every record whose hash has
// one of ids as a prefix (a full hash matches exactly). Soft: nothing is
// physically removed.
func (m *Manager) DeleteByIDs(ids []string, reason string) (int, error) {
	idx, err := m.load()
	if err != nil {
		return 0, err
	}
	now := m.now()

	marked := 0
	for hash, rec := range idx.Files {
		for _, id := range ids {
			if id != "" && strings.HasPrefix(hash, id) {
				t := now
				rec.DeletedAt = &t
				rec.DeleteReason = reason
				marked++
				break
			}
		}
	}

	m.save(idx)
	return marked, nil
}

// DeleteByPattern sets deletedAt/deleteReason on every record whose path
// contains substr. Soft, like DeleteByIDs.
func (m *Manager) DeleteByPattern(substr, reason string) (int, error) {
	if substr == "" {
		return 0, fmt.Errorf("empty delete pattern")
	}
	idx, err := m.load()
	if err != nil {
		return 0, err
	}
	now := m.now()

	marked := 0
	for _, rec := range idx.Files {
		if strings.Contains(rec.Path, substr) {
			t := now
			rec.DeletedAt = &t
			rec.DeleteReason = reason
			marked++
		}
	}

	m.save(idx)
	return marked, nil
}

// ListEntry is one active record with its hash key.
type ListEntry struct {
	Hash   string `json:"hash"`
	Record Record `json:"record"`
}

// List returns active records (no soft marker), sorted by path then hash.
func (m *Manager) List() ([]ListEntry, error) {
	idx, err := m.load()
	if err != nil {
		return nil, err
	}
	var out []ListEntry
	for hash, rec := range idx.Files {
		if !rec.Active() {
			continue
		}
		out = append(out, ListEntry{Hash: hash, Record: *rec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Record.Path != out[j].Record.Path {
			return out[i].Record.Path < out[j].Record.Path
		}
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

// StatsReport is the aggregate view for the stats command.
type StatsReport struct {
	Stats          Stats                 `json:"stats"`
	TotalRecords   int                   `json:"totalRecords"`
	ActiveRecords  int                   `json:"activeRecords"`
	CleanedRecords int                   `json:"cleanedRecords"`
	DeletedRecords int                   `json:"deletedRecords"`
	ActiveBytes    int64                 `json:"activeBytes"`
	ByCategory     map[classify.Kind]int `json:"byCategory"`
	Sessions       int                   `json:"sessions"`
	LastCleanupAt  *time.Time            `json:"lastCleanupAt,omitempty"`
}

// Report aggregates the index into a StatsReport.
func (m *Manager) Report() (StatsReport, error) {
	idx, err := m.load()
	if err != nil {
		return StatsReport{}, err
	}
	rep := StatsReport{
		Stats:         idx.Stats,
		TotalRecords:  len(idx.Files),
		ByCategory:    make(map[classify.Kind]int),
		Sessions:      len(idx.Sessions),
		LastCleanupAt: idx.LastCleanupAt,
	}
	for _, rec := range idx.Files {
		switch {
		case rec.DeletedAt != nil:
			rep.DeletedRecords++
		case rec.CleanedAt != nil:
			rep.CleanedRecords++
		default:
			rep.ActiveRecords++
			rep.ActiveBytes += rec.SizeBytes
			rep.ByCategory[rec.Category]++
		}
	}
	return rep, nil
}

// CleanSessions purges sessions that started more than days ago. The only
// way session history shrinks; never implicit.
func (m *Manager) CleanSessions(days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	idx, err := m.load()
	if err != nil {
		return 0, err
	}
	cutoff := m.now().AddDate(0, 0, -days)

	removed := 0
	for id, sess := range idx.Sessions {
		if sess.StartTime.Before(cutoff) {
			delete(idx.Sessions, id)
			removed++
		}
	}

	m.save(idx)
	return removed, nil
}

// Compact physically removes records whose soft marker is older than the
// retention window. The only operation that deletes records.
func (m *Manager) Compact(retention time.Duration) (int, error) {
	idx, err := m.load()
	if err != nil {
		return 0, err
	}
	cutoff := m.now().Add(-retention)

	removed := 0
	for hash, rec := range idx.Files {
		markedAt := rec.DeletedAt
		if markedAt == nil {
			markedAt = rec.CleanedAt
		}
		if markedAt != nil && markedAt.Before(cutoff) {
			delete(idx.Files, hash)
			removed++
		}
	}

	m.save(idx)
	return removed, nil
}

// Snapshot returns the current index for read-only inspection.
func (m *Manager) Snapshot() (*Index, error) {
	return m.load()
}

func (m *Manager) load() (*Index, error) {
	idx, err := m.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if idx.migrate() {
		m.log.Info("migrated index schema", zap.Int("to", SchemaVersion))
		m.save(idx)
	}
	return idx, nil
}

func (m *Manager) save(idx *Index) {
	if err := m.store.Save(idx); err != nil {
		m.log.Warn("persisting index failed; in-memory results kept", zap.Error(err))
	}
}
