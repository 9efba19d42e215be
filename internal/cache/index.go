package cache

import (
	"time"

	"github.com/dshills/amber/internal/classify"
)

// SchemaVersion is the current on-disk index schema. Older versions are
// migrated forward on load; migration is one-way.
const SchemaVersion = 2

// Record is the persistent history of one content hash.
type Record struct {
	Path         string        `json:"path"`
	Category     classify.Kind `json:"category"`
	FirstSent    time.Time     `json:"firstSent"`
	LastSent     time.Time     `json:"lastSent"`
	SentCount    int           `json:"sentCount"`
	SizeBytes    int64         `json:"sizeBytes"`
	CleanedAt    *time.Time    `json:"cleanedAt,omitempty"`
	CleanReason  string        `json:"cleanReason,omitempty"`
	DeletedAt    *time.Time    `json:"deletedAt,omitempty"`
	DeleteReason string        `json:"deleteReason,omitempty"`
}

// Active reports whether the record carries no soft marker.
func (r *Record) Active() bool {
	return r.CleanedAt == nil && r.DeletedAt == nil
}

// SessionFile is one unit sent during a session.
type SessionFile struct {
	Hash        string    `json:"hash"`
	Path        string    `json:"path"`
	SentAt      time.Time `json:"sentAt"`
	WasCacheHit bool      `json:"wasCacheHit"`
}

// SessionStats aggregate one session, in lock-step with the global Stats.
type SessionStats struct {
	FilesSent int   `json:"filesSent"`
	BytesSent int64 `json:"bytesSent"`
	CacheHits int   `json:"cacheHits"`
}

// Session records everything sent under one session id.
type Session struct {
	StartTime time.Time     `json:"startTime"`
	Files     []SessionFile `json:"files"`
	Stats     SessionStats  `json:"stats"`
}

// Stats are lifetime totals across all sessions.
type Stats struct {
	TotalFilesSent    int   `json:"totalFilesSent"`
	TotalBytesSent    int64 `json:"totalBytesSent"`
	CacheSavingsBytes int64 `json:"cacheSavingsBytes"`
}

// Index is the root persisted structure.
type Index struct {
	SchemaVersion int                 `json:"schemaVersion"`
	Sessions      map[string]*Session `json:"sessions"`
	Files         map[string]*Record  `json:"files"`
	LastCleanupAt *time.Time          `json:"lastCleanupAt,omitempty"`
	Stats         Stats               `json:"stats"`
}

// NewIndex returns an empty index at the current schema version.
func NewIndex() *Index {
	return &Index{
		SchemaVersion: SchemaVersion,
		Sessions:      make(map[string]*Session),
		Files:         make(map[string]*Record),
	}
}

// normalize repairs nil maps after decoding.
func (idx *Index) normalize() {
	if idx.Sessions == nil {
		idx.Sessions = make(map[string]*Session)
	}
	if idx.Files == nil {
		idx.Files = make(map[string]*Record)
	}
}

// migrate upgrades idx in place to the current schema version. Returns
// whether anything changed. Version 1 records may lack a path and category:
// the path defaults to the hash itself and the category is inferred from
// whatever path is present.
func (idx *Index) migrate() bool {
	idx.normalize()
	if idx.SchemaVersion >= SchemaVersion {
		return false
	}
	for hash, rec := range idx.Files {
		if rec.Path == "" {
			rec.Path = hash
		}
		if rec.Category == "" {
			rec.Category = classify.Classify(rec.Path).Kind
		}
	}
	idx.SchemaVersion = SchemaVersion
	return true
}
