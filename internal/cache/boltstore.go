package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket and key names.
var (
	bucketMeta     = []byte("meta")
	bucketFiles    = []byte("files")
	bucketSessions = []byte("sessions")
	keyMeta        = []byte("index")
)

// boltMeta is everything outside the per-key buckets.
type boltMeta struct {
	SchemaVersion int        `json:"schemaVersion"`
	LastCleanupAt *time.Time `json:"lastCleanupAt,omitempty"`
	Stats         Stats      `json:"stats"`
}

// BoltStore keeps records and sessions in per-key bbolt buckets. bbolt's
// own file lock enforces the single-writer invariant; a second process
// opening the same database fails after a short timeout.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketFiles, bucketSessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing index buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Load assembles the full index from the buckets.
func (s *BoltStore) Load() (*Index, error) {
	idx := NewIndex()
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyMeta); v != nil {
			var meta boltMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decoding index meta: %w", err)
			}
			idx.SchemaVersion = meta.SchemaVersion
			idx.LastCleanupAt = meta.LastCleanupAt
			idx.Stats = meta.Stats
		}
		if err := tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding record %s: %w", k, err)
			}
			idx.Files[string(k)] = &rec
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var sess Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("decoding session %s: %w", k, err)
			}
			idx.Sessions[string(k)] = &sess
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Save writes the index back in one transaction: every in-memory record is
// upserted under its key and keys gone from memory are deleted (compaction
// and session purge rely on the deletes).
func (s *BoltStore) Save(idx *Index) error {
	meta, err := json.Marshal(boltMeta{
		SchemaVersion: idx.SchemaVersion,
		LastCleanupAt: idx.LastCleanupAt,
		Stats:         idx.Stats,
	})
	if err != nil {
		return fmt.Errorf("encoding index meta: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMeta).Put(keyMeta, meta); err != nil {
			return err
		}
		files := tx.Bucket(bucketFiles)
		if err := dropMissing(files, func(k string) bool { _, ok := idx.Files[k]; return ok }); err != nil {
			return err
		}
		for hash, rec := range idx.Files {
			if err := putJSON(files, hash, rec); err != nil {
				return err
			}
		}
		sessions := tx.Bucket(bucketSessions)
		if err := dropMissing(sessions, func(k string) bool { _, ok := idx.Sessions[k]; return ok }); err != nil {
			return err
		}
		for id, sess := range idx.Sessions {
			if err := putJSON(sessions, id, sess); err != nil {
				return err
			}
		}
		return nil
	})
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

// dropMissing deletes bucket keys for which keep returns false. Keys are
// collected first; deleting while iterating invalidates the cursor.
func dropMissing(b *bolt.Bucket, keep func(string) bool) error {
	var stale [][]byte
	if err := b.ForEach(func(k, _ []byte) error {
		if !keep(string(k)) {
			kc := make([]byte, len(k))
			copy(kc, k)
			stale = append(stale, kc)
		}
		return nil
	}); err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database and releases its file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
