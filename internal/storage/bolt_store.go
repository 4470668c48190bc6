package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	digestBucket     = "digests"
	responseBucket   = "responses"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Every value starts with an
// 8-byte big-endian unix-millisecond expiry.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	digestTTL       time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{digestBucket, responseBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	store := &boltStore{
		db:              db,
		digestTTL:       opts.DigestTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().UnixMilli())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Seen reports whether the snapshot digest was marked and has not expired.
func (b *boltStore) Seen(digest string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}
	_, ok, err := b.lookup(digestBucket, digest, now)
	return ok, err
}

// Mark records the digest for the configured digest TTL.
func (b *boltStore) Mark(digest string) error {
	if b == nil || b.db == nil {
		return nil
	}
	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}
	return b.put(digestBucket, digest, nil, now.Add(b.digestTTL))
}

// Get returns a cached payload that has not expired.
func (b *boltStore) Get(key string) ([]byte, bool, error) {
	if b == nil || b.db == nil {
		return nil, false, nil
	}
	return b.lookup(responseBucket, key, time.Now())
}

// Put caches value for ttl.
func (b *boltStore) Put(key string, value []byte, ttl time.Duration) error {
	if b == nil || b.db == nil || ttl <= 0 {
		return nil
	}
	return b.put(responseBucket, key, value, time.Now().Add(ttl))
}

// lookup returns the payload stored under key, deleting it when expired.
func (b *boltStore) lookup(bucketName, key string, now time.Time) ([]byte, bool, error) {
	var (
		out   []byte
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket missing", bucketName)
		}

		k := []byte(key)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value)
		if !ok || !expiry.After(now) {
			return bucket.Delete(k)
		}

		out = append([]byte{}, value[expiryValueBytes:]...)
		found = true
		return nil
	})
	return out, found, err
}

func (b *boltStore) put(bucketName, key string, payload []byte, expiry time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket missing", bucketName)
		}
		buf := make([]byte, expiryValueBytes+len(payload))
		binary.BigEndian.PutUint64(buf, uint64(expiry.UnixMilli()))
		copy(buf[expiryValueBytes:], payload)
		return bucket.Put([]byte(key), buf)
	})
}

// maybeCleanupExpired removes expired entries on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.UnixMilli(b.lastCleanup.Load())
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.UnixMilli(b.lastCleanup.Load())
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{digestBucket, responseBucket} {
			bucket := tx.Bucket([]byte(name))
			if bucket == nil {
				return fmt.Errorf("%s bucket missing", name)
			}

			cursor := bucket.Cursor()
			for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
				expiry, ok := decodeExpiry(v)
				if !ok || !expiry.After(now) {
					if err := cursor.Delete(); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.UnixMilli())
	}
	return err
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	ms := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
