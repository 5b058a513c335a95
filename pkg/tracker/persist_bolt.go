package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/prodtrack/errors"
	bolt "go.etcd.io/bbolt"
)

const bucketMetrics = "metrics"

// BoltPersister keeps one JSON-encoded metric per key in a bbolt bucket.
type BoltPersister struct {
	db *bolt.DB
}

// OpenBoltPersister opens (creating if needed) the database at path.
func OpenBoltPersister(path string) (*BoltPersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.StorageFailed("bolt", fmt.Errorf("create metrics directory: %w", err))
	}
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.StorageFailed("bolt", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketMetrics))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.StorageFailed("bolt", err)
	}
	return &BoltPersister{db: db}, nil
}

// Load reads every metric in the bucket.
func (p *BoltPersister) Load() (map[string]Metric, error) {
	out := make(map[string]Metric)
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketMetrics)).ForEach(func(k, v []byte) error {
			var m Metric
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("decode metric %q: %w", k, err)
			}
			out[string(k)] = m
			return nil
		})
	})
	if err != nil {
		return nil, errors.StorageFailed("bolt", err)
	}
	return out, nil
}

// Save writes every metric and removes keys no longer present.
func (p *BoltPersister) Save(m map[string]Metric) error {
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMetrics))

		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if _, ok := m[string(k)]; !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for k, metric := range m {
			data, err := json.Marshal(metric)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.StorageFailed("bolt", err)
	}
	return nil
}

// Clear empties the bucket.
func (p *BoltPersister) Clear() error {
	err := p.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketMetrics)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketMetrics))
		return err
	})
	if err != nil {
		return errors.StorageFailed("bolt", err)
	}
	return nil
}

// Close closes the database.
func (p *BoltPersister) Close() error {
	return p.db.Close()
}
