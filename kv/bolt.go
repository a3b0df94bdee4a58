// Package kv provides the durable key-value store behind the status engine.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/apollostatus/apollostatus/uptime"
)

var bucketName = []byte("status")

// BoltStore keeps values as decimal strings in a single bbolt bucket, the
// same shape a redis instance would hold them in.
type BoltStore struct {
	db *bolt.DB
}

// Open creates the data directory and database file if needed.
func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v int64
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return uptime.ErrKeyNotFound
		}
		var err error
		v, err = parse(key, raw)
		return err
	})
	return v, err
}

func (s *BoltStore) Set(ctx context.Context, key string, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), format(value))
	})
}

func (s *BoltStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var v int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if raw := b.Get([]byte(key)); raw != nil {
			cur, err := parse(key, raw)
			if err != nil {
				return err
			}
			v = cur
		}
		v++
		return b.Put([]byte(key), format(v))
	})
	return v, err
}

func (s *BoltStore) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var written bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		written = true
		return b.Put([]byte(key), format(value))
	})
	return written, err
}

func (s *BoltStore) MGet(ctx context.Context, keys ...string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]int64, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for i, k := range keys {
			raw := b.Get([]byte(k))
			if raw == nil {
				continue
			}
			v, err := parse(k, raw)
			if err != nil {
				return err
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return errors.New("store not open")
	}
	return s.db.Close()
}

func parse(key string, raw []byte) (int64, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func format(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}
