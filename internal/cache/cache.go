// Package cache keeps the last good copy of each dataset in a local bbolt
// file so a dashboard can start without the network.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"

	"github.com/nes_dashboard/backend/internal/metrics"
)

var (
	datasetsBucket = []byte("datasets")
	metadataBucket = []byte("metadata")

	errClosed = errors.New("cache is not open")
)

// hashWindow bytes from each end of a payload feed its fingerprint.
const hashWindow = 10000

type Metadata struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
	RowCount  int    `json:"row_count"`
	FileHash  string `json:"file_hash"`
}

type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Clock   quartz.Clock
}

// Cache is safe for concurrent use. A nil *Cache behaves as an always empty
// cache, so callers can keep going when the file could not be opened.
type Cache struct {
	db    *bbolt.DB
	log   zerolog.Logger
	m     *metrics.Metrics
	clock quartz.Clock
}

func Open(path string, opts Options) (*Cache, error) {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{datasetsBucket, metadataBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("create cache buckets: %w", err), db.Close())
	}
	return &Cache{
		db:    db,
		log:   opts.Logger.With().Str("component", "cache").Logger(),
		m:     opts.Metrics,
		clock: opts.Clock,
	}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Hash fingerprints raw by its first and last 10,000 bytes, base-36 encoded.
func Hash(raw []byte) string {
	h := xxhash.New()
	_, _ = h.Write(raw[:min(len(raw), hashWindow)])
	_, _ = h.Write(raw[max(0, len(raw)-hashWindow):])
	return strconv.FormatUint(h.Sum64(), 36)
}

// Meta returns the stored metadata for key.
func (c *Cache) Meta(key string) (Metadata, bool) {
	var meta Metadata
	found := false
	err := c.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(metadataBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		c.warn(err, key, "read cache metadata")
		return Metadata{}, false
	}
	return meta, found
}

// IsValid reports whether key holds a dataset younger than maxAge that was
// built from the same raw payload.
func (c *Cache) IsValid(key string, raw []byte, maxAge time.Duration) bool {
	meta, ok := c.Meta(key)
	valid := ok &&
		c.clock.Since(time.UnixMilli(meta.Timestamp)) < maxAge &&
		meta.FileHash == Hash(raw)
	c.record(key, valid)
	return valid
}

// Store saves data under key together with the fingerprint of raw.
func (c *Cache) Store(key string, raw []byte, data any) error {
	if c == nil || c.db == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", key, err)
	}
	meta, err := json.Marshal(Metadata{
		Key:       key,
		Timestamp: c.clock.Now().UnixMilli(),
		RowCount:  rowCount(data),
		FileHash:  Hash(raw),
	})
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", key, err)
	}
	err = c.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(datasetsBucket).Put([]byte(key), payload); err != nil {
			return err
		}
		return tx.Bucket(metadataBucket).Put([]byte(key), meta)
	})
	if errors.Is(err, errClosed) {
		return nil
	}
	if err != nil {
		c.warn(err, key, "write cache entry")
		return err
	}
	return nil
}

// Load decodes the dataset stored under key into dest regardless of its age.
// It reports false when there is no usable entry.
func (c *Cache) Load(key string, dest any) bool {
	found := false
	err := c.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(datasetsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, dest); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.warn(err, key, "read cache entry")
		found = false
	}
	c.record(key, found)
	return found
}

// Clear drops every cached dataset.
func (c *Cache) Clear() error {
	err := c.update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{datasetsBucket, metadataBucket} {
			if err := tx.DeleteBucket(b); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errClosed) {
		return nil
	}
	if err != nil {
		c.warn(err, "", "clear cache")
		return err
	}
	return nil
}

func (c *Cache) view(fn func(tx *bbolt.Tx) error) error {
	if c == nil || c.db == nil {
		return errClosed
	}
	return c.db.View(fn)
}

func (c *Cache) update(fn func(tx *bbolt.Tx) error) error {
	if c == nil || c.db == nil {
		return errClosed
	}
	return c.db.Update(fn)
}

func (c *Cache) warn(err error, key, msg string) {
	if c == nil || errors.Is(err, errClosed) {
		return
	}
	c.log.Warn().Err(err).Str("key", key).Msg(msg)
}

func (c *Cache) record(key string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.m.CacheRequests.WithLabelValues(key, result).Inc()
}

func rowCount(data any) int {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len()
	}
	return 0
}
