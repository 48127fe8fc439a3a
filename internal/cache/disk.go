package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Cache keeps values between runs, catalog searches mainly.
type Cache[T any] interface {
	Key(parts ...any) string
	Get(key string) (T, bool)
	Put(key string, value T) error
	Delete(key string) error
}

type record struct {
	// Expires is zero for entries that never expire.
	Expires time.Time       `json:"expires,omitzero"`
	Sum     string          `json:"sum"`
	Value   json.RawMessage `json:"value"`
}

// Disk stores every entry as a JSON file below Dir, sharded by the first
// two characters of the key. Expired and damaged entries are removed on
// read.
type Disk[T any] struct {
	Dir string
	TTL time.Duration
	now func() time.Time
}

func NewDisk[T any](dir string, ttl time.Duration) *Disk[T] {
	return &Disk[T]{Dir: dir, TTL: ttl, now: time.Now}
}

func (d *Disk[T]) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

// Key hashes the parts, so that equal parts give equal keys.
func (d *Disk[T]) Key(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%T=%v\x00", p, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Disk[T]) file(key string) string {
	if len(key) < 3 {
		return filepath.Join(d.Dir, key+".json")
	}
	return filepath.Join(d.Dir, key[:2], key+".json")
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (d *Disk[T]) Get(key string) (T, bool) {
	var zero T
	raw, err := os.ReadFile(d.file(key))
	if err != nil {
		return zero, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Sum != checksum(rec.Value) {
		_ = d.Delete(key)
		return zero, false
	}
	if !rec.Expires.IsZero() && d.clock().After(rec.Expires) {
		_ = d.Delete(key)
		return zero, false
	}

	var value T
	if err := json.Unmarshal(rec.Value, &value); err != nil {
		_ = d.Delete(key)
		return zero, false
	}
	return value, true
}

// Put replaces the entry atomically.
func (d *Disk[T]) Put(key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	rec := record{Sum: checksum(payload), Value: payload}
	if d.TTL > 0 {
		rec.Expires = d.clock().Add(d.TTL)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	path := d.file(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "put-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes the entry. Missing entries are not an error.
func (d *Disk[T]) Delete(key string) error {
	if err := os.Remove(d.file(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}
