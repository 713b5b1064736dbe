// Package cache persists fetched API listings between runs so repeated
// analyses do not re-crawl slow control-plane APIs. Entries are JSON
// files with a fetch timestamp; staleness is decided at load time.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrNotFound = errors.New("cache entry not found")
	ErrStale    = errors.New("cache entry stale")
)

type envelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

// Load reads a cache entry into out. Entries older than ttl return
// ErrStale; a ttl of zero never expires.
func Load(path string, ttl time.Duration, now time.Time, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read cache entry: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("decode cache entry: %w", err)
	}
	if ttl > 0 && now.Sub(env.FetchedAt) > ttl {
		return ErrStale
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode cache payload: %w", err)
	}
	return nil
}

// Save writes a cache entry atomically, stamping it with now.
func Save(path string, value any, now time.Time) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	b, err := json.MarshalIndent(envelope{FetchedAt: now, Data: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write cache temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}
