// Package cache provides a file-backed tile-result cache.
//
// Tiles are keyed by the SHA-256 of their encoded bytes, so the same crop
// re-scanned later (or the same product photo re-shared) skips the
// network entirely. Entries are msgpack-encoded, one file per key.
//
// Only settled recognition outcomes (ok, no_results) are cached; error
// outcomes are transient by definition and always retried on the next scan.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/types"
	"github.com/spotlens-io/spotlens/vision"
)

// Store is a file-backed tile-result store.
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Key computes the cache key for a tile: the hex SHA-256 of its encoded
// bytes. Tile position is deliberately not part of the key — identical
// pixels are identical work.
func Key(tile types.Tile) string {
	h := sha256.Sum256(tile.Data)
	return hex.EncodeToString(h[:])
}

// Get returns the cached result for key, or ok=false on a miss.
// A corrupt entry reads as a miss; it will be overwritten on the next Put.
func (s *Store) Get(key string) (types.TileResult, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return types.TileResult{}, false
	}

	var result types.TileResult
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return types.TileResult{}, false
	}
	return result, true
}

// Put stores a tile result under key.
func (s *Store) Put(key string, result types.TileResult) error {
	data, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".bin")
}

// Recognizer wraps an inner recognizer with the store, serving repeat
// tiles from cache.
type Recognizer struct {
	inner     vision.Recognizer
	store     *Store
	collector *metrics.Collector
}

// NewRecognizer wraps inner with the cache at dir.
func NewRecognizer(inner vision.Recognizer, store *Store, collector *metrics.Collector) *Recognizer {
	return &Recognizer{inner: inner, store: store, collector: collector}
}

// Recognize serves the tile from cache when possible, otherwise delegates
// and stores settled outcomes. The cached result's tile index is rewritten
// to the current position, since identical content can appear anywhere in
// the grid.
func (r *Recognizer) Recognize(ctx context.Context, tile types.Tile) types.TileResult {
	key := Key(tile)

	if cached, ok := r.store.Get(key); ok {
		r.collector.IncCacheHit()
		cached.TileIndex = tile.Index
		return cached
	}
	r.collector.IncCacheMiss()

	result := r.inner.Recognize(ctx, tile)
	if result.Status != types.TileStatusError {
		// Best effort; a failed write just means a miss next time.
		_ = r.store.Put(key, result)
	}
	return result
}
