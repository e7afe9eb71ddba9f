// Package metrics provides per-scan metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is
// a leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers never have to guard on an absent collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all scan metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Scan lifecycle
	ScansStarted   int64
	ScansCompleted int64
	ScansFailed    int64

	// Tiles
	TilesGenerated  int64
	TilesDispatched int64
	TilesOK         int64
	TilesNoResults  int64
	TilesFailed     int64

	// Aggregation
	ItemsCollected int64
	DedupMerges    int64
	ItemsReturned  int64

	// Tile cache
	CacheHits   int64
	CacheMisses int64

	// Dimensions (informational, set at construction)
	ScanID   string
	GridSize int
}

// Collector accumulates metrics during a single scan.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	scansStarted   int64
	scansCompleted int64
	scansFailed    int64

	tilesGenerated  int64
	tilesDispatched int64
	tilesOK         int64
	tilesNoResults  int64
	tilesFailed     int64

	itemsCollected int64
	dedupMerges    int64
	itemsReturned  int64

	cacheHits   int64
	cacheMisses int64

	scanID   string
	gridSize int
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(scanID string, gridSize int) *Collector {
	return &Collector{scanID: scanID, gridSize: gridSize}
}

// IncScanStarted records a scan start.
func (c *Collector) IncScanStarted() {
	if c == nil {
		return
	}
	c.add(&c.scansStarted, 1)
}

// IncScanCompleted records a scan that produced a terminal ok/no_results outcome.
func (c *Collector) IncScanCompleted() {
	if c == nil {
		return
	}
	c.add(&c.scansCompleted, 1)
}

// IncScanFailed records a scan that ended in the error outcome.
func (c *Collector) IncScanFailed() {
	if c == nil {
		return
	}
	c.add(&c.scansFailed, 1)
}

// AddTilesGenerated records tiles produced by the tile generator.
func (c *Collector) AddTilesGenerated(n int) {
	if c == nil {
		return
	}
	c.add(&c.tilesGenerated, int64(n))
}

// IncTileDispatched records a tile handed to the recognizer.
func (c *Collector) IncTileDispatched() {
	if c == nil {
		return
	}
	c.add(&c.tilesDispatched, 1)
}

// IncTileOK records a tile that returned candidates.
func (c *Collector) IncTileOK() {
	if c == nil {
		return
	}
	c.add(&c.tilesOK, 1)
}

// IncTileNoResults records a tile that recognized nothing.
func (c *Collector) IncTileNoResults() {
	if c == nil {
		return
	}
	c.add(&c.tilesNoResults, 1)
}

// IncTileFailed records a tile whose recognition failed after retries.
func (c *Collector) IncTileFailed() {
	if c == nil {
		return
	}
	c.add(&c.tilesFailed, 1)
}

// AddItemsCollected records candidates pooled from ok tiles.
func (c *Collector) AddItemsCollected(n int) {
	if c == nil {
		return
	}
	c.add(&c.itemsCollected, int64(n))
}

// IncDedupMerge records a candidate folded into an existing identity key.
func (c *Collector) IncDedupMerge() {
	if c == nil {
		return
	}
	c.add(&c.dedupMerges, 1)
}

// AddItemsReturned records the final aggregated list length.
func (c *Collector) AddItemsReturned(n int) {
	if c == nil {
		return
	}
	c.add(&c.itemsReturned, int64(n))
}

// IncCacheHit records a tile served from the result cache.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.add(&c.cacheHits, 1)
}

// IncCacheMiss records a tile that had to go to the network.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.add(&c.cacheMisses, 1)
}

func (c *Collector) add(field *int64, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
// Safe to call on a nil collector (returns a zero snapshot).
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ScansStarted:    c.scansStarted,
		ScansCompleted:  c.scansCompleted,
		ScansFailed:     c.scansFailed,
		TilesGenerated:  c.tilesGenerated,
		TilesDispatched: c.tilesDispatched,
		TilesOK:         c.tilesOK,
		TilesNoResults:  c.tilesNoResults,
		TilesFailed:     c.tilesFailed,
		ItemsCollected:  c.itemsCollected,
		DedupMerges:     c.dedupMerges,
		ItemsReturned:   c.itemsReturned,
		CacheHits:       c.cacheHits,
		CacheMisses:     c.cacheMisses,
		ScanID:          c.scanID,
		GridSize:        c.gridSize,
	}
}
