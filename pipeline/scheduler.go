// Package pipeline implements the tiled product-identification pipeline:
// grid tiles in, one aggregated candidate list out.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/types"
	"github.com/spotlens-io/spotlens/vision"
)

// DefaultMaxConcurrent is the default cap on in-flight recognition calls.
const DefaultMaxConcurrent = 2

// ProgressFunc receives human-readable progress messages. Collaborator
// facing, fire-and-forget: invocations never block the pipeline and a
// panicking callback is swallowed.
type ProgressFunc func(message string)

// notifyProgress invokes fn guarded against panics. A progress sink must
// never be able to take the pipeline down.
func notifyProgress(fn ProgressFunc, message string) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(message)
}

// runTiles invokes the recognizer for every tile exactly once, respecting
// the concurrency cap, and returns one TileResult per tile indexed by
// tile position.
//
// Tiles are dispatched in sequential batches of maxConcurrent: all calls
// in a batch run concurrently, and the batch settles completely before
// the next one starts. Each in-flight task owns its own result slot, so
// no locking is needed around the results slice.
//
// Cancellation is honored between batches; in-flight calls see it through
// their request context. Tiles never dispatched due to cancellation still
// get an error TileResult, never a silent drop.
func runTiles(ctx context.Context, tiles []types.Tile, rec vision.Recognizer, maxConcurrent int, onProgress ProgressFunc, collector *metrics.Collector) []types.TileResult {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}

	total := len(tiles)
	results := make([]types.TileResult, total)

	for batchStart := 0; batchStart < total; batchStart += maxConcurrent {
		if err := ctx.Err(); err != nil {
			for _, tile := range tiles[batchStart:] {
				results[tile.Index] = types.TileResult{
					TileIndex: tile.Index,
					Status:    types.TileStatusError,
					Error:     "CANCELLED",
				}
			}
			break
		}

		batchEnd := batchStart + maxConcurrent
		if batchEnd > total {
			batchEnd = total
		}

		var wg sync.WaitGroup
		for _, tile := range tiles[batchStart:batchEnd] {
			notifyProgress(onProgress, fmt.Sprintf("Analyzing part %d/%d...", tile.Index+1, total))
			collector.IncTileDispatched()

			wg.Add(1)
			go func(t types.Tile) {
				defer wg.Done()
				// A panicking recognizer is captured as that tile's
				// failure; it must not take down sibling tiles.
				defer func() {
					if r := recover(); r != nil {
						results[t.Index] = types.TileResult{
							TileIndex: t.Index,
							Status:    types.TileStatusError,
							Error:     "UNKNOWN",
						}
					}
				}()
				results[t.Index] = rec.Recognize(ctx, t)
			}(tile)
		}
		wg.Wait()

		for _, tile := range tiles[batchStart:batchEnd] {
			switch results[tile.Index].Status {
			case types.TileStatusOK:
				collector.IncTileOK()
			case types.TileStatusNoResults:
				collector.IncTileNoResults()
			default:
				collector.IncTileFailed()
			}
		}
	}

	return results
}
