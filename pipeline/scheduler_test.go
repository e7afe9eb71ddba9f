package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spotlens-io/spotlens/types"
)

// stubRecognizer runs fn per tile, tracking concurrent in-flight calls.
type stubRecognizer struct {
	fn func(tile types.Tile) types.TileResult

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	calls       atomic.Int64
}

func (s *stubRecognizer) Recognize(_ context.Context, tile types.Tile) types.TileResult {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		observed := s.maxInFlight.Load()
		if cur <= observed || s.maxInFlight.CompareAndSwap(observed, cur) {
			break
		}
	}
	s.calls.Add(1)

	// Give batch siblings a chance to overlap.
	time.Sleep(2 * time.Millisecond)

	if s.fn != nil {
		return s.fn(tile)
	}
	return types.TileResult{TileIndex: tile.Index, Status: types.TileStatusNoResults}
}

func fakeTiles(n int) []types.Tile {
	tiles := make([]types.Tile, n)
	for i := range tiles {
		tiles[i] = types.Tile{Index: i, Data: []byte{0xff}, MIMEType: "image/jpeg"}
	}
	return tiles
}

func TestRunTiles_EveryTileYieldsExactlyOneResult(t *testing.T) {
	rec := &stubRecognizer{fn: func(tile types.Tile) types.TileResult {
		return types.TileResult{
			TileIndex: tile.Index,
			Status:    types.TileStatusOK,
			Items:     []types.CandidateItem{{Title: fmt.Sprintf("item-%d", tile.Index)}},
		}
	}}

	results := runTiles(context.Background(), fakeTiles(9), rec, 2, nil, nil)

	if len(results) != 9 {
		t.Fatalf("got %d results, want 9", len(results))
	}
	for i, r := range results {
		if r.TileIndex != i {
			t.Errorf("slot %d holds tile %d", i, r.TileIndex)
		}
	}
	if got := rec.calls.Load(); got != 9 {
		t.Errorf("recognizer called %d times, want 9", got)
	}
}

func TestRunTiles_ConcurrencyCapRespected(t *testing.T) {
	for _, limit := range []int{1, 2, 3} {
		rec := &stubRecognizer{}
		runTiles(context.Background(), fakeTiles(16), rec, limit, nil, nil)

		if got := rec.maxInFlight.Load(); got > int64(limit) {
			t.Errorf("cap %d: observed %d simultaneous calls", limit, got)
		}
	}
}

func TestRunTiles_ProgressMessagesInDispatchOrder(t *testing.T) {
	var mu sync.Mutex
	var messages []string

	rec := &stubRecognizer{}
	runTiles(context.Background(), fakeTiles(4), rec, 2, func(msg string) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	}, nil)

	want := []string{
		"Analyzing part 1/4...",
		"Analyzing part 2/4...",
		"Analyzing part 3/4...",
		"Analyzing part 4/4...",
	}
	if len(messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(messages), len(want))
	}
	for i := range want {
		if messages[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, messages[i], want[i])
		}
	}
}

func TestRunTiles_PanickingProgressSinkIsContained(t *testing.T) {
	rec := &stubRecognizer{}
	results := runTiles(context.Background(), fakeTiles(4), rec, 2, func(string) {
		panic("sink misbehaved")
	}, nil)

	if len(results) != 4 {
		t.Fatalf("pipeline aborted by progress sink panic")
	}
}

func TestRunTiles_FailedTileDoesNotAbortSiblings(t *testing.T) {
	rec := &stubRecognizer{fn: func(tile types.Tile) types.TileResult {
		if tile.Index%2 == 0 {
			return types.TileResult{TileIndex: tile.Index, Status: types.TileStatusError, Error: "NETWORK"}
		}
		return types.TileResult{
			TileIndex: tile.Index,
			Status:    types.TileStatusOK,
			Items:     []types.CandidateItem{{Title: "x"}},
		}
	}}

	results := runTiles(context.Background(), fakeTiles(4), rec, 2, nil, nil)

	var ok, failed int
	for _, r := range results {
		switch r.Status {
		case types.TileStatusOK:
			ok++
		case types.TileStatusError:
			failed++
		}
	}
	if ok != 2 || failed != 2 {
		t.Errorf("ok=%d failed=%d, want 2/2", ok, failed)
	}
}

func TestRunTiles_CancellationMarksRemainingTiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	rec := &stubRecognizer{fn: func(tile types.Tile) types.TileResult {
		cancel() // cancel during the first batch
		return types.TileResult{TileIndex: tile.Index, Status: types.TileStatusOK,
			Items: []types.CandidateItem{{Title: "x"}}}
	}}

	results := runTiles(ctx, fakeTiles(8), rec, 2, nil, nil)

	if len(results) != 8 {
		t.Fatalf("got %d results, want 8 (no silent drops)", len(results))
	}
	for _, r := range results[2:] {
		if r.Status != types.TileStatusError || r.Error != "CANCELLED" {
			t.Errorf("tile %d after cancel = %q/%q, want error/CANCELLED", r.TileIndex, r.Status, r.Error)
		}
	}
}
