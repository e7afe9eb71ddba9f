package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/types"
)

func testImage(t *testing.T) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return &buf
}

func TestExecute_EndToEndOK(t *testing.T) {
	rec := &stubRecognizer{fn: func(tile types.Tile) types.TileResult {
		return types.TileResult{
			TileIndex:  tile.Index,
			Status:     types.TileStatusOK,
			Query:      "gradient art print",
			Confidence: confPtr(0.8),
			Items: []types.CandidateItem{
				{Title: "Gradient Art Print", StoreURL: "https://art.example.com/p/1"},
			},
		}
	}}

	collector := metrics.NewCollector("scan-e2e", 2)
	o, err := NewOrchestrator(&Config{
		Image:      testImage(t),
		Recognizer: rec,
		GridSize:   2,
		Collector:  collector,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	scan := o.Execute(context.Background())

	if scan.Result.Status != types.ScanStatusOK {
		t.Fatalf("Status = %q (%s)", scan.Result.Status, scan.Result.Message)
	}
	// The same item from all 4 tiles collapses to a single high-vote entry.
	if len(scan.Result.AggregatedItems) != 1 {
		t.Fatalf("items = %d, want 1", len(scan.Result.AggregatedItems))
	}
	if scan.Result.AggregatedItems[0].Score != 4 {
		t.Errorf("Score = %d, want 4", scan.Result.AggregatedItems[0].Score)
	}
	if scan.Result.Query != "gradient art print" {
		t.Errorf("Query = %q", scan.Result.Query)
	}
	if scan.Result.Confidence != 0.8 {
		t.Errorf("Confidence = %v", scan.Result.Confidence)
	}
	if len(scan.TileResults) != 4 {
		t.Errorf("tile results = %d, want 4", len(scan.TileResults))
	}

	snap := collector.Snapshot()
	if snap.TilesGenerated != 4 || snap.TilesOK != 4 {
		t.Errorf("metrics: generated=%d ok=%d", snap.TilesGenerated, snap.TilesOK)
	}
	if snap.ScansCompleted != 1 {
		t.Errorf("ScansCompleted = %d", snap.ScansCompleted)
	}
}

func TestExecute_PartialFailureStillOK(t *testing.T) {
	rec := &stubRecognizer{fn: func(tile types.Tile) types.TileResult {
		if tile.Index < 2 {
			return types.TileResult{TileIndex: tile.Index, Status: types.TileStatusError, Error: "TIMEOUT"}
		}
		return types.TileResult{
			TileIndex: tile.Index,
			Status:    types.TileStatusOK,
			Items:     []types.CandidateItem{{Title: "Survivor"}},
		}
	}}

	result := mustExecute(t, rec)
	if result.Status != types.ScanStatusOK {
		t.Fatalf("Status = %q; failures alone must not fail the pipeline", result.Status)
	}
	if len(result.AggregatedItems) == 0 {
		t.Error("aggregated items should be non-empty")
	}
}

func TestExecute_GenerationFailureIsVisionFailed(t *testing.T) {
	o, err := NewOrchestrator(&Config{
		Image:      strings.NewReader("not an image"),
		Recognizer: &stubRecognizer{},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	scan := o.Execute(context.Background())
	if scan.Result.Status != types.ScanStatusError {
		t.Fatalf("Status = %q, want error", scan.Result.Status)
	}
	if scan.Result.Error != types.ErrVisionFailed {
		t.Errorf("Error = %q, want VISION_FAILED", scan.Result.Error)
	}
	if scan.Result.Message == "" {
		t.Error("generation failure needs the underlying message")
	}
}

func TestExecute_PanickingRecognizerCapturedPerTile(t *testing.T) {
	rec := &panicRecognizer{}
	o, err := NewOrchestrator(&Config{Image: testImage(t), Recognizer: rec})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	// The public entry never throws; a misbehaving recognizer is captured
	// tile by tile and the scan resolves to an envelope.
	scan := o.Execute(context.Background())
	if scan.Result == nil {
		t.Fatal("result must be populated")
	}
	if scan.Result.Status != types.ScanStatusNoResults {
		t.Errorf("Status = %q, want no_results (all tiles captured as failures)", scan.Result.Status)
	}
	for _, tr := range scan.TileResults {
		if tr.Status != types.TileStatusError {
			t.Errorf("tile %d status = %q, want error", tr.TileIndex, tr.Status)
		}
	}
}

type panicRecognizer struct{}

func (p *panicRecognizer) Recognize(context.Context, types.Tile) types.TileResult {
	panic("recognizer blew up")
}

func TestIdentifyProductFromImageTiles_DefaultsAndNeverErrors(t *testing.T) {
	rec := &stubRecognizer{}

	var progress []string
	result := IdentifyProductFromImageTiles(context.Background(), testImage(t), rec, 0, func(msg string) {
		progress = append(progress, msg)
	})

	if result.Status != types.ScanStatusNoResults {
		t.Fatalf("Status = %q, want no_results from empty recognizer", result.Status)
	}
	if got := rec.calls.Load(); got != 4 {
		t.Errorf("default grid should dispatch 4 tiles, got %d", got)
	}
	if len(progress) != 4 {
		t.Errorf("got %d progress messages, want 4", len(progress))
	}

	// Invalid input still resolves to an envelope, not an error.
	bad := IdentifyProductFromImageTiles(context.Background(), nil, rec, 2, nil)
	if bad.Status != types.ScanStatusError {
		t.Errorf("nil image should produce the error envelope, got %q", bad.Status)
	}
}

func mustExecute(t *testing.T, rec *stubRecognizer) *types.AggregatedResult {
	t.Helper()
	o, err := NewOrchestrator(&Config{Image: testImage(t), Recognizer: rec})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o.Execute(context.Background()).Result
}
