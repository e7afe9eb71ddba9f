package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spotlens-io/spotlens/log"
	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/tiler"
	"github.com/spotlens-io/spotlens/types"
	"github.com/spotlens-io/spotlens/vision"
)

// Config configures a single scan.
type Config struct {
	// Image is the source image (required).
	Image io.Reader
	// Recognizer handles per-tile recognition (required).
	Recognizer vision.Recognizer
	// GridSize is the grid dimension g. Default 2 (a 2×2 grid).
	GridSize int
	// Quality is the tile JPEG encode quality. Default per tiler.
	Quality int
	// MaxConcurrent caps in-flight recognition calls. Default 2.
	MaxConcurrent int
	// OnProgress receives progress messages. Optional.
	OnProgress ProgressFunc
	// Meta is the scan identity. Generated when nil.
	Meta *types.ScanMeta
	// Collector records scan metrics. Optional; nil disables collection.
	Collector *metrics.Collector
}

// ScanResult bundles the caller-facing envelope with run bookkeeping.
type ScanResult struct {
	// Meta is the scan identity.
	Meta *types.ScanMeta
	// Result is the aggregated envelope returned to UI callers.
	Result *types.AggregatedResult
	// TileResults holds the per-tile outcomes, indexed by tile position.
	TileResults []types.TileResult
	// Duration is the total scan duration.
	Duration time.Duration
}

// Orchestrator runs one scan end to end.
type Orchestrator struct {
	config *Config
	meta   *types.ScanMeta
	logger *log.Logger
}

// NewOrchestrator creates an orchestrator, validating the config.
func NewOrchestrator(config *Config) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if config.Image == nil {
		return nil, errors.New("config.Image is required")
	}
	if config.Recognizer == nil {
		return nil, errors.New("config.Recognizer is required")
	}

	if config.GridSize == 0 {
		config.GridSize = tiler.DefaultGridSize
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	if config.Meta == nil {
		config.Meta = types.NewScanMeta(config.GridSize, "")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan metadata: %w", err)
	}

	return &Orchestrator{
		config: config,
		meta:   config.Meta,
		logger: log.NewLogger(config.Meta),
	}, nil
}

// Execute runs the scan end-to-end and never returns a Go error: every
// failure mode, including panics outside the per-tile capture, resolves
// into the error variant of the result envelope.
//
// Execution flow:
//  1. Generate tiles (all-or-nothing)
//  2. Dispatch tiles through the recognizer in bounded batches
//  3. Aggregate ok tiles into a ranked, deduplicated candidate list
//  4. Classify the terminal outcome
func (o *Orchestrator) Execute(ctx context.Context) (scan *ScanResult) {
	start := time.Now()
	collector := o.config.Collector
	collector.IncScanStarted()

	scan = &ScanResult{Meta: o.meta}
	defer func() {
		scan.Duration = time.Since(start)
		if r := recover(); r != nil {
			o.logger.Error("scan panicked", map[string]any{"panic": fmt.Sprint(r)})
			collector.IncScanFailed()
			scan.Result = failureResult(fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	o.logger.Info("starting scan", map[string]any{
		"max_concurrent": o.config.MaxConcurrent,
	})

	tiles, err := tiler.Generate(o.config.Image, tiler.Config{
		GridSize: o.config.GridSize,
		Quality:  o.config.Quality,
	})
	if err != nil {
		o.logger.Error("tile generation failed", map[string]any{"error": err.Error()})
		collector.IncScanFailed()
		scan.Result = failureResult(err.Error())
		return scan
	}
	collector.AddTilesGenerated(len(tiles))

	scan.TileResults = runTiles(ctx, tiles, o.config.Recognizer, o.config.MaxConcurrent, o.config.OnProgress, collector)

	agg := aggregate(scan.TileResults, collector)
	scan.Result = classifyOutcome(scan.TileResults, agg)

	switch scan.Result.Status {
	case types.ScanStatusError:
		collector.IncScanFailed()
	default:
		collector.IncScanCompleted()
	}

	o.logger.Info("scan finished", map[string]any{
		"status": string(scan.Result.Status),
		"items":  len(scan.Result.AggregatedItems),
	})

	return scan
}

// IdentifyProductFromImageTiles is the convenience entry point surfaced
// to UI callers: split the image into a gridSize×gridSize grid, recognize
// each tile, and return the aggregated envelope. gridSize <= 0 selects
// the default. Never returns a Go error.
func IdentifyProductFromImageTiles(ctx context.Context, image io.Reader, rec vision.Recognizer, gridSize int, onProgress ProgressFunc) *types.AggregatedResult {
	if gridSize <= 0 {
		gridSize = tiler.DefaultGridSize
	}

	o, err := NewOrchestrator(&Config{
		Image:      image,
		Recognizer: rec,
		GridSize:   gridSize,
		OnProgress: onProgress,
	})
	if err != nil {
		return failureResult(err.Error())
	}
	return o.Execute(ctx).Result
}
