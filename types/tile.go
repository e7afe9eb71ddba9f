// Package types defines core domain types for the spotlens pipeline.
//
//nolint:revive // types is a common Go package naming convention
package types

// TileStatus is the terminal status of a single tile recognition.
type TileStatus string

const (
	// TileStatusOK indicates recognition returned at least zero candidates
	// without error.
	TileStatusOK TileStatus = "ok"
	// TileStatusNoResults indicates recognition succeeded but found nothing.
	TileStatusNoResults TileStatus = "no_results"
	// TileStatusError indicates recognition failed after retries.
	TileStatusError TileStatus = "error"
)

// ErrAuthRequired is the sentinel error code the recognition endpoint
// returns when the caller's session is expired or invalid. The classifier
// treats this value as semantically distinct from generic failures.
const ErrAuthRequired = "AUTH_REQUIRED"

// ErrVisionFailed is the error code for whole-pipeline failures
// (tile generation failure, unexpected panics outside per-tile capture).
const ErrVisionFailed = "VISION_FAILED"

// TileResult is the outcome of recognizing one tile.
// Created once per tile by the recognition client, immutable afterward,
// consumed exactly once by the aggregator.
type TileResult struct {
	// TileIndex is the 0-based position in row-major grid order.
	// Identity for ordering and progress reporting only.
	TileIndex int `msgpack:"tile_index" json:"tile_index"`
	// Status is the tile outcome.
	Status TileStatus `msgpack:"status" json:"status"`
	// Items are the candidates recognized in this tile. Empty unless Status is ok.
	Items []CandidateItem `msgpack:"items,omitempty" json:"items,omitempty"`
	// Query is a descriptive search query derived from the tile contents.
	// Only meaningful when Status is ok.
	Query string `msgpack:"query,omitempty" json:"query,omitempty"`
	// Confidence is the endpoint's own confidence in [0,1].
	// Nil when the endpoint reported none or Status is not ok.
	Confidence *float64 `msgpack:"confidence,omitempty" json:"confidence,omitempty"`
	// Error is the error code or message. Only meaningful when Status is not ok.
	Error string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Tile is one encoded grid cell of the source image, ready for transport.
type Tile struct {
	// Index is the 0-based row-major grid position.
	Index int
	// Row and Col are the grid coordinates (Index = Row*GridSize + Col).
	Row, Col int
	// Data is the encoded image payload.
	Data []byte
	// MIMEType is the encoding of Data (e.g. "image/jpeg").
	MIMEType string
}
