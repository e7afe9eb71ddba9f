package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ScanMeta is the identity and shape of one pipeline invocation.
// All log entries and the scan report carry these fields.
type ScanMeta struct {
	// ScanID is the canonical scan identifier.
	ScanID string `msgpack:"scan_id" json:"scan_id"`
	// GridSize is the grid dimension g; the scan covers g*g tiles.
	GridSize int `msgpack:"grid_size" json:"grid_size"`
	// Source is an optional label for where the image came from
	// (file path, camera, share extension).
	Source string `msgpack:"source,omitempty" json:"source,omitempty"`
}

// NewScanMeta creates scan metadata with a fresh scan ID.
func NewScanMeta(gridSize int, source string) *ScanMeta {
	return &ScanMeta{
		ScanID:   uuid.New().String(),
		GridSize: gridSize,
		Source:   source,
	}
}

// TileCount returns the number of tiles this scan covers.
func (m *ScanMeta) TileCount() int {
	return m.GridSize * m.GridSize
}

// Validate checks scan metadata invariants.
func (m *ScanMeta) Validate() error {
	if m == nil {
		return errors.New("scan metadata is nil")
	}
	if m.ScanID == "" {
		return errors.New("scan_id must not be empty")
	}
	if m.GridSize < 1 {
		return fmt.Errorf("grid_size must be >= 1, got %d", m.GridSize)
	}
	return nil
}
