// Package adapter defines the scan-notification boundary.
//
// Adapters publish scan completion events to downstream systems (price
// trackers, wishlist sync, analytics). The CLI owns adapter lifecycle;
// users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/spotlens-io/spotlens/pipeline"
	"github.com/spotlens-io/spotlens/types"
)

// ScanCompletedEvent is the payload published when a scan finishes.
type ScanCompletedEvent struct {
	Version    string `json:"version"`
	EventType  string `json:"event_type"` // always "scan_completed"
	ScanID     string `json:"scan_id"`
	Source     string `json:"source,omitempty"`
	GridSize   int    `json:"grid_size"`
	Status     string `json:"status"` // ok, no_results, error
	Error      string `json:"error,omitempty"`
	Query      string `json:"query,omitempty"`
	ItemCount  int    `json:"item_count"`
	TopTitle   string `json:"top_title,omitempty"`
	Timestamp  string `json:"timestamp"` // ISO 8601
	DurationMs int64  `json:"duration_ms"`
}

// NewScanCompletedEvent builds the event payload from a finished scan.
func NewScanCompletedEvent(scan *pipeline.ScanResult) *ScanCompletedEvent {
	event := &ScanCompletedEvent{
		Version:    types.Version,
		EventType:  "scan_completed",
		ScanID:     scan.Meta.ScanID,
		Source:     scan.Meta.Source,
		GridSize:   scan.Meta.GridSize,
		Status:     string(scan.Result.Status),
		Error:      scan.Result.Error,
		Query:      scan.Result.Query,
		ItemCount:  len(scan.Result.AggregatedItems),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DurationMs: scan.Duration.Milliseconds(),
	}
	if len(scan.Result.AggregatedItems) > 0 {
		event.TopTitle = scan.Result.AggregatedItems[0].Title
	}
	return event
}

// Adapter publishes scan completion events to a downstream system.
// Implementations must be safe for single-use per scan.
type Adapter interface {
	// Publish sends a scan completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ScanCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
