package adapter

import (
	"testing"
	"time"

	"github.com/spotlens-io/spotlens/pipeline"
	"github.com/spotlens-io/spotlens/types"
)

func TestNewScanCompletedEvent(t *testing.T) {
	scan := &pipeline.ScanResult{
		Meta: &types.ScanMeta{ScanID: "scan-evt", GridSize: 3, Source: "camera"},
		Result: &types.AggregatedResult{
			Status: types.ScanStatusOK,
			Query:  "lamp",
			AggregatedItems: []types.CandidateItem{
				{Title: "Brass Lamp", Score: 2},
				{Title: "Desk Lamp", Score: 1},
			},
		},
		Duration: 2 * time.Second,
	}

	event := NewScanCompletedEvent(scan)

	if event.EventType != "scan_completed" {
		t.Errorf("EventType = %q", event.EventType)
	}
	if event.ScanID != "scan-evt" || event.GridSize != 3 || event.Source != "camera" {
		t.Errorf("identity fields = %+v", event)
	}
	if event.Status != "ok" || event.ItemCount != 2 || event.TopTitle != "Brass Lamp" {
		t.Errorf("outcome fields = %+v", event)
	}
	if event.DurationMs != 2000 {
		t.Errorf("DurationMs = %d", event.DurationMs)
	}
	if _, err := time.Parse(time.RFC3339, event.Timestamp); err != nil {
		t.Errorf("Timestamp %q not RFC3339: %v", event.Timestamp, err)
	}
	if event.Version != types.Version {
		t.Errorf("Version = %q", event.Version)
	}
}

func TestNewScanCompletedEvent_ErrorScan(t *testing.T) {
	scan := &pipeline.ScanResult{
		Meta: &types.ScanMeta{ScanID: "scan-err", GridSize: 2},
		Result: &types.AggregatedResult{
			Status: types.ScanStatusError,
			Error:  types.ErrAuthRequired,
		},
	}

	event := NewScanCompletedEvent(scan)
	if event.Status != "error" || event.Error != types.ErrAuthRequired {
		t.Errorf("event = %+v", event)
	}
	if event.TopTitle != "" {
		t.Errorf("TopTitle should be empty, got %q", event.TopTitle)
	}
}
