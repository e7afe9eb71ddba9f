package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/types"
)

// ScanReport is the structured JSON report written by --report.
type ScanReport struct {
	ScanID     string           `json:"scan_id"`
	GridSize   int              `json:"grid_size"`
	Source     string           `json:"source,omitempty"`
	Status     types.ScanStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	Message    string           `json:"message,omitempty"`
	Query      string           `json:"query,omitempty"`
	Confidence float64          `json:"confidence"`
	DurationMs int64            `json:"duration_ms"`

	Items []types.CandidateItem `json:"items"`
	Tiles []ReportTile          `json:"tiles"`

	Metrics *metrics.Snapshot `json:"metrics"`

	Version string `json:"version"`
}

// ReportTile summarizes one tile's outcome in the report.
type ReportTile struct {
	TileIndex int              `json:"tile_index"`
	Status    types.TileStatus `json:"status"`
	Items     int              `json:"items"`
	Error     string           `json:"error,omitempty"`
}

// BuildScanReport composes a ScanReport from a finished scan and a
// metrics snapshot.
func BuildScanReport(scan *ScanResult, snap metrics.Snapshot) *ScanReport {
	report := &ScanReport{
		ScanID:     scan.Meta.ScanID,
		GridSize:   scan.Meta.GridSize,
		Source:     scan.Meta.Source,
		Status:     scan.Result.Status,
		Error:      scan.Result.Error,
		Message:    scan.Result.Message,
		Query:      scan.Result.Query,
		Confidence: scan.Result.Confidence,
		DurationMs: scan.Duration.Milliseconds(),
		Items:      scan.Result.AggregatedItems,
		Metrics:    &snap,
		Version:    types.Version,
	}

	report.Tiles = make([]ReportTile, 0, len(scan.TileResults))
	for _, tr := range scan.TileResults {
		report.Tiles = append(report.Tiles, ReportTile{
			TileIndex: tr.TileIndex,
			Status:    tr.Status,
			Items:     len(tr.Items),
			Error:     tr.Error,
		})
	}

	return report
}

// WriteScanReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteScanReport(report *ScanReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		if _, err := os.Stderr.Write(data); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeScanReportTo writes report JSON to any writer (for testing).
func writeScanReportTo(report *ScanReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
